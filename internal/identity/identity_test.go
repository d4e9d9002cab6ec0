package identity

import (
	"testing"

	"github.com/medtrack/go-remind/internal/domain/record"
)

func TestHandleIsDeterministic(t *testing.T) {
	a := Handle(record.KindMedication, 42, 3)
	b := Handle(record.KindMedication, 42, 3)
	if a != b {
		t.Fatalf("same inputs produced different handles: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("handle is not a sha256 hex digest: %q", a)
	}
}

func TestHandleVariesPerComponent(t *testing.T) {
	base := Handle(record.KindMedication, 42, 3)
	variants := []string{
		Handle(record.KindAppointment, 42, 3),
		Handle(record.KindMedication, 43, 3),
		Handle(record.KindMedication, 42, 4),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base handle", i)
		}
	}
}

func TestHandlesCoversIndexRange(t *testing.T) {
	handles := Handles(record.KindMedication, 7, 5)
	if len(handles) != 5 {
		t.Fatalf("got %d handles, want 5", len(handles))
	}
	for i, h := range handles {
		if h != Handle(record.KindMedication, 7, i) {
			t.Errorf("handle %d does not match Handle for that index", i)
		}
	}
	if got := Handles(record.KindMedication, 7, 0); len(got) != 0 {
		t.Fatalf("zero count must yield no handles, got %d", len(got))
	}
}

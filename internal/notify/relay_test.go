package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/delivery"
)

type captureSender struct {
	sent []string
	err  error
}

func (c *captureSender) Send(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, text)
	return nil
}

type captureSink struct {
	topics []string
	keys   []string
	values [][]byte
}

func (c *captureSink) ProduceMessage(_ context.Context, topic, key string, value []byte) error {
	c.topics = append(c.topics, topic)
	c.keys = append(c.keys, key)
	c.values = append(c.values, value)
	return nil
}

func commandMessage(t *testing.T, cmd delivery.Command) *delivery.ConsumedMessage {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return &delivery.ConsumedMessage{Topic: delivery.TopicReminderCommands, Value: data}
}

func TestHandleArmsAndCancels(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	relay := NewRelay(&captureSender{}, nil, zap.NewNop())
	relay.clock = func() time.Time { return now }
	ctx := context.Background()

	reg := commandMessage(t, delivery.Command{
		Op:      delivery.OpRegister,
		Handle:  "h1",
		FireAt:  now.Add(time.Hour),
		Payload: &delivery.Payload{Title: "Lisinopril"},
	})
	if err := relay.Handle(ctx, reg); err != nil {
		t.Fatalf("handle register: %v", err)
	}
	if relay.armory.Len() != 1 {
		t.Fatalf("register did not arm: %d armed", relay.armory.Len())
	}

	cancel := commandMessage(t, delivery.Command{Op: delivery.OpCancel, Handle: "h1"})
	if err := relay.Handle(ctx, cancel); err != nil {
		t.Fatalf("handle cancel: %v", err)
	}
	if relay.armory.Len() != 0 {
		t.Fatalf("cancel did not disarm: %d armed", relay.armory.Len())
	}
}

func TestHandleDropsStaleReplays(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	relay := NewRelay(&captureSender{}, nil, zap.NewNop())
	relay.clock = func() time.Time { return now }

	stale := commandMessage(t, delivery.Command{
		Op:      delivery.OpRegister,
		Handle:  "old",
		FireAt:  now.Add(-time.Hour),
		Payload: &delivery.Payload{Title: "old reminder"},
	})
	if err := relay.Handle(context.Background(), stale); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if relay.armory.Len() != 0 {
		t.Fatal("a replayed historic register was armed")
	}
}

func TestHandleSkipsPoisonRecords(t *testing.T) {
	relay := NewRelay(&captureSender{}, nil, zap.NewNop())
	msg := &delivery.ConsumedMessage{Value: []byte("not json")}
	if err := relay.Handle(context.Background(), msg); err != nil {
		t.Fatalf("poison record must be skipped, got %v", err)
	}
}

func TestFireDueSendsAndCounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sender := &captureSender{}
	relay := NewRelay(sender, nil, zap.NewNop())
	relay.clock = func() time.Time { return now }

	relay.armory.Arm("h1", now.Add(-time.Second), delivery.Payload{Title: "Lisinopril", Body: "Time to take Lisinopril (10mg)"})
	relay.armory.Arm("h2", now.Add(time.Hour), delivery.Payload{Title: "later"})

	relay.fireDue(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sender.sent))
	}
	if sender.sent[0] != "Lisinopril\nTime to take Lisinopril (10mg)" {
		t.Fatalf("unexpected notification text %q", sender.sent[0])
	}
	if relay.armory.Len() != 1 {
		t.Fatalf("future reminder disturbed: %d armed", relay.armory.Len())
	}
}

func TestFireDuePublishesAuditNotices(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sink := &captureSink{}
	relay := NewRelay(&captureSender{}, nil, zap.NewNop()).WithAudit(sink)
	relay.clock = func() time.Time { return now }

	relay.armory.Arm("h1", now.Add(-time.Second), delivery.Payload{Title: "Lisinopril", TargetRecordID: 7})
	relay.fireDue(context.Background())

	if len(sink.values) != 1 {
		t.Fatalf("published %d notices, want 1", len(sink.values))
	}
	if sink.topics[0] != delivery.TopicReminderAudit || sink.keys[0] != "h1" {
		t.Fatalf("notice went to %s keyed %s", sink.topics[0], sink.keys[0])
	}
	var notice delivery.AuditNotice
	if err := json.Unmarshal(sink.values[0], &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Outcome != delivery.AuditFired || notice.Handle != "h1" || notice.TargetRecordID != 7 {
		t.Fatalf("unexpected notice %+v", notice)
	}
}

func TestFailedSendPublishesDroppedNotice(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sink := &captureSink{}
	sender := &captureSender{err: context.DeadlineExceeded}
	relay := NewRelay(sender, nil, zap.NewNop()).WithAudit(sink)
	relay.clock = func() time.Time { return now }

	relay.armory.Arm("h1", now.Add(-time.Second), delivery.Payload{Title: "Lisinopril"})
	relay.fireDue(context.Background())

	if len(sink.values) != 1 {
		t.Fatalf("published %d notices, want 1", len(sink.values))
	}
	var notice delivery.AuditNotice
	if err := json.Unmarshal(sink.values[0], &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Outcome != delivery.AuditDropped || notice.Reason == "" {
		t.Fatalf("unexpected notice %+v", notice)
	}
}

// Package identity derives deterministic reminder handles. A handle is the
// identifier under which the delivery backend tracks one registered
// occurrence; because it is a pure function of (kind, record id, occurrence
// index), re-registering the same triple replaces instead of duplicating,
// and cancellation can reconstruct every handle a record ever produced.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/medtrack/go-remind/internal/domain/record"
)

// Handle returns the reminder handle for one occurrence of a record.
// Distinct triples never collide; identical triples always reproduce the
// same handle.
func Handle(kind record.Kind, recordID int64, occurrenceIndex int) string {
	data := fmt.Sprintf("%s|%d|%d", kind, recordID, occurrenceIndex)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Handles returns the handles for occurrence indices 0..n-1 of a record, in
// index order. Used to cancel a previously issued range in one sweep.
func Handles(kind record.Kind, recordID int64, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Handle(kind, recordID, i))
	}
	return out
}

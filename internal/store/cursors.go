package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/medtrack/go-remind/internal/domain/record"
)

// Cursors is the occurrence-index ledger: for each (kind, record id) it
// remembers how many occurrence indices were issued by the last reschedule.
// A shrinking recurrence must cancel its previous full index range, and this
// ledger is what makes that range known across restarts.
type Cursors struct {
	kv KV
}

// NewCursors creates a cursor ledger on top of kv.
func NewCursors(kv KV) *Cursors {
	return &Cursors{kv: kv}
}

func cursorKey(kind record.Kind, recordID int64) string {
	return fmt.Sprintf("cursors/%s/%d", kind, recordID)
}

// Get returns the issued-index count for a record and whether one is known.
func (c *Cursors) Get(ctx context.Context, kind record.Kind, recordID int64) (int, bool, error) {
	data, ok, err := c.kv.Get(ctx, cursorKey(kind, recordID))
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cursor for %s/%d: %w", kind, recordID, err)
	}
	return n, true, nil
}

// Set records the issued-index count after a reschedule.
func (c *Cursors) Set(ctx context.Context, kind record.Kind, recordID int64, n int) error {
	return c.kv.Set(ctx, cursorKey(kind, recordID), []byte(strconv.Itoa(n)))
}

// Clear forgets the record's cursor. Called once its handles are cancelled.
func (c *Cursors) Clear(ctx context.Context, kind record.Kind, recordID int64) error {
	return c.kv.Delete(ctx, cursorKey(kind, recordID))
}

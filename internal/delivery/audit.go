package delivery

import "time"

// AuditOutcome classifies what happened to a due reminder.
type AuditOutcome string

const (
	AuditFired   AuditOutcome = "fired"
	AuditDropped AuditOutcome = "dropped"
)

// AuditNotice is one record on the reminder audit topic, emitted by the
// notify relay after it attempts to deliver a due reminder.
type AuditNotice struct {
	Handle         string       `json:"handle"`
	Outcome        AuditOutcome `json:"outcome"`
	FireAt         time.Time    `json:"fire_at"`
	Title          string       `json:"title"`
	TargetRecordID int64        `json:"target_record_id"`
	EmittedAt      time.Time    `json:"emitted_at"`
	Reason         string       `json:"reason,omitempty"`
}

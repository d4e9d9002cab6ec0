// Package delivery abstracts the facility that actually holds and fires
// reminders. The scheduling engine only ever registers a (handle, instant,
// payload) triple or cancels a handle; whether that lands in an in-process
// fake or a notification relay behind a broker is this package's concern.
package delivery

import (
	"context"
	"time"
)

// Payload is what a reminder shows when it fires.
type Payload struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	TargetRecordID int64  `json:"target_record_id"`
}

// Backend is the delivery collaborator contract.
//
// Register with a handle that is already registered replaces the previous
// registration. Cancel of an unknown handle is a no-op, never an error.
type Backend interface {
	Register(ctx context.Context, handle string, at time.Time, payload Payload) error
	Cancel(ctx context.Context, handle string) error
}

// Op is a delivery command verb.
type Op string

const (
	OpRegister Op = "register"
	OpCancel   Op = "cancel"
)

// Command is the wire form of a backend call, published to the reminder
// command topic and consumed by the notify relay.
type Command struct {
	Op            Op        `json:"op"`
	Handle        string    `json:"handle"`
	FireAt        time.Time `json:"fire_at,omitzero"`
	Payload       *Payload  `json:"payload,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

package delivery

import (
	"context"
	"sync"
	"time"
)

// Registration is one armed reminder held by the memory backend.
type Registration struct {
	Handle  string
	At      time.Time
	Payload Payload
}

// Memory is an in-process delivery backend. It is the default for tests and
// for running the API without a broker.
type Memory struct {
	mu   sync.Mutex
	regs map[string]Registration

	// RejectRegister, when set, is consulted before a registration is
	// accepted. Test hook for simulating backend rejections.
	RejectRegister func(handle string, at time.Time) error
}

// NewMemory creates an empty memory backend.
func NewMemory() *Memory {
	return &Memory{regs: make(map[string]Registration)}
}

func (m *Memory) Register(_ context.Context, handle string, at time.Time, payload Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RejectRegister != nil {
		if err := m.RejectRegister(handle, at); err != nil {
			return err
		}
	}
	// Same handle replaces, never duplicates.
	m.regs[handle] = Registration{Handle: handle, At: at, Payload: payload}
	return nil
}

func (m *Memory) Cancel(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regs, handle)
	return nil
}

// Registered returns a snapshot of the currently armed reminders.
func (m *Memory) Registered() map[string]Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Registration, len(m.regs))
	for k, v := range m.regs {
		out[k] = v
	}
	return out
}

// Len returns the number of armed reminders.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

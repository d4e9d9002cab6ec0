package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/medtrack/go-remind/internal/delivery"
)

// Armed is one registered, not-yet-fired reminder.
type Armed struct {
	Handle  string
	At      time.Time
	Payload delivery.Payload
}

// Armory is the relay's armed set: every handle registered and not yet
// cancelled or fired. Registering an existing handle replaces it, cancelling
// an absent one is a no-op, matching the backend contract.
type Armory struct {
	mu    sync.Mutex
	armed map[string]Armed
}

func NewArmory() *Armory {
	return &Armory{armed: make(map[string]Armed)}
}

// Arm registers or replaces a reminder.
func (a *Armory) Arm(handle string, at time.Time, payload delivery.Payload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[handle] = Armed{Handle: handle, At: at, Payload: payload}
}

// Disarm removes a reminder if present.
func (a *Armory) Disarm(handle string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, handle)
}

// Due removes and returns every reminder at or before now, soonest first.
func (a *Armory) Due(now time.Time) []Armed {
	a.mu.Lock()
	defer a.mu.Unlock()

	var due []Armed
	for handle, r := range a.armed {
		if r.At.After(now) {
			continue
		}
		due = append(due, r)
		delete(a.armed, handle)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	return due
}

// Len reports the armed count.
func (a *Armory) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.armed)
}

package jcrquery

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Slots tracks the in-flight request of each logical query slot (for
// example one search session). Beginning a request in a slot cancels the
// request it replaces, so results are applied in issue order rather than
// completion order.
type Slots struct {
	mu     sync.Mutex
	active map[string]*generation
}

type generation struct {
	token  string
	cancel context.CancelFunc
}

func NewSlots() *Slots {
	return &Slots{active: make(map[string]*generation)}
}

// Ticket identifies one request generation within a slot.
type Ticket struct {
	slots *Slots
	key   string
	gen   *generation
}

// Begin starts a new generation for key and cancels the previous one. The
// returned context is cancelled when a newer generation begins.
func (s *Slots) Begin(ctx context.Context, key string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)
	gen := &generation{token: uuid.NewString(), cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.active[key]; ok {
		prev.cancel()
	}
	s.active[key] = gen
	s.mu.Unlock()

	return ctx, &Ticket{slots: s, key: key, gen: gen}
}

// Active is the number of slots with a request in flight.
func (s *Slots) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (t *Ticket) Token() string { return t.gen.token }

// Current reports whether no newer generation has started in the slot.
func (t *Ticket) Current() bool {
	t.slots.mu.Lock()
	defer t.slots.mu.Unlock()
	return t.slots.active[t.key] == t.gen
}

// Finish releases the ticket. A superseded ticket yields ErrSuperseded
// whatever the outcome of its request; otherwise err is returned as is.
func (t *Ticket) Finish(err error) error {
	t.slots.mu.Lock()
	current := t.slots.active[t.key] == t.gen
	if current {
		delete(t.slots.active, t.key)
	}
	t.slots.mu.Unlock()

	t.gen.cancel()
	if !current {
		return ErrSuperseded
	}
	return err
}

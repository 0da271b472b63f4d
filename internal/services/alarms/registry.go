package alarms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"alarmbot/internal/alarm"
)

// task is one live wait-then-ring activity. The registry owns it for
// cancellation; the scheduler goroutine owns its execution.
type task struct {
	id     uuid.UUID
	alarm  alarm.Alarm
	cancel context.CancelFunc
}

// registry tracks live tasks and the shared ring flag per owner. The
// task set and the flag are mutated under one lock so a cancel never
// leaves a stale "still ringing" flag behind.
type registry struct {
	mu      sync.Mutex
	tasks   map[int64]map[uuid.UUID]*task
	ringing map[int64]bool
}

func newRegistry() *registry {
	return &registry{
		tasks:   map[int64]map[uuid.UUID]*task{},
		ringing: map[int64]bool{},
	}
}

func (r *registry) add(owner int64, t *task) {
	r.mu.Lock()
	m := r.tasks[owner]
	if m == nil {
		m = map[uuid.UUID]*task{}
		r.tasks[owner] = m
	}
	m[t.id] = t
	r.mu.Unlock()
}

func (r *registry) remove(owner int64, id uuid.UUID) {
	r.mu.Lock()
	if m := r.tasks[owner]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(r.tasks, owner)
		}
	}
	r.mu.Unlock()
}

// cancelAll signals cancellation to every task of owner and clears the
// ring flag. It does not wait for tasks to exit; cancellation is
// cooperative and fire-and-forget.
func (r *registry) cancelAll(owner int64) int {
	r.mu.Lock()
	m := r.tasks[owner]
	delete(r.tasks, owner)
	delete(r.ringing, owner)
	r.mu.Unlock()

	for _, t := range m {
		t.cancel()
	}
	return len(m)
}

func (r *registry) taskCount(owner int64) int {
	r.mu.Lock()
	n := len(r.tasks[owner])
	r.mu.Unlock()
	return n
}

func (r *registry) setRinging(owner int64, on bool) {
	r.mu.Lock()
	if on {
		r.ringing[owner] = true
	} else {
		delete(r.ringing, owner)
	}
	r.mu.Unlock()
}

func (r *registry) isRinging(owner int64) bool {
	r.mu.Lock()
	on := r.ringing[owner]
	r.mu.Unlock()
	return on
}

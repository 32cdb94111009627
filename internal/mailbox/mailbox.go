// Package mailbox provides a single-slot buffer where the latest value wins.
// The daemon uses it to coalesce backup triggers: however many cron ticks
// fire while a run is in flight, at most one follow-up run happens.
package mailbox

import "sync"

// Mailbox holds at most one pending value. Put overwrites; Take blocks.
type Mailbox[T any] struct {
	mu sync.Mutex
	ch chan T
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put stores v, replacing any value already waiting. It never blocks.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.ch:
	default:
	}
	m.ch <- v
}

// Wait returns a channel that yields the pending value.
func (m *Mailbox[T]) Wait() <-chan T {
	return m.ch
}

// TryTake returns the pending value if present.
func (m *Mailbox[T]) TryTake() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

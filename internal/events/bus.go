// internal/events/bus.go
package events

import "sync"

// Bus is an explicitly owned, typed observer list. Delivery is synchronous
// and follows subscription order. Handlers run outside the bus lock, so a
// handler may subscribe or unsubscribe without deadlocking.
type Bus[E any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[E]
}

type subscription[E any] struct {
	id uint64
	fn func(E)
}

// NewBus returns an empty bus.
func NewBus[E any]() *Bus[E] {
	return &Bus[E]{}
}

// Subscribe registers fn and returns a function removing it again. The
// returned function is safe to call more than once.
func (b *Bus[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[E]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to a snapshot of the current subscribers.
func (b *Bus[E]) Publish(e E) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := append([]subscription[E](nil), b.subs...)
	b.mu.Unlock()

	// Notify outside the lock to avoid deadlocks.
	for _, s := range subs {
		s.fn(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

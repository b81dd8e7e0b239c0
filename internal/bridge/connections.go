package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/dontdude/goconv/internal/domain"
)

// Sink is the producer side of a session's private delivery queue.
// The dispatcher only ever sends into it; the owning SocketSession drains it.
type Sink struct {
	ch   chan domain.Notification
	done chan struct{}

	// mu orders Close against the non-blocking enqueue in Deliver.
	mu     sync.Mutex
	closed bool
}

// NewSink creates a sink buffering up to size notifications.
func NewSink(size int) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{
		ch:   make(chan domain.Notification, size),
		done: make(chan struct{}),
	}
}

// Deliver enqueues n. Free buffer space is taken even if ctx is already done.
// With the buffer full it blocks until the consumer drains, the sink is closed
// or ctx ends.
func (s *Sink) Deliver(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSinkClosed
	}
	select {
	case s.ch <- n:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	select {
	case s.ch <- n:
		return nil
	case <-s.done:
		return domain.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C is the consumer side.
func (s *Sink) C() <-chan domain.Notification {
	return s.ch
}

// Close marks the consumer as gone. The data channel itself is never closed, so
// a Deliver racing with Close cannot panic.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// Done is closed once the consumer has gone away.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// ConnectionRegistry tracks which sessions can currently be notified.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	sinks map[domain.SessionID]*Sink
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		sinks: make(map[domain.SessionID]*Sink),
	}
}

// Register binds sink to owner. It never replaces an existing entry: a second
// connection for the same session gets domain.ErrAlreadyConnected.
func (r *ConnectionRegistry) Register(owner domain.SessionID, sink *Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[owner]; exists {
		return fmt.Errorf("register %s: %w", owner, domain.ErrAlreadyConnected)
	}
	r.sinks[owner] = sink
	liveConnections.Inc()
	return nil
}

// Lookup returns the sink for owner without removing it.
func (r *ConnectionRegistry) Lookup(owner domain.SessionID) (*Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, exists := r.sinks[owner]
	return sink, exists
}

// Remove drops owner's entry. Removing an absent owner is a no-op.
func (r *ConnectionRegistry) Remove(owner domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[owner]; exists {
		delete(r.sinks, owner)
		liveConnections.Dec()
	}
}

// RemoveIf drops owner's entry only if it still points at sink. A session
// tearing down must not unregister a sink it does not own.
func (r *ConnectionRegistry) RemoveIf(owner domain.SessionID, sink *Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.sinks[owner]; exists && current == sink {
		delete(r.sinks, owner)
		liveConnections.Dec()
	}
}

// Len reports the number of live connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

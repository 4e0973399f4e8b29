package cache

import (
	"context"
	"sync"
)

// Publisher is a one-shot broadcast of a terminal cache entry to every
// subscriber of an in-flight extraction. It closes exactly once, either
// with a value (Publish) or without one (Close); closing without a value
// tells late subscribers to retry.
type Publisher struct {
	done chan struct{}

	mu     sync.Mutex
	closed bool
	value  *Entry
}

func newPublisher() *Publisher {
	return &Publisher{done: make(chan struct{})}
}

// Publish broadcasts the terminal entry. Only the first Publish/Close
// takes effect.
func (p *Publisher) Publish(entry Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.value = &entry
	p.closed = true
	close(p.done)
}

// Close tears the publisher down without a value.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}

// IsClosed reports whether the publisher has terminated.
func (p *Publisher) IsClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Subscribe returns a handle for waiting on the broadcast.
func (p *Publisher) Subscribe() *Subscription {
	return &Subscription{pub: p}
}

// Subscription waits for a publisher's terminal state.
type Subscription struct {
	pub *Publisher
}

// Wait blocks until the publisher terminates or ctx is done. ok is false
// when the publisher closed without a value; callers should treat that as
// transient and retry the cache lookup.
func (s *Subscription) Wait(ctx context.Context) (entry Entry, ok bool, err error) {
	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	case <-s.pub.done:
	}

	// value is written before done closes; the channel close orders it
	if s.pub.value == nil {
		return Entry{}, false, nil
	}
	return *s.pub.value, true, nil
}

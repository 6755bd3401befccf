package cml

import "sync"

type (
	// MChannel is a multicast channel: every value passed to
	// [MChannel.Multicast] is observed, in order, by every [Port] that
	// existed when it was sent. It is built atop a chain of write-once
	// cells; ports hold independent cursors into the chain, so a slow port
	// only retains (not blocks) the stream. Instances must be created with
	// [NewMChannel].
	MChannel[T any] struct {
		mu   sync.Mutex
		tail *IVar[mcNode[T]]
	}

	mcNode[T any] struct {
		next *IVar[mcNode[T]]
		val  T
	}

	// Port is one subscriber's cursor into an [MChannel] stream. A port is
	// a single-consumer value: concurrent receives on one port may observe
	// the same element. Use [Port.Copy] for independent consumers.
	Port[T any] struct {
		mu     sync.Mutex
		cursor *IVar[mcNode[T]]
	}
)

// NewMChannel creates a new multicast channel.
func NewMChannel[T any]() *MChannel[T] {
	return &MChannel[T]{tail: NewIVar[mcNode[T]]()}
}

// Multicast broadcasts v to every existing port. It never blocks.
func (x *MChannel[T]) Multicast(v T) {
	next := NewIVar[mcNode[T]]()
	x.mu.Lock()
	tail := x.tail
	x.tail = next
	// the tail cell is only ever put here, under the lock
	_ = tail.Put(mcNode[T]{val: v, next: next})
	x.mu.Unlock()
}

// Port subscribes, returning a port that observes every value multicast
// from now on.
func (x *MChannel[T]) Port() *Port[T] {
	x.mu.Lock()
	defer x.mu.Unlock()
	return &Port[T]{cursor: x.tail}
}

// RecvEvt returns the event that commits the next value in the stream,
// advancing the port's cursor on commit.
func (x *Port[T]) RecvEvt() Event[T] {
	return Guard(func() Event[T] {
		x.mu.Lock()
		cur := x.cursor
		x.mu.Unlock()
		return Wrap(cur.ReadEvt(), func(n mcNode[T]) T {
			x.mu.Lock()
			if x.cursor == cur {
				x.cursor = n.next
			}
			x.mu.Unlock()
			return n.val
		})
	})
}

// Recv synchronizes on RecvEvt.
func (x *Port[T]) Recv() T {
	return Sync(x.RecvEvt())
}

// Copy returns a new port positioned at this port's cursor: both observe
// the same remaining stream, independently.
func (x *Port[T]) Copy() *Port[T] {
	x.mu.Lock()
	defer x.mu.Unlock()
	return &Port[T]{cursor: x.cursor}
}

package cml

import "sync"

const (
	mvarTake = iota
	mvarGet
	mvarSwap
	mvarPut
)

type (
	// MVar is a single-slot mutable synchronous cell. Put parks while the
	// slot is full; Take empties the slot, immediately refilling it from a
	// queued putter if any; Get reads without emptying; Swap atomically
	// exchanges the value. The slot holds exactly one value or none.
	// Instances must be created with [NewMVar] or [NewMVarFull].
	//
	// Invariant: an empty slot implies an empty putter queue (putters only
	// park while the slot is full, and emptying the slot drains the next
	// live putter).
	MVar[T any] struct {
		mu sync.Mutex
		// waitq holds parked takers, getters and swappers, FIFO; putters
		// queue separately, carrying their value.
		waitq   []*mvarWaiter[T]
		putters []*mvarWaiter[T]
		val     T
		full    bool
	}

	mvarWaiter[T any] struct {
		p    *pick
		w    *leaf
		val  T // putter's value, or swapper's replacement
		kind int
	}
)

// NewMVar creates a new, empty MVar.
func NewMVar[T any]() *MVar[T] {
	return &MVar[T]{}
}

// NewMVarFull creates an MVar holding v.
func NewMVarFull[T any](v T) *MVar[T] {
	return &MVar[T]{val: v, full: true}
}

// deliverLocked routes a value arriving at an empty slot: every live parked
// getter observes it, the first live parked taker or swapper consumes it (a
// swapper leaves its replacement behind), and absent a consumer it fills the
// slot. Caller holds x.mu.
func (x *MVar[T]) deliverLocked(v T) {
	var consumer *mvarWaiter[T]
	keep := x.waitq[:0]
	for _, e := range x.waitq {
		if e.p.isDecided() {
			continue
		}
		if e.kind == mvarGet {
			e.p.commitWait(v, e.w)
			continue
		}
		if consumer == nil && e.p.commitWait(v, e.w) {
			consumer = e
			continue
		}
		if !e.p.isDecided() {
			keep = append(keep, e)
		}
	}
	x.waitq = keep
	switch {
	case consumer == nil:
		x.full = true
		x.val = v
	case consumer.kind == mvarSwap:
		x.full = true
		x.val = consumer.val
	default:
		x.full = false
	}
}

// refillLocked refills an emptied slot from the next live parked putter, if
// any. Caller holds x.mu.
func (x *MVar[T]) refillLocked() {
	for len(x.putters) > 0 {
		pu := x.putters[0]
		x.putters = x.putters[1:]
		if pu.p.commitWait(nil, pu.w) {
			x.val = pu.val
			x.full = true
			return
		}
	}
	x.full = false
	var zero T
	x.val = zero
}

func (x *MVar[T]) putCommit(v T) func(p *pick, w *leaf) bool {
	return func(p *pick, w *leaf) bool {
		x.mu.Lock()
		defer x.mu.Unlock()
		if x.full {
			return false
		}
		if !p.claim() {
			return true
		}
		p.commitClaimed(nil, w)
		x.deliverLocked(v)
		return true
	}
}

func (x *MVar[T]) takeCommit(p *pick, w *leaf) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.full {
		return false
	}
	if !p.claim() {
		return true
	}
	p.commitClaimed(x.val, w)
	x.refillLocked()
	return true
}

func (x *MVar[T]) getCommit(p *pick, w *leaf) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.full {
		return false
	}
	if !p.claim() {
		return true
	}
	p.commitClaimed(x.val, w)
	return true
}

func (x *MVar[T]) swapCommit(nv T) func(p *pick, w *leaf) bool {
	return func(p *pick, w *leaf) bool {
		x.mu.Lock()
		defer x.mu.Unlock()
		if !x.full {
			return false
		}
		if !p.claim() {
			return true
		}
		p.commitClaimed(x.val, w)
		x.val = nv
		return true
	}
}

// evt assembles a leaf from a fullness precondition, a commit attempt, a
// waiter kind (putters park in x.putters, every other kind in x.waitq), and
// the value the waiter carries.
func (x *MVar[T]) evt(wantFull bool, commit func(p *pick, w *leaf) bool, kind int, val T) bare {
	return func(g *group) {
		w := &leaf{}
		w.poll = func() status {
			x.mu.Lock()
			defer x.mu.Unlock()
			if x.full != wantFull {
				return blocked()
			}
			return enabled(0, commit)
		}
		w.register = func(p *pick, w *leaf) func() {
			for {
				x.mu.Lock()
				if p.isDecided() {
					x.mu.Unlock()
					return nil
				}
				if x.full != wantFull {
					wtr := &mvarWaiter[T]{p: p, w: w, val: val, kind: kind}
					q := &x.waitq
					if kind == mvarPut {
						q = &x.putters
					}
					*q = append(*q, wtr)
					x.mu.Unlock()
					return func() {
						x.mu.Lock()
						defer x.mu.Unlock()
						for i, e := range *q {
							if e == wtr {
								*q = append((*q)[:i], (*q)[i+1:]...)
								return
							}
						}
					}
				}
				x.mu.Unlock()
				if commit(p, w) {
					return nil
				}
			}
		}
		g.addLeaf(w)
	}
}

// PutEvt returns the event that stores v, parking while the slot is full.
func (x *MVar[T]) PutEvt(v T) Event[struct{}] {
	return event[struct{}](x.evt(false, x.putCommit(v), mvarPut, v))
}

// TakeEvt returns the event that empties the slot, committing its value and
// refilling from a parked putter if one is queued.
func (x *MVar[T]) TakeEvt() Event[T] {
	var zero T
	return event[T](x.evt(true, x.takeCommit, mvarTake, zero))
}

// GetEvt returns the event that commits the slot's value without emptying
// it.
func (x *MVar[T]) GetEvt() Event[T] {
	var zero T
	return event[T](x.evt(true, x.getCommit, mvarGet, zero))
}

// SwapEvt returns the event that atomically replaces the slot's value with
// nv, committing the old value.
func (x *MVar[T]) SwapEvt(nv T) Event[T] {
	return event[T](x.evt(true, x.swapCommit(nv), mvarSwap, nv))
}

// Put synchronizes on PutEvt(v).
func (x *MVar[T]) Put(v T) { Sync(x.PutEvt(v)) }

// Take synchronizes on TakeEvt.
func (x *MVar[T]) Take() T { return Sync(x.TakeEvt()) }

// Get synchronizes on GetEvt.
func (x *MVar[T]) Get() T { return Sync(x.GetEvt()) }

// Swap synchronizes on SwapEvt(nv).
func (x *MVar[T]) Swap(nv T) T { return Sync(x.SwapEvt(nv)) }

// TryPut stores v without parking, reporting whether the slot was empty.
func (x *MVar[T]) TryPut(v T) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.full {
		return false
	}
	x.deliverLocked(v)
	return true
}

// TryTake empties the slot without parking, reporting whether it was full.
func (x *MVar[T]) TryTake() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.full {
		var zero T
		return zero, false
	}
	v := x.val
	x.refillLocked()
	return v, true
}

// TrySwap replaces the slot's value with nv without parking, returning the
// old value and reporting whether the slot was full.
func (x *MVar[T]) TrySwap(nv T) (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.full {
		var zero T
		return zero, false
	}
	old := x.val
	x.val = nv
	return old, true
}

// TryGet reads the slot without parking, reporting whether it was full.
func (x *MVar[T]) TryGet() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.val, x.full
}

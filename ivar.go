package cml

import "sync"

type (
	// IVar is a write-once synchronous cell: empty until the single
	// successful [IVar.Put], full and immutable thereafter. Readers pending
	// at put time are all woken with the value; later reads return it
	// without blocking. Instances must be created with [NewIVar].
	IVar[T any] struct {
		mu      sync.Mutex
		val     T
		readers []*ivarWaiter
		full    bool
	}

	ivarWaiter struct {
		p *pick
		w *leaf
	}
)

// NewIVar creates a new, empty IVar.
func NewIVar[T any]() *IVar[T] {
	return &IVar[T]{}
}

// Put stores the value, waking every pending reader with it. Returns
// [ErrIVarFull] if the cell already holds a value.
func (x *IVar[T]) Put(v T) error {
	x.mu.Lock()
	if x.full {
		x.mu.Unlock()
		return ErrIVarFull
	}
	x.full = true
	x.val = v
	readers := x.readers
	x.readers = nil
	x.mu.Unlock()
	for _, r := range readers {
		r.p.commitWait(v, r.w)
	}
	return nil
}

// ReadEvt returns the event that commits the cell's value, parking until the
// put if the cell is still empty.
func (x *IVar[T]) ReadEvt() Event[T] {
	return event[T](func(g *group) {
		w := &leaf{}
		w.poll = func() status {
			x.mu.Lock()
			defer x.mu.Unlock()
			if !x.full {
				return blocked()
			}
			v := x.val
			return enabled(0, func(p *pick, w *leaf) bool {
				return commitDirect(p, w, v)
			})
		}
		w.register = func(p *pick, w *leaf) func() {
			x.mu.Lock()
			if x.full {
				v := x.val
				x.mu.Unlock()
				commitDirect(p, w, v)
				return nil
			}
			wtr := &ivarWaiter{p: p, w: w}
			x.readers = append(x.readers, wtr)
			x.mu.Unlock()
			return func() {
				x.mu.Lock()
				defer x.mu.Unlock()
				for i, e := range x.readers {
					if e == wtr {
						x.readers = append(x.readers[:i], x.readers[i+1:]...)
						return
					}
				}
			}
		}
		g.addLeaf(w)
	})
}

// Read synchronizes on ReadEvt.
func (x *IVar[T]) Read() T {
	return Sync(x.ReadEvt())
}

// TryRead returns the value without blocking, reporting whether the cell was
// full.
func (x *IVar[T]) TryRead() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.val, x.full
}

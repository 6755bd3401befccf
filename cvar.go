package cml

import "sync"

// CVar is a write-once broadcast signal: unset until [CVar.Set], which
// commits every pending waiter, after which waits are enabled immediately.
// It is the notification mechanism behind [WithNack]. Instances must be
// created with [NewCVar].
type CVar struct {
	mu      sync.Mutex
	waiters []*ivarWaiter
	set     bool
}

// NewCVar creates a new, unset CVar.
func NewCVar() *CVar {
	return &CVar{}
}

// Set transitions unset→set, waking every pending waiter. Returns
// [ErrCVarSet] if already set.
func (x *CVar) Set() error {
	if !x.setQuiet() {
		return ErrCVarSet
	}
	return nil
}

// setQuiet is the idempotent transition used by the nack cleanup pass, which
// must not fail. Reports whether this call performed the transition.
func (x *CVar) setQuiet() bool {
	x.mu.Lock()
	if x.set {
		x.mu.Unlock()
		return false
	}
	x.set = true
	waiters := x.waiters
	x.waiters = nil
	x.mu.Unlock()
	for _, wtr := range waiters {
		wtr.p.commitWait(nil, wtr.w)
	}
	return true
}

// IsSet reports whether the variable has been set.
func (x *CVar) IsSet() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.set
}

// WaitEvt returns the event enabled once the variable is set.
func (x *CVar) WaitEvt() Event[struct{}] {
	return event[struct{}](func(g *group) {
		w := &leaf{}
		w.poll = func() status {
			x.mu.Lock()
			defer x.mu.Unlock()
			if !x.set {
				return blocked()
			}
			return enabled(0, func(p *pick, w *leaf) bool {
				return commitDirect(p, w, nil)
			})
		}
		w.register = func(p *pick, w *leaf) func() {
			x.mu.Lock()
			if x.set {
				x.mu.Unlock()
				commitDirect(p, w, nil)
				return nil
			}
			wtr := &ivarWaiter{p: p, w: w}
			x.waiters = append(x.waiters, wtr)
			x.mu.Unlock()
			return func() {
				x.mu.Lock()
				defer x.mu.Unlock()
				for i, e := range x.waiters {
					if e == wtr {
						x.waiters = append(x.waiters[:i], x.waiters[i+1:]...)
						return
					}
				}
			}
		}
		g.addLeaf(w)
	})
}

// Wait synchronizes on WaitEvt.
func (x *CVar) Wait() {
	Sync(x.WaitEvt())
}

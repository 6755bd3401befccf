package cml

import (
	"runtime"
	"sync"
)

type (
	// Chan is a synchronous rendezvous channel: a send and its matching
	// receive commit as one atomic act, transferring the value. Chan never
	// buffers and never fails; compose with [Timeout] for liveness.
	// Instances must be created with [NewChan].
	Chan[T any] struct {
		mu    sync.Mutex
		sendq []*chanWaiter[T]
		recvq []*chanWaiter[T]
		// prio is the starvation counter: bumped each time the channel
		// reports itself enabled, reset on a successful rendezvous, so a
		// repeatedly-offered-but-unchosen channel accumulates priority and
		// wins ties in Choose.
		prio int
	}

	chanWaiter[T any] struct {
		p   *pick
		w   *leaf
		val T // senders only
	}
)

// NewChan creates a new rendezvous channel.
func NewChan[T any]() *Chan[T] {
	return &Chan[T]{prio: 1}
}

// Same reports whether the two values denote the same channel.
func (x *Chan[T]) Same(other *Chan[T]) bool {
	return x == other
}

// removeWaiter deletes w from *q, preserving order. Caller holds x.mu.
func removeWaiter[T any](q *[]*chanWaiter[T], w *chanWaiter[T]) {
	for i, e := range *q {
		if e == w {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return
		}
	}
}

// hasPartner reports whether q holds at least one undecided waiter belonging
// to a synchronization other than p (two branches of one choice must not
// rendezvous with each other). Tombstones are discarded as it walks. Caller
// holds x.mu; p may be nil (poll phase, before any registration).
func hasPartner[T any](q *[]*chanWaiter[T], p *pick) bool {
	live := (*q)[:0]
	found := false
	for _, e := range *q {
		if e.p.isDecided() {
			continue
		}
		live = append(live, e)
		if e.p != p {
			found = true
		}
	}
	*q = live
	return found
}

// rendezvous attempts a two-sided commit for a still-pending pick: claim
// self, commit the first live queued partner from q (skipping entries of the
// same synchronization), finalize self. partnerVal is what the partner's
// transaction commits with; the returned value is what self commits with
// (selfVal, or the partner's carried value when takePartnerVal is set).
// Reports false iff no partner was available and the pick remains pending.
// A transiently claimed partner (mid-rendezvous elsewhere) causes a backoff
// and retry rather than a wait, per the claim discipline in pick.go.
func (x *Chan[T]) rendezvous(q *[]*chanWaiter[T], p *pick, w *leaf, partnerVal any, takePartnerVal bool) bool {
	for {
		x.mu.Lock()
		if !p.claim() {
			x.mu.Unlock()
			return true // decided elsewhere; nothing left to do here
		}
		busy := false
		i := 0
		for i < len(*q) {
			e := (*q)[i]
			if e.p == p {
				i++ // sibling branch of the same sync; not a partner
				continue
			}
			committed, state := e.p.tryCommit(partnerVal, e.w)
			if committed {
				*q = append((*q)[:i], (*q)[i+1:]...)
				x.prio = 1
				if takePartnerVal {
					p.commitClaimed(e.val, w)
				} else {
					p.commitClaimed(nil, w)
				}
				x.mu.Unlock()
				return true
			}
			if state == pickClaimed {
				busy = true
				break
			}
			*q = append((*q)[:i], (*q)[i+1:]...) // tombstone
		}
		p.unclaim()
		x.mu.Unlock()
		if !busy {
			return false
		}
		runtime.Gosched()
	}
}

// commitRecv is the receive side: commit the first live queued sender with
// unit, finalize self with the sender's value.
func (x *Chan[T]) commitRecv(p *pick, w *leaf) bool {
	return x.rendezvous(&x.sendq, p, w, nil, true)
}

// commitSend is the symmetric send side: commit the first live queued
// receiver with v, finalize self with unit.
func (x *Chan[T]) commitSend(p *pick, w *leaf, v T) bool {
	return x.rendezvous(&x.recvq, p, w, v, false)
}

// chanEvt assembles a leaf over the partner queue (matched against) and the
// home queue (registered into).
func (x *Chan[T]) chanEvt(partners, home *[]*chanWaiter[T], commit func(p *pick, w *leaf) bool, val T) bare {
	return func(g *group) {
		w := &leaf{}
		w.poll = func() status {
			x.mu.Lock()
			defer x.mu.Unlock()
			if !hasPartner(partners, nil) {
				return blocked()
			}
			prio := x.prio
			x.prio++
			return enabled(prio, commit)
		}
		w.register = func(p *pick, w *leaf) func() {
			for {
				x.mu.Lock()
				if p.isDecided() {
					x.mu.Unlock()
					return nil
				}
				if !hasPartner(partners, p) {
					wtr := &chanWaiter[T]{p: p, w: w, val: val}
					*home = append(*home, wtr)
					x.mu.Unlock()
					return func() {
						x.mu.Lock()
						defer x.mu.Unlock()
						removeWaiter(home, wtr)
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

// RecvEvt returns the event that synchronizes with a sender, committing the
// transferred value.
func (x *Chan[T]) RecvEvt() Event[T] {
	var zero T
	return event[T](x.chanEvt(&x.sendq, &x.recvq, x.commitRecv, zero))
}

// SendEvt returns the event that synchronizes with a receiver, transferring
// v on commit.
func (x *Chan[T]) SendEvt(v T) Event[struct{}] {
	return event[struct{}](x.chanEvt(&x.recvq, &x.sendq, func(p *pick, w *leaf) bool {
		return x.commitSend(p, w, v)
	}, v))
}

// Send synchronizes on SendEvt(v).
func (x *Chan[T]) Send(v T) {
	Sync(x.SendEvt(v))
}

// Recv synchronizes on RecvEvt.
func (x *Chan[T]) Recv() T {
	return Sync(x.RecvEvt())
}

// TrySend attempts exactly one immediate rendezvous, without parking.
func (x *Chan[T]) TrySend(v T) bool {
	p, w := newPick(), &leaf{}
	if x.commitSend(p, w, v) {
		return true
	}
	p.tryCancel()
	return false
}

// TryRecv attempts exactly one immediate rendezvous, without parking.
func (x *Chan[T]) TryRecv() (T, bool) {
	p, w := newPick(), &leaf{}
	if x.commitRecv(p, w) {
		v, _ := p.result.(T)
		return v, true
	}
	p.tryCancel()
	var zero T
	return zero, false
}

package cml

import (
	"math/rand/v2"
	"sort"
)

type (
	// Event is a first-class synchronization value producing a T. Events are
	// composed with the package-level combinators and synchronized upon with
	// [Sync]. The zero value behaves as [Never].
	//
	// Event is a typed facade over an untyped branch protocol; values cross
	// the internal protocol as any and are restored to T at the API
	// boundary.
	Event[T any] struct {
		b bare
	}

	// bare materializes an event's branches into a group. Guard thunks and
	// with-nack bodies run here, on the syncing goroutine, never under a
	// resource lock.
	bare func(g *group)

	// group is the flattened force result of one Sync call: the candidate
	// leaves, plus the negative-acknowledgement subgroups as index ranges
	// over those leaves.
	group struct {
		leaves []*leaf
		nacks  []nackRecord
	}

	// leaf is one base branch of a forced event.
	leaf struct {
		// poll is the non-committing readiness check.
		poll func() status
		// register links the pick into the branch's resource, re-checking
		// readiness under the resource lock (the re-check is what closes the
		// race between a failed poll and a partner arriving before
		// registration). It may decide the pick internally; the wake signal
		// is then already pending. The returned closure eagerly removes the
		// registration and may be nil when registration completed the
		// synchronization.
		register func(p *pick, w *leaf) func()
		// wrap is the transformation chain applied to the committed value on
		// the syncing goroutine, outermost last.
		wrap []func(any) any
		// idx is the leaf's position in group.leaves, assigned after force.
		idx int
	}

	// status is a leaf poll result: either enabled, carrying a priority and
	// a commit attempt, or blocked.
	status struct {
		// commit attempts to decide the (still private) pick together with
		// whatever resource transition the branch stands for. It reports
		// false when the opportunity vanished between poll and commit.
		commit func(p *pick, w *leaf) bool
		// priority breaks ties between simultaneously enabled branches;
		// higher wins. Channels report their starvation counter here.
		priority int
		enabled  bool
	}

	// nackRecord associates a with-nack cvar with the half-open leaf index
	// range of its subgroup.
	nackRecord struct {
		cv   *CVar
		from int
		to   int
	}
)

func blocked() status { return status{} }

func enabled(priority int, commit func(p *pick, w *leaf) bool) status {
	return status{enabled: true, priority: priority, commit: commit}
}

// event wraps a bare into the typed facade.
func event[T any](b bare) Event[T] { return Event[T]{b: b} }

// addLeaf appends a leaf during force.
func (g *group) addLeaf(w *leaf) { g.leaves = append(g.leaves, w) }

// Sync synchronizes on the event: it forces the event under a fresh
// transaction, commits an enabled branch if any is ready, and otherwise
// registers on every underlying resource and parks the calling goroutine
// until one commits. Exactly one branch commits; the cancellation cleanup of
// every other branch runs, and the nack cvar of every non-chosen [WithNack]
// subgroup is set, before the chosen branch's [Wrap] chain produces the
// result.
//
// Sync is the only blocking operation in the package. A panic from a wrap
// function, or a [BarrierFault], propagates to the caller after commit and
// cleanup.
func Sync[T any](e Event[T]) T {
	v := syncBare(e.b)
	// nil commit values (unit-valued branches) assert to the zero T.
	t, _ := v.(T)
	return t
}

// Select synchronizes on the choice of the given events: Sync ∘ Choose.
func Select[T any](events ...Event[T]) T {
	return Sync(Choose(events...))
}

// enabledLeaf is a poll-phase commit candidate.
type enabledLeaf struct {
	commit   func(p *pick, w *leaf) bool
	idx      int
	priority int
}

func syncBare(b bare) any {
	p := newPick()
	var g group
	if b != nil {
		b(&g)
	}
	for i, w := range g.leaves {
		w.idx = i
	}
	trace(`sync`, ``, traceInt(`leaves`, len(g.leaves)))

	order := rand.Perm(len(g.leaves))

	// Poll phase: collect enabled branches in randomized order, then attempt
	// commits in descending priority. A commit may fail when the partner
	// vanished between poll and commit; on full failure the poll repeats,
	// and an empty poll falls through to registration.
	for {
		var candidates []enabledLeaf
		for _, i := range order {
			if st := g.leaves[i].poll(); st.enabled {
				candidates = append(candidates, enabledLeaf{st.commit, i, st.priority})
			}
		}
		if len(candidates) == 0 {
			break
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].priority > candidates[b].priority
		})
		committed := false
		for _, c := range candidates {
			if c.commit(p, g.leaves[c.idx]) {
				committed = true
				break
			}
		}
		if committed {
			break
		}
	}

	// Register phase: link the pick into every blocked branch's resource.
	// Registration re-checks under the resource lock and may complete the
	// synchronization itself, in which case the remaining branches are
	// never registered (and need no cancellation).
	var cancels []func()
	if !p.isDecided() {
		cancels = make([]func(), len(g.leaves))
		for _, i := range order {
			if p.isDecided() {
				break
			}
			cancels[i] = g.leaves[i].register(p, g.leaves[i])
		}
	}

	result, winner := p.park()

	// Cleanup: eagerly remove the losing registrations, then signal every
	// nack subgroup that does not contain the winner. Cleanup closures must
	// not panic; recovered panics are rate limited and logged.
	for i, cancel := range cancels {
		if cancel != nil && g.leaves[i] != winner {
			safely(`cancel`, cancel)
		}
	}
	for _, n := range g.nacks {
		if winner == nil || winner.idx < n.from || winner.idx >= n.to {
			n.cv.setQuiet()
		}
	}

	if f, ok := result.(barrierFaultValue); ok {
		panic(f.fault)
	}
	if winner != nil {
		trace(`commit`, ``, traceInt(`branch`, winner.idx))
		for _, f := range winner.wrap {
			result = f(result)
		}
	}
	return result
}

// safely runs a cleanup closure, converting panics into rate-limited log
// output. Cleanup runs after the commit; a cleanup failure must not disturb
// the already-committed synchronization.
func safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			internalError(name, r)
		}
	}()
	fn()
}

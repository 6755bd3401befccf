// Package cml implements first-class synchronization events in the style of
// Concurrent ML, atop goroutines: composable [Event] values that are
// synchronized upon with [Sync], a synchronous rendezvous [Chan], a family of
// synchronization variables ([IVar], [MVar], [CVar], [Mailbox], [Barrier]), a
// timer service driving [Timeout] and friends, and a multicast channel
// ([MChannel]) built atop a chain of write-once cells.
//
// # Events
//
// An [Event] is a value describing a synchronization action that commits at
// most once. Events are composed with combinators: [Wrap] transforms the
// committed value, [Guard] defers event construction to synchronization time,
// [Choose] selects exactly one of several events, [WithNack] additionally
// provides a negative-acknowledgement event that fires when the guarded
// branch is not the one chosen, and [WrapAbort] runs a cleanup function in
// that case. [Always], [Never], [Timeout], [After] and [AtTime] are the
// primitive leaves that don't involve a shared resource.
//
// [Sync] forces the event into a tree of candidate branches under a fresh
// transaction, polls the branches in randomized order, and either commits an
// enabled branch immediately or registers on every underlying resource and
// parks the calling goroutine. Whichever resource commits the transaction
// first wins; every other registration is cancelled, and the
// negative-acknowledgement of every non-chosen [WithNack] subgroup is
// signalled. Exactly one branch commits per successful Sync.
//
// # Synchronization guarantees
//
//   - For every committed channel send there is exactly one committed receive
//     observing the sent value, and vice versa.
//   - A transaction commits at most once; the commit CAS is the
//     linearization point for "which branch wins".
//   - Registration never blocks: forcing an event and registering its
//     branches acquires resource mutexes only briefly and performs no
//     user-visible blocking call.
//   - Within one resource, queued waiters rendezvous in FIFO order among
//     live entries; entries whose transaction is already decided are
//     tombstones, skipped and discarded on the next walk.
//
// # Tasks
//
// Any goroutine may call [Sync]. [Spawn] additionally registers the
// goroutine as a task with an ordered id, enabling [CurrentID], [JoinEvt],
// [Park] and [Unpark]. [Yield] cooperatively reschedules.
//
// # Tracing
//
// The package carries compile-time switchable trace instrumentation: build
// with the "cmltrace" tag and install a logger via [SetTraceLogger] to
// receive structured records for synchronization activity, filtered via
// [SetTraceFilter]. Without the tag the trace points compile to no-ops.
// Internal errors (panics recovered from cleanup closures and timer
// callbacks) are always surfaced, rate limited: through the same logger when
// one is installed, otherwise through the standard library log package.
//
// # Liveness
//
// Deadlock is not prevented: synchronizing on an event whose partner never
// arrives parks the caller forever. Compose with [Timeout] for liveness.
package cml

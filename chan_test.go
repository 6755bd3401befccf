// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cml

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChan_sendRecv(t *testing.T) {
	// S1: one sender, one receiver, value 42
	ch := NewChan[int]()
	sent := make(chan struct{})
	go func() {
		ch.Send(42)
		close(sent)
	}()
	require.Equal(t, 42, ch.Recv())
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal(`sender did not complete`)
	}
}

func TestChan_recvFirst(t *testing.T) {
	ch := NewChan[string]()
	got := make(chan string, 1)
	go func() { got <- ch.Recv() }()
	time.Sleep(20 * time.Millisecond) // let the receiver park
	ch.Send(`hello`)
	select {
	case v := <-got:
		require.Equal(t, `hello`, v)
	case <-time.After(time.Second):
		t.Fatal(`receiver did not resume`)
	}
}

func TestChan_recvVsTimeout(t *testing.T) {
	// S2: no sender; the timeout branch must win, and cleanup must remove
	// the receiver's registration.
	ch := NewChan[int]()
	start := time.Now()
	v := Select(
		ch.RecvEvt(),
		Wrap(Timeout(100*time.Millisecond), func(struct{}) int { return -1 }),
	)
	elapsed := time.Since(start)
	require.Equal(t, -1, v)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Empty(t, ch.recvq)
}

func TestChan_rendezvousAtomicity(t *testing.T) {
	// every committed send pairs with exactly one committed recv
	const senders = 8
	const perSender = 200
	ch := NewChan[int]()
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				ch.Send(s*perSender + i)
			}
		}(s)
	}
	recvd := make(chan int, senders*perSender)
	for r := 0; r < 4; r++ {
		go func() {
			for {
				recvd <- ch.Recv()
			}
		}()
	}
	seen := make(map[int]bool, senders*perSender)
	for i := 0; i < senders*perSender; i++ {
		select {
		case v := <-recvd:
			if seen[v] {
				t.Fatalf(`value %d received twice`, v)
			}
			seen[v] = true
		case <-time.After(5 * time.Second):
			t.Fatalf(`stalled after %d values`, i)
		}
	}
	wg.Wait()
	require.Len(t, seen, senders*perSender)
}

func TestChan_bothSidesInChoice(t *testing.T) {
	// a sender in choice rendezvousing with a receiver in choice
	ch := NewChan[int]()
	done := make(chan int, 1)
	go func() {
		done <- Select(
			ch.RecvEvt(),
			Wrap(Timeout(2*time.Second), func(struct{}) int { return -1 }),
		)
	}()
	v := Select(
		Wrap(ch.SendEvt(7), func(struct{}) int { return 1 }),
		Wrap(Timeout(2*time.Second), func(struct{}) int { return -1 }),
	)
	require.Equal(t, 1, v, `send branch should have won`)
	require.Equal(t, 7, <-done)
}

func TestChan_trySendTryRecv(t *testing.T) {
	ch := NewChan[int]()
	require.False(t, ch.TrySend(1), `no receiver waiting`)
	_, ok := ch.TryRecv()
	require.False(t, ok, `no sender waiting`)

	got := make(chan int, 1)
	go func() { got <- ch.Recv() }()
	require.Eventually(t, func() bool { return ch.TrySend(99) },
		time.Second, time.Millisecond)
	require.Equal(t, 99, <-got)

	sent := make(chan struct{})
	go func() {
		ch.Send(7)
		close(sent)
	}()
	var v int
	require.Eventually(t, func() bool {
		var ok bool
		v, ok = ch.TryRecv()
		return ok
	}, time.Second, time.Millisecond)
	require.Equal(t, 7, v)
	<-sent
}

func TestChan_same(t *testing.T) {
	a, b := NewChan[int](), NewChan[int]()
	assert.True(t, a.Same(a))
	assert.False(t, a.Same(b))
}

func TestChan_priorityCounter(t *testing.T) {
	// white box: polling a ready channel bumps the starvation counter, a
	// rendezvous resets it
	ch := NewChan[int]()
	go ch.Send(1)
	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.sendq) == 1
	}, time.Second, time.Millisecond)

	e := ch.RecvEvt()
	var g group
	e.forceInto(&g)
	st := g.leaves[0].poll()
	require.True(t, st.enabled)
	require.Equal(t, 1, st.priority)
	st = g.leaves[0].poll()
	require.True(t, st.enabled)
	require.Equal(t, 2, st.priority, `unchosen polls accumulate priority`)

	require.Equal(t, 1, ch.Recv())
	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Equal(t, 1, ch.prio, `rendezvous resets the counter`)
}

func TestChan_pingPongStress(t *testing.T) {
	ch := NewChan[int]()
	const rounds = 500
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			if got := ch.Recv(); got != i {
				t.Errorf(`round %d: got %d`, i, got)
				return
			}
		}
	}()
	for i := 0; i < rounds; i++ {
		ch.Send(i)
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal(`ping-pong stalled`)
	}
}

package cml

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskID identifies a spawned task. Ids are assigned in spawn order,
// starting at 1; 0 denotes "not a spawned task".
type TaskID uint64

type task struct {
	done *CVar
	park chan struct{}
	id   TaskID
}

var taskCounter atomic.Uint64

var taskRegistry struct {
	sync.RWMutex
	byGID map[uint64]*task
	byID  map[TaskID]*task
}

func init() {
	taskRegistry.byGID = make(map[uint64]*task)
	taskRegistry.byID = make(map[TaskID]*task)
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// Spawn starts fn as a new task, returning its id. The id is valid for
// [JoinEvt] and [Unpark] immediately, before fn runs.
func Spawn(fn func()) TaskID {
	if fn == nil {
		panic(`cml: nil task function`)
	}
	t := &task{
		id:   TaskID(taskCounter.Add(1)),
		done: NewCVar(),
		park: make(chan struct{}, 1),
	}
	taskRegistry.Lock()
	taskRegistry.byID[t.id] = t
	taskRegistry.Unlock()
	go func() {
		gid := getGoroutineID()
		taskRegistry.Lock()
		taskRegistry.byGID[gid] = t
		taskRegistry.Unlock()
		defer func() {
			taskRegistry.Lock()
			delete(taskRegistry.byGID, gid)
			delete(taskRegistry.byID, t.id)
			taskRegistry.Unlock()
			t.done.setQuiet()
		}()
		trace(`task-start`, ``, traceInt(`task`, int(t.id)))
		fn()
	}()
	return t.id
}

func currentTask() *task {
	gid := getGoroutineID()
	taskRegistry.RLock()
	defer taskRegistry.RUnlock()
	return taskRegistry.byGID[gid]
}

// CurrentID returns the calling task's id, or 0 when the goroutine was not
// started with [Spawn].
func CurrentID() TaskID {
	if t := currentTask(); t != nil {
		return t.id
	}
	return 0
}

// Yield cooperatively gives up the current time slice.
func Yield() {
	runtime.Gosched()
}

// JoinEvt returns an event enabled once the task has terminated. An id that
// is unknown (never spawned, or already terminated and retired) is treated
// as terminated.
func JoinEvt(id TaskID) Event[struct{}] {
	taskRegistry.RLock()
	t := taskRegistry.byID[id]
	taskRegistry.RUnlock()
	if t == nil {
		return Always(struct{}{})
	}
	return t.done.WaitEvt()
}

// Park suspends the calling task until [Unpark]. Must be called from a
// spawned task. An Unpark that arrived first returns immediately (the
// permit does not accumulate beyond one).
func Park() {
	t := currentTask()
	if t == nil {
		panic(`cml: park outside a spawned task`)
	}
	<-t.park
}

// Unpark resumes (or pre-permits) the task. Unknown ids are no-ops.
func Unpark(id TaskID) {
	taskRegistry.RLock()
	t := taskRegistry.byID[id]
	taskRegistry.RUnlock()
	if t == nil {
		return
	}
	select {
	case t.park <- struct{}{}:
	default:
	}
}

package cml

import (
	"log"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// TraceField is one structured argument of a trace record.
type TraceField struct {
	Val any
	Key string
}

func traceInt(key string, val int) TraceField {
	return TraceField{Key: key, Val: val}
}

// TraceFilter restricts which trace records are emitted. A nil or empty
// slice admits everything for that dimension; a record must pass every
// dimension.
type TraceFilter struct {
	// Events admits only the named trace events (e.g. "sync", "commit").
	Events []string
	// Tags admits only records carrying one of the given tags.
	Tags []string
	// Tasks admits only records from the given tasks.
	Tasks []TaskID
}

type compiledFilter struct {
	events map[string]struct{}
	tags   map[string]struct{}
	tasks  map[TaskID]struct{}
}

func (x *compiledFilter) allow(event, tag string, task TaskID) bool {
	if x == nil {
		return true
	}
	if x.events != nil {
		if _, ok := x.events[event]; !ok {
			return false
		}
	}
	if x.tags != nil {
		if _, ok := x.tags[tag]; !ok {
			return false
		}
	}
	if x.tasks != nil {
		if _, ok := x.tasks[task]; !ok {
			return false
		}
	}
	return true
}

// Global trace output configuration. Tracing is an infrastructure
// cross-cutting concern shared by every resource in the package, hence
// package-level rather than per-instance.
var traceConfig struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
	filter *compiledFilter
}

// SetTraceLogger installs the structured logger receiving trace records and
// internal error reports. A nil logger disables trace output; internal error
// reports are then written through the standard library log package. Trace
// records are only produced when the package is built with the "cmltrace"
// tag; internal error reports are always produced.
func SetTraceLogger(logger *logiface.Logger[logiface.Event]) {
	traceConfig.Lock()
	defer traceConfig.Unlock()
	traceConfig.logger = logger
}

// TraceLogger returns the installed logger, if any.
func TraceLogger() *logiface.Logger[logiface.Event] {
	traceConfig.RLock()
	defer traceConfig.RUnlock()
	return traceConfig.logger
}

// SetTraceFilter installs a record filter; nil admits everything.
func SetTraceFilter(f *TraceFilter) {
	var c *compiledFilter
	if f != nil {
		c = &compiledFilter{}
		if len(f.Events) > 0 {
			c.events = make(map[string]struct{}, len(f.Events))
			for _, e := range f.Events {
				c.events[e] = struct{}{}
			}
		}
		if len(f.Tags) > 0 {
			c.tags = make(map[string]struct{}, len(f.Tags))
			for _, t := range f.Tags {
				c.tags[t] = struct{}{}
			}
		}
		if len(f.Tasks) > 0 {
			c.tasks = make(map[TaskID]struct{}, len(f.Tasks))
			for _, t := range f.Tasks {
				c.tasks[t] = struct{}{}
			}
		}
	}
	traceConfig.Lock()
	defer traceConfig.Unlock()
	traceConfig.filter = c
}

func currentTraceFilter() *compiledFilter {
	traceConfig.RLock()
	defer traceConfig.RUnlock()
	return traceConfig.filter
}

// internalErrorLimiter keeps a hot failure loop (e.g. a panicking cleanup
// closure inside a spin) from flooding the sink.
var internalErrorLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 1,
	time.Minute: 5,
})

// internalError surfaces a recovered panic from a path that must not fail
// (cleanup closures, timer callbacks). Rate limited per origin.
func internalError(origin string, recovered any) {
	if _, ok := internalErrorLimiter.Allow(origin); !ok {
		return
	}
	if logger := TraceLogger(); logger != nil {
		logger.Err().
			Str(`origin`, origin).
			Any(`recovered`, recovered).
			Uint64(`task`, uint64(CurrentID())).
			Log(`cml: recovered internal panic`)
		return
	}
	log.Printf(`cml: recovered internal panic (origin %s, task %d): %v`,
		origin, CurrentID(), recovered)
}

func emitTrace(event, tag string, fields []TraceField) {
	traceConfig.RLock()
	logger, filter := traceConfig.logger, traceConfig.filter
	traceConfig.RUnlock()
	if logger == nil {
		return
	}
	task := CurrentID()
	if !filter.allow(event, tag, task) {
		return
	}
	b := logger.Trace().
		Time(`ts`, time.Now()).
		Uint64(`task`, uint64(task)).
		Str(`event`, event)
	if tag != `` {
		b = b.Str(`tag`, tag)
	}
	for _, f := range fields {
		b = b.Any(f.Key, f.Val)
	}
	b.Log(``)
}

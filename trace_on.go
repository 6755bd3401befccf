//go:build cmltrace

package cml

// TraceEnabled reports whether the package was built with trace
// instrumentation ("cmltrace" build tag).
const TraceEnabled = true

func trace(event, tag string, fields ...TraceField) {
	emitTrace(event, tag, fields)
}

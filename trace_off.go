//go:build !cmltrace

package cml

// TraceEnabled reports whether the package was built with trace
// instrumentation ("cmltrace" build tag).
const TraceEnabled = false

// trace compiles to nothing without the cmltrace tag.
func trace(string, string, ...TraceField) {}

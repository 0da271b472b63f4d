// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes a Field-based API so call sites stay stable even if the
// backend changes, and a Service whose sinks/level can be swapped at
// runtime from config hot reload.
package logx

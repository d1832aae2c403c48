// Package logx provides structured logging for the daemon.
//
// It wraps zerolog behind a small Field-based API so call sites stay free
// of zerolog types, and supports swapping sinks (console, file, UI mirror)
// at runtime via Service.Apply.
package logx

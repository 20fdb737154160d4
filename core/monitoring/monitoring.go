// Package monitoring reports faults that escape the engine's per-pass
// isolation, such as a planning run aborting or a panic in one of the
// service goroutines. The default implementation drops everything; the
// Sentry adapter in infra/monitoring replaces it when a DSN is configured.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags, typically the
// component that failed (engine, telemetry, heater).
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush drains buffered events, called once during shutdown.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}

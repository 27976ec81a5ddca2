package metrics

import (
	"sync/atomic"

	"keeprun/internal/runlog"
)

// Metrics are boring counters only. Every counter must be explainable
// by looking at a single run record.
type Metrics struct {
	// Iteration lifecycle
	IterationsStarted   atomic.Uint64 // Incremented when an iteration begins
	IterationsCompleted atomic.Uint64 // Incremented when the child exits (any exit code)

	// Exit outcomes (source of truth: Record.ExitCode)
	ExitZero    atomic.Uint64 // exit_code=0
	ExitNonZero atomic.Uint64 // exit_code!=0
	Signaled    atomic.Uint64 // child ended by signal

	// Last observed values, for gauges
	LastExitCode       atomic.Int64
	LastChildRuntimeMS atomic.Int64
}

// New returns a zeroed metrics set.
func New() *Metrics {
	return &Metrics{}
}

// IncrStarted increments the iterations-started counter.
func (m *Metrics) IncrStarted() {
	m.IterationsStarted.Add(1)
}

// RecordResult updates all counters from one immutable run record.
// This is the only way completion counters change.
func (m *Metrics) RecordResult(rec runlog.Record) {
	m.IterationsCompleted.Add(1)

	if rec.ExitCode == 0 {
		m.ExitZero.Add(1)
	} else {
		m.ExitNonZero.Add(1)
	}
	if rec.ExitReason == "signal" {
		m.Signaled.Add(1)
	}

	m.LastExitCode.Store(int64(rec.ExitCode))
	m.LastChildRuntimeMS.Store(rec.Duration().Milliseconds())
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"iterations_started":   m.IterationsStarted.Load(),
		"iterations_completed": m.IterationsCompleted.Load(),
		"exit_zero":            m.ExitZero.Load(),
		"exit_non_zero":        m.ExitNonZero.Load(),
		"signaled":             m.Signaled.Load(),
	}
}

package metrics

import (
	"testing"
	"time"

	"keeprun/internal/runlog"
)

func record(exitCode int, reason string, runtime time.Duration) runlog.Record {
	start := time.Now()
	return runlog.Record{
		StartTime:  start,
		EndTime:    start.Add(runtime),
		ExitCode:   exitCode,
		ExitReason: reason,
	}
}

func TestMetrics_RecordResult(t *testing.T) {
	m := New()

	m.IncrStarted()
	m.RecordResult(record(0, "success", time.Second))
	m.IncrStarted()
	m.RecordResult(record(3, "error", 500*time.Millisecond))
	m.IncrStarted()
	m.RecordResult(record(-1, "signal", time.Second))

	snap := m.Snapshot()
	expected := map[string]uint64{
		"iterations_started":   3,
		"iterations_completed": 3,
		"exit_zero":            1,
		"exit_non_zero":        2,
		"signaled":             1,
	}
	for name, want := range expected {
		if snap[name] != want {
			t.Errorf("%s = %d, expected %d", name, snap[name], want)
		}
	}

	if m.LastExitCode.Load() != -1 {
		t.Errorf("LastExitCode = %d, expected -1", m.LastExitCode.Load())
	}
	if m.LastChildRuntimeMS.Load() != 1000 {
		t.Errorf("LastChildRuntimeMS = %d, expected 1000", m.LastChildRuntimeMS.Load())
	}
}

package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Record is immutable iteration-level truth. Set once, never change.
// Every metric and log line about an iteration must be explainable by
// looking at its Record.
type Record struct {
	// Identity
	Sequence uint64 `json:"sequence"`
	PID      int    `json:"pid,omitempty"`

	// Timing (immutable)
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Outcome (immutable)
	ExitCode   int    `json:"exit_code"`
	ExitReason string `json:"exit_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Duration returns how long the iteration's child ran.
func (r Record) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Sink is the append-only iteration log. One "Running at <timestamp>"
// line per iteration start, one JSON record per iteration completion.
// The sink is only ever written by the single supervisor goroutine, but
// the child's forwarded output may share the same file, so writes are
// serialized anyway.
type Sink struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	degraded bool
}

// Open opens (or creates) the append-only log at path.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	return &Sink{path: path, file: f}, nil
}

// Path returns the log file path.
func (s *Sink) Path() string {
	return s.path
}

// LogStart appends the iteration start line.
func (s *Sink) LogStart(t time.Time) {
	s.write(fmt.Sprintf("Running at %s\n", t.Format(time.RFC3339)))
}

// Append appends the completed record as a JSON line.
func (s *Sink) Append(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		// Record contents are all plain types; this should not happen.
		fmt.Fprintf(os.Stderr, "keeprun: failed to encode run record: %v\n", err)
		return
	}
	s.write(string(data) + "\n")
}

// write appends raw text. An unwritable sink never stops the supervisor:
// the workload keeps restarting and log failures go to stderr instead,
// with a reopen attempt on each write.
func (s *Sink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		s.reopenLocked()
	}
	if s.file != nil {
		if _, err := s.file.WriteString(line); err == nil {
			if s.degraded {
				s.degraded = false
				fmt.Fprintf(os.Stderr, "keeprun: run log %s writable again\n", s.path)
			}
			return
		} else {
			s.file.Close()
			s.file = nil
			if !s.degraded {
				s.degraded = true
				fmt.Fprintf(os.Stderr, "keeprun: run log %s unwritable: %v\n", s.path, err)
			}
		}
	}

	// Degraded mode: secondary channel only.
	fmt.Fprint(os.Stderr, line)
}

func (s *Sink) reopenLocked() {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if !s.degraded {
			s.degraded = true
			fmt.Fprintf(os.Stderr, "keeprun: cannot reopen run log %s: %v\n", s.path, err)
		}
		return
	}
	s.file = f
}

// Degraded reports whether the last write fell back to stderr.
func (s *Sink) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// ChildWriter returns the writer the child process's stdout/stderr
// should be wired to. It shares the sink file so child output lands
// between iteration lines, like the original job log.
func (s *Sink) ChildWriter() io.Writer {
	return childWriter{s}
}

type childWriter struct {
	s *Sink
}

func (w childWriter) Write(p []byte) (int, error) {
	w.s.write(string(p))
	return len(p), nil
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

package supervisor

// The supervisor never interprets the workload. It records exit status
// and restarts; a failing child and a succeeding child get the same
// next action.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"keeprun/internal/logging"
	"keeprun/internal/metrics"
	"keeprun/internal/runlog"
)

// Setup errors. These are the only fatal conditions besides external
// termination; everything the child does is non-fatal.
var (
	ErrNoCommand      = errors.New("no target command configured")
	ErrBadWorkdir     = errors.New("working directory invalid")
	ErrCommandMissing = errors.New("target command not found")
)

// Config holds everything the supervisor needs. Zero values get the
// defaults from DefaultConfig, except Command which is required.
type Config struct {
	Command string   // Target executable (required)
	Args    []string // Target arguments

	WorkDir      string        // Child working directory (default ".")
	Interval     time.Duration // Delay between iterations (default 30s)
	LogPath      string        // Run log path (default log.txt in workdir)
	ChildLogPath string        // Child output path (default: the run log)

	MaxRuntime       time.Duration // Wall-clock budget; 0 = unbounded
	IterationTimeout time.Duration // Per-child timeout; 0 = none
	ForwardSignals   bool          // Forward termination to a running child
	GracePeriod      time.Duration // SIGTERM-to-SIGKILL window (default 5s)

	// Delay overrides the fixed-interval policy when set. The default
	// is always FixedDelay(Interval); backoff is opt-in only.
	Delay DelayStrategy
}

// DefaultConfig returns the faithful defaults: 30 second fixed delay,
// log.txt in the working directory (filled in by New once the workdir
// is known), signal forwarding on, no budget.
func DefaultConfig() Config {
	return Config{
		WorkDir:        ".",
		Interval:       30 * time.Second,
		ForwardSignals: true,
		GracePeriod:    5 * time.Second,
	}
}

// Supervisor owns the run loop: one child in flight at a time, one run
// record per iteration, strictly increasing sequence numbers.
type Supervisor struct {
	cfg       Config
	command   string // Resolved executable path
	log       *logging.Logger
	sink      *runlog.Sink
	childOut  io.Writer
	childSink *runlog.Sink // Separate child log, if configured
	metrics   *metrics.Metrics

	sequence uint64
}

// New validates the setup and opens the log sink. Validation failures
// here are the only path to a non-zero supervisor exit: a missing
// workdir or unresolvable command must fail before the first iteration.
func New(cfg Config, log *logging.Logger, m *metrics.Metrics) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, ErrNoCommand
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.WorkDir, "log.txt")
	}
	if cfg.Delay == nil {
		cfg.Delay = FixedDelay(cfg.Interval)
	}
	if m == nil {
		m = metrics.New()
	}

	info, err := os.Stat(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadWorkdir, cfg.WorkDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBadWorkdir, cfg.WorkDir)
	}

	command, err := resolveCommand(cfg.Command, cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	sink, err := runlog.Open(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:      cfg,
		command:  command,
		log:      log,
		sink:     sink,
		childOut: sink.ChildWriter(),
		metrics:  m,
	}

	if cfg.ChildLogPath != "" && cfg.ChildLogPath != cfg.LogPath {
		childSink, err := runlog.Open(cfg.ChildLogPath)
		if err != nil {
			sink.Close()
			return nil, err
		}
		s.childSink = childSink
		s.childOut = childSink.ChildWriter()
	}

	return s, nil
}

// resolveCommand locates the target executable. Commands containing a
// path separator resolve against the working directory; bare names go
// through PATH lookup.
func resolveCommand(command, workdir string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) {
		path := command
		if !filepath.IsAbs(path) {
			path = filepath.Join(workdir, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrCommandMissing, command, err)
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return "", fmt.Errorf("%w: %s is not executable", ErrCommandMissing, command)
		}
		return path, nil
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCommandMissing, command, err)
	}
	return path, nil
}

// Run is the supervisor loop. It blocks until the context is cancelled
// or the wall-clock budget is exhausted, and returns nil in both cases:
// those are graceful terminations. Child exit status never changes
// control flow.
func (s *Supervisor) Run(ctx context.Context) error {
	start := time.Now()
	s.log.Info("supervisor started", map[string]interface{}{
		"command":  s.command,
		"workdir":  s.cfg.WorkDir,
		"interval": s.cfg.Interval.String(),
		"log":      s.cfg.LogPath,
	})

	for {
		if s.cfg.MaxRuntime > 0 && time.Since(start) >= s.cfg.MaxRuntime {
			s.log.Info("wall-clock budget exhausted", map[string]interface{}{
				"budget":     s.cfg.MaxRuntime.String(),
				"iterations": s.sequence,
			})
			return nil
		}
		if ctx.Err() != nil {
			s.logStop()
			return nil
		}

		rec := runlog.Record{
			Sequence:  s.sequence,
			StartTime: time.Now(),
		}
		s.sink.LogStart(rec.StartTime)
		s.metrics.IncrStarted()

		res := s.runChild(ctx.Done())

		rec.EndTime = time.Now()
		rec.PID = res.pid
		rec.ExitCode = res.exitCode
		rec.ExitReason = string(res.reason)
		if res.signal != "" {
			rec.ExitReason = string(res.reason) + ":" + res.signal
		}
		if res.err != nil {
			rec.Error = res.err.Error()
		}
		s.sink.Append(rec)
		s.metrics.RecordResult(rec)

		if res.exitCode != 0 {
			s.log.Warn("child exited with failure", map[string]interface{}{
				"sequence":  rec.Sequence,
				"exit_code": rec.ExitCode,
				"reason":    rec.ExitReason,
			})
		} else {
			s.log.Debug("child exited cleanly", map[string]interface{}{
				"sequence": rec.Sequence,
				"runtime":  rec.Duration().String(),
			})
		}

		s.sequence++

		// Same next action regardless of exit status.
		delay := s.cfg.Delay.Next(res.exitCode == 0)
		select {
		case <-ctx.Done():
			s.logStop()
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) logStop() {
	s.log.Info("supervisor stopping on termination signal", map[string]interface{}{
		"iterations": s.sequence,
	})
}

// Sequence returns the current iteration count.
func (s *Supervisor) Sequence() uint64 {
	return s.sequence
}

// Close flushes and closes the log sinks.
func (s *Supervisor) Close() error {
	var err error
	if s.childSink != nil {
		err = s.childSink.Close()
	}
	if cerr := s.sink.Close(); cerr != nil {
		err = cerr
	}
	return err
}

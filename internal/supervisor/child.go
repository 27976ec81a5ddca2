package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// childResult captures the outcome of one invocation.
type childResult struct {
	pid      int
	exitCode int
	reason   ExitReason
	signal   string
	err      error
}

// runChild spawns the target, blocks until it exits, and classifies the
// outcome. The child gets its own process group so a termination signal
// aimed at the supervisor is forwarded deliberately, not inherited by
// accident.
func (s *Supervisor) runChild(done <-chan struct{}) childResult {
	cmd := exec.Command(s.command, s.cfg.Args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Stdout = s.childOut
	cmd.Stderr = s.childOut
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		// Post-setup start failures (e.g. the binary was deleted
		// mid-run) are treated like any child failure: logged,
		// not escalated.
		return childResult{exitCode: -1, reason: ExitReasonError, err: fmt.Errorf("failed to start workload: %w", err)}
	}

	pid := cmd.Process.Pid
	s.log.Debug("child started", map[string]interface{}{"pid": pid})

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if s.cfg.IterationTimeout > 0 {
		timer := time.NewTimer(s.cfg.IterationTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case err := <-waitCh:
		res := classifyExit(err)
		res.pid = pid
		return res

	case <-timeoutCh:
		s.log.Warn("iteration timeout exceeded, terminating child", map[string]interface{}{"pid": pid})
		err := s.terminate(pid, waitCh)
		res := classifyExit(err)
		res.pid = pid
		res.reason = ExitReasonTimeout
		res.signal = "" // The kill was ours, not the scheduler's
		return res

	case <-done:
		if s.cfg.ForwardSignals {
			s.log.Info("forwarding termination to child", map[string]interface{}{"pid": pid})
			err := s.terminate(pid, waitCh)
			res := classifyExit(err)
			res.pid = pid
			return res
		}
		// Not forwarding: abandon the child to its own process group
		// and return promptly. Cancellation must exit in bounded time
		// either way; only the signal delivery is configurable.
		s.log.Info("abandoning running child on termination", map[string]interface{}{"pid": pid})
		return childResult{pid: pid, exitCode: -1, reason: ExitReasonInterrupted}
	}
}

// terminate sends SIGTERM to the child's process group, waits out the
// grace period, then escalates to SIGKILL.
func (s *Supervisor) terminate(pid int, waitCh <-chan error) error {
	syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case err := <-waitCh:
		return err
	case <-time.After(s.cfg.GracePeriod):
		s.log.Warn("grace period expired, killing child", map[string]interface{}{"pid": pid})
		syscall.Kill(-pid, syscall.SIGKILL)
		return <-waitCh
	}
}

// classifyExit extracts exit code and reason from cmd.Wait's error.
func classifyExit(err error) childResult {
	if err == nil {
		return childResult{exitCode: 0, reason: ExitReasonSuccess}
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			res := childResult{exitCode: code, reason: determineExitReason(code, status)}
			if status.Signaled() {
				res.signal = signalName(status.Signal())
			}
			return res
		}
		return childResult{exitCode: code, reason: ExitReasonError}
	}

	return childResult{exitCode: -1, reason: ExitReasonUnknown, err: err}
}

package supervisor

import (
	"fmt"
	"syscall"
)

// ExitReason describes why a child invocation ended.
type ExitReason string

const (
	ExitReasonSuccess     ExitReason = "success"     // Exit code 0
	ExitReasonError       ExitReason = "error"       // Exit code != 0
	ExitReasonSignal      ExitReason = "signal"      // Killed by signal
	ExitReasonTimeout     ExitReason = "timeout"     // Per-iteration timeout hit
	ExitReasonInterrupted ExitReason = "interrupted" // Supervisor stopped, child abandoned
	ExitReasonUnknown     ExitReason = "unknown"
)

// IsSuccess returns true if the exit represents success.
func (r ExitReason) IsSuccess() bool {
	return r == ExitReasonSuccess
}

// determineExitReason classifies a child exit from its wait status.
func determineExitReason(exitCode int, status syscall.WaitStatus) ExitReason {
	if status.Exited() {
		if exitCode == 0 {
			return ExitReasonSuccess
		}
		return ExitReasonError
	}
	if status.Signaled() {
		return ExitReasonSignal
	}
	return ExitReasonUnknown
}

// signalName returns a readable name for a signal number.
func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	case syscall.SIGPIPE:
		return "SIGPIPE"
	default:
		return fmt.Sprintf("SIG%d", sig)
	}
}

package supervisor

import (
	"syscall"
	"testing"
)

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig      syscall.Signal
		expected string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGKILL, "SIGKILL"},
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGHUP, "SIGHUP"},
		{syscall.Signal(64), "SIG64"},
	}

	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.expected {
			t.Errorf("signalName(%d) = %q, expected %q", tt.sig, got, tt.expected)
		}
	}
}

func TestExitReason_IsSuccess(t *testing.T) {
	if !ExitReasonSuccess.IsSuccess() {
		t.Error("ExitReasonSuccess should be success")
	}
	for _, r := range []ExitReason{ExitReasonError, ExitReasonSignal, ExitReasonTimeout, ExitReasonInterrupted, ExitReasonUnknown} {
		if r.IsSuccess() {
			t.Errorf("%s should not be success", r)
		}
	}
}

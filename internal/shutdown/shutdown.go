package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"keeprun/internal/logging"
)

// Manager coordinates graceful teardown when the host scheduler sends a
// termination signal. Cleanup functions run in reverse registration
// order under a bounded timeout.
type Manager struct {
	mu      sync.Mutex
	funcs   []func(context.Context) error
	timeout time.Duration
	log     *logging.Logger

	received os.Signal
}

// New creates a shutdown manager.
func New(timeout time.Duration, log *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		log:     log,
	}
}

// Register adds a cleanup function. Functions run LIFO.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Notify starts listening for termination signals and cancels the
// returned context when one arrives. SIGINT and SIGTERM are what PBS
// and interactive use deliver; both mean "stop scheduling iterations".
func (m *Manager) Notify(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			m.log.Info("received termination signal", map[string]interface{}{"signal": sig.String()})
			m.mu.Lock()
			m.received = sig
			m.mu.Unlock()
			cancel()
		case <-parent.Done():
			cancel()
		}
	}()

	return ctx
}

// Signal returns the termination signal, if one was received.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Shutdown executes all registered cleanup functions in reverse order.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	funcs := make([]func(context.Context) error, len(m.funcs))
	copy(funcs, m.funcs)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			m.log.Error("shutdown step failed", map[string]interface{}{"step": i, "error": err.Error()})
		}
	}
}

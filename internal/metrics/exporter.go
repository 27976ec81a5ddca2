package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"keeprun/internal/logging"
)

// Exporter serves supervisor counters in Prometheus text format. The
// endpoint is optional: batch nodes usually have no scrape target, so
// nothing listens unless an address is configured.
type Exporter struct {
	metrics   *Metrics
	registry  *promclient.Registry
	startTime time.Time
	log       *logging.Logger
	server    *http.Server
}

// NewExporter builds an exporter over the given counters.
func NewExporter(m *Metrics, log *logging.Logger) *Exporter {
	e := &Exporter{
		metrics:   m,
		registry:  promclient.NewRegistry(),
		startTime: time.Now(),
		log:       log,
	}
	e.register()
	return e
}

func (e *Exporter) register() {
	counter := func(name, help string, load func() uint64) {
		e.registry.MustRegister(promclient.NewCounterFunc(
			promclient.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(load()) },
		))
	}
	gauge := func(name, help string, load func() float64) {
		e.registry.MustRegister(promclient.NewGaugeFunc(
			promclient.GaugeOpts{Name: name, Help: help},
			load,
		))
	}

	counter("keeprun_iterations_started_total", "Iterations the supervisor has begun", e.metrics.IterationsStarted.Load)
	counter("keeprun_iterations_completed_total", "Iterations whose child has exited", e.metrics.IterationsCompleted.Load)
	counter("keeprun_child_exit_zero_total", "Child exits with code 0", e.metrics.ExitZero.Load)
	counter("keeprun_child_exit_nonzero_total", "Child exits with nonzero code", e.metrics.ExitNonZero.Load)
	counter("keeprun_child_signaled_total", "Child exits caused by a signal", e.metrics.Signaled.Load)
	gauge("keeprun_last_exit_code", "Exit code of the most recent child", func() float64 {
		return float64(e.metrics.LastExitCode.Load())
	})
	gauge("keeprun_last_child_runtime_seconds", "Runtime of the most recent child", func() float64 {
		return float64(e.metrics.LastChildRuntimeMS.Load()) / 1000.0
	})
	gauge("keeprun_uptime_seconds", "Supervisor uptime", func() float64 {
		return time.Since(e.startTime).Seconds()
	})
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	families, err := e.registry.Gather()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error gathering metrics: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			e.log.Error("failed to encode metric family", map[string]interface{}{"error": err.Error()})
			return
		}
	}
}

// RegisterRoutes wires the exporter endpoints onto a router.
func (e *Exporter) RegisterRoutes(r *mux.Router) {
	r.Handle("/metrics", e).Methods("GET")
	r.HandleFunc("/healthz", e.handleHealth).Methods("GET")
}

func (e *Exporter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok uptime=%.0fs iterations=%d\n",
		time.Since(e.startTime).Seconds(), e.metrics.IterationsCompleted.Load())
}

// Serve starts the metrics HTTP server on addr. Non-blocking; Stop
// shuts the server down.
func (e *Exporter) Serve(addr string) {
	router := mux.NewRouter()
	e.RegisterRoutes(router)

	e.server = &http.Server{Addr: addr, Handler: router}
	go func() {
		e.log.Info("metrics endpoint listening", map[string]interface{}{"addr": addr})
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.log.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// Stop gracefully shuts the metrics server down.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}

// Package metrics exposes server counters and gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Registry owns one process's collectors. Each process role gets its own
// so standalone mode can run both servers without name clashes.
type Registry struct {
	reg *prometheus.Registry

	Sessions       prometheus.Gauge
	PendingLogins  prometheus.Gauge
	PendingClients prometheus.Gauge

	Logins          prometheus.Counter
	LoginsExpired   prometheus.Counter
	InvalidMessages prometheus.Counter
}

// New creates a registry whose series carry role as a constant label.
func New(role string) *Registry {
	labels := prometheus.Labels{"role": role}
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tmwserv_sessions",
			Help:        "Open client connections.",
			ConstLabels: labels,
		}),
		PendingLogins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tmwserv_pending_logins",
			Help:        "Authorizations waiting for their client.",
			ConstLabels: labels,
		}),
		PendingClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tmwserv_pending_clients",
			Help:        "Connections waiting for their authorization.",
			ConstLabels: labels,
		}),
		Logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tmwserv_logins_total",
			Help:        "Successful logins.",
			ConstLabels: labels,
		}),
		LoginsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tmwserv_logins_expired_total",
			Help:        "Authorizations dropped unclaimed.",
			ConstLabels: labels,
		}),
		InvalidMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tmwserv_invalid_messages_total",
			Help:        "Messages answered with the invalid-type response.",
			ConstLabels: labels,
		}),
	}
	r.reg.MustRegister(
		r.Sessions, r.PendingLogins, r.PendingClients,
		r.Logins, r.LoginsExpired, r.InvalidMessages,
	)
	return r
}

// WithRuntime adds the Go runtime and process collectors.
func (r *Registry) WithRuntime() *Registry {
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry, for tests and merging.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("指標服務啟動", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

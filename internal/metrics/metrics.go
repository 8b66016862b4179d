// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the daemon's Prometheus counters and gauges,
// optionally served over HTTP at --sys-metrics-addr, grounded on the cie
// CLI's promhttp.Handler() wiring in cmd/cie/index.go.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Registry holds every metric the pipeline updates. All fields are safe
// for concurrent use (the prometheus client library handles its own
// locking); the daemon's single-threaded dispatch loop means most of
// these are only ever touched from one goroutine anyway, except the
// gauges the ignore ledger/open throttle publish, which must be kept
// current by the caller on every event.
type Registry struct {
	EventsProcessed  *prometheus.CounterVec
	ModuleErrors     *prometheus.CounterVec
	IgnoreLedgerSize prometheus.Gauge
	OpenThrottleSize prometheus.Gauge
	SyncWrites       *prometheus.CounterVec
	GitCommits       prometheus.Counter
	GitPushes        *prometheus.CounterVec
	GitPushBackoff   prometheus.Gauge

	registry *prometheus.Registry
}

// New registers every metric against its own registry (never the global
// default registerer, so tests can construct as many Registries as they
// like without "duplicate metrics collector registration" panics).
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lucynotesd_events_processed_total",
			Help: "Filesystem events that survived filtering/throttling and reached the module pipeline, by event kind.",
		}, []string{"kind"}),
		ModuleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lucynotesd_module_errors_total",
			Help: "Module handler invocations that returned an error, by module name.",
		}, []string{"module"}),
		IgnoreLedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lucynotesd_ignore_ledger_size",
			Help: "Number of paths currently tracked in the self-write ignore ledger.",
		}),
		OpenThrottleSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lucynotesd_open_throttle_size",
			Help: "Number of paths currently tracked in the open-event throttle cache.",
		}),
		SyncWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lucynotesd_sync_writes_total",
			Help: "Files written by the synchronizer, by target (markdown, widget, mirror).",
		}, []string{"target"}),
		GitCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lucynotesd_git_commits_total",
			Help: "Commits produced by the batched git committer.",
		}),
		GitPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lucynotesd_git_pushes_total",
			Help: "Push attempts by the batched git committer, by outcome (ok, rejected).",
		}, []string{"outcome"}),
		GitPushBackoff: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lucynotesd_git_push_backoff_seconds",
			Help: "Current push backoff window of the repository pushed most recently.",
		}),
	}
	reg.MustRegister(
		r.EventsProcessed, r.ModuleErrors, r.IgnoreLedgerSize, r.OpenThrottleSize,
		r.SyncWrites, r.GitCommits, r.GitPushes, r.GitPushBackoff,
	)
	r.registry = reg
	return r
}

func (r *Registry) handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics at addr until ctx is
// canceled. A non-empty addr is required; callers gate this on
// --sys-metrics-addr being set.
func (r *Registry) Serve(ctx context.Context, addr string, log ui.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics http server error: %v", err)
	}
}

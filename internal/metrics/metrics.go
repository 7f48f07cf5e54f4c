// Package metrics exposes the hub's Prometheus counters. Everything is
// registered on the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshRuns counts completed refresh ticks per job.
	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_refresh_runs_total",
		Help: "Completed refresh ticks, by job.",
	}, []string{"job"})

	// RefreshDropped counts ticks dropped because the previous tick of the
	// same job was still running.
	RefreshDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_refresh_dropped_total",
		Help: "Refresh ticks dropped due to an in-flight tick, by job.",
	}, []string{"job"})

	// UpstreamErrors counts failed upstream batches per provider.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_upstream_errors_total",
		Help: "Upstream request failures, by provider.",
	}, []string{"provider"})

	// ForexCreditsUsed counts credits consumed against the forex budget.
	ForexCreditsUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_forex_credits_used_total",
		Help: "Forex provider credits consumed (one per symbol).",
	})

	// PricesUpserted counts successful price writes per asset class.
	PricesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_prices_upserted_total",
		Help: "Price records written, by asset class.",
	}, []string{"asset_class"})
)

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsb_updates_total",
			Help: "Telegram updates handled, by kind",
		},
		[]string{"kind"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsb_file_deliveries_total",
			Help: "Files copied to users, by result",
		},
		[]string{"result"},
	)

	AdEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsb_ad_events_total",
			Help: "Ad verification events, by event and whether the transition applied",
		},
		[]string{"event", "applied"},
	)

	ReaperProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_reaper_processed_total",
		Help: "Scheduled deletions removed by the reaper",
	})

	ReaperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_reaper_errors_total",
		Help: "Scheduled deletions whose message delete failed",
	})

	ReaperRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsb_reaper_remaining",
		Help: "Overdue deletions left after the last reaper batch",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsb_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fsb_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func Applied(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

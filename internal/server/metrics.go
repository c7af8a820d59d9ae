package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus instruments on a private
// registry, so multiple servers (tests included) never collide.
type metrics struct {
	registry *prometheus.Registry

	registrations prometheus.Counter
	logins        prometheus.Counter
	pulls         prometheus.Counter
	pushes        prometheus.Counter
	pushedRecords prometheus.Histogram
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,
		registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "studylog_registrations_total",
			Help: "Accounts created.",
		}),
		logins: factory.NewCounter(prometheus.CounterOpts{
			Name: "studylog_logins_total",
			Help: "Successful logins.",
		}),
		pulls: factory.NewCounter(prometheus.CounterOpts{
			Name: "studylog_document_pulls_total",
			Help: "Record documents served.",
		}),
		pushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "studylog_document_pushes_total",
			Help: "Record documents replaced.",
		}),
		pushedRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "studylog_pushed_records",
			Help:    "Records per pushed document.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

// Package metrics holds Prometheus instruments used across the intake
// service.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() in main.go is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Submissions counts Submit calls by final outcome: success, invalid,
	// blocked, upload_failed, persist_failed, busy.
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"})

	BanChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_ban_checks_total",
			Help: "Ban-registry checks by result (allowed, banned, skipped, error).",
		}, []string{"result"})

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_uploads_total",
			Help: "Photo uploads to blob storage by result.",
		}, []string{"result"})

	AttachmentRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_attachment_rejections_total",
			Help: "Rejected photo batches by reason (capacity, type, size).",
		}, []string{"reason"})

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_active_sessions",
			Help: "Form sessions currently held in memory.",
		})

	SessionEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_session_evictions_total",
			Help: "Form sessions evicted on idle TTL or capacity pressure.",
		})

	SubmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_submit_duration_seconds",
			Help:    "Wall time of Submit from guard to final state.",
			Buckets: prometheus.DefBuckets,
		})
)

func init() {
	prometheus.MustRegister(
		Submissions,
		BanChecks,
		Uploads,
		AttachmentRejections,
		ActiveSessions,
		SessionEvictions,
		SubmitDuration,
	)
}

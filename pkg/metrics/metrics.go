package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "artifact_submissions_total", Help: "Artifact submissions by type and result."},
		[]string{"artifact_type", "result"},
	)
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "artifact_verifications_total", Help: "Verification decisions by type and decision."},
		[]string{"artifact_type", "decision"},
	)
	Reclaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "blob_reclaims_total", Help: "Superseded blob deletions by result (deleted|retried|escalated|dropped)."},
		[]string{"result"},
	)
	ReclaimQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "compliance", Name: "reclaim_queue_depth", Help: "Blob keys waiting for in-process reclamation."},
	)
	ConcurrentModifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "concurrent_modifications_total", Help: "Lock contention and version conflicts by operation."},
		[]string{"operation"},
	)
	EligibilityEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "compliance", Name: "eligibility_evaluations_total", Help: "Eligibility evaluations by verdict."},
		[]string{"eligible"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Submissions)
	reg.MustRegister(Verifications)
	reg.MustRegister(Reclaims)
	reg.MustRegister(ReclaimQueueDepth)
	reg.MustRegister(ConcurrentModifications)
	reg.MustRegister(EligibilityEvaluations)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	ReportsSubmitted     prometheus.Counter
	AssignmentsDelivered prometheus.Counter
	AssignmentsExpired   prometheus.Counter
	AssignmentsInactive  prometheus.Counter
	VotesCast            prometheus.Counter
	Verdicts             *prometheus.CounterVec
	CaptchasIssued       prometheus.Counter
	CaptchasExpired      prometheus.Counter
	ReviewersOnDuty      prometheus.Gauge
}

// New creates the collectors and registers them on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_reports_submitted_total",
			Help: "Reports accepted by the pipeline",
		}),
		AssignmentsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_assignments_delivered_total",
			Help: "Review requests delivered to reviewers",
		}),
		AssignmentsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_assignments_expired_total",
			Help: "Delivered assignments that ran out their TTL",
		}),
		AssignmentsInactive: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_assignments_inactive_total",
			Help: "Accepted assignments that missed the vote deadline",
		}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_votes_cast_total",
			Help: "Votes recorded",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_verdicts_total",
			Help: "Final verdicts by kind",
		}, []string{"verdict"}),
		CaptchasIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_captchas_issued_total",
			Help: "Liveness captchas sent",
		}),
		CaptchasExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_captchas_expired_total",
			Help: "Liveness captchas that expired unanswered",
		}),
		ReviewersOnDuty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_reviewers_on_duty",
			Help: "Reviewers currently on shift",
		}),
	}

	reg.MustRegister(
		m.ReportsSubmitted,
		m.AssignmentsDelivered,
		m.AssignmentsExpired,
		m.AssignmentsInactive,
		m.VotesCast,
		m.Verdicts,
		m.CaptchasIssued,
		m.CaptchasExpired,
		m.ReviewersOnDuty,
	)

	return m
}

// NewNop returns collectors registered on a throwaway registry. Used by tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

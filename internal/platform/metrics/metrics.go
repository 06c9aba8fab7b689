package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ApplicationsRegistered prometheus.Counter
	SlotsReserved          *prometheus.CounterVec
	ReservationsRejected   *prometheus.CounterVec
	AssessmentsScored      *prometheus.CounterVec
	CredentialsIssued      prometheus.Counter
	OTPVerifications       *prometheus.CounterVec
	RoadTestsEvaluated     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sarathi_applications_registered_total",
			Help: "Total number of applications registered",
		}),
		SlotsReserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sarathi_slots_reserved_total",
			Help: "Total slot reservations by test category",
		}, []string{"category"}),
		ReservationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sarathi_reservations_rejected_total",
			Help: "Rejected slot reservations by reason",
		}, []string{"reason"}),
		AssessmentsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sarathi_assessments_scored_total",
			Help: "Scored assessment submissions by type and outcome",
		}, []string{"type", "outcome"}),
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sarathi_credentials_issued_total",
			Help: "Total learner credentials issued",
		}),
		OTPVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sarathi_otp_verifications_total",
			Help: "One-time code verification attempts by outcome",
		}, []string{"outcome"}),
		RoadTestsEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sarathi_road_tests_evaluated_total",
			Help: "Road test evaluations by outcome",
		}, []string{"outcome"}),
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Offer metrics
	OffersReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flotilla_offers_received_total",
			Help: "Total number of resource offers received",
		},
	)

	OffersAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flotilla_offers_accepted_total",
			Help: "Total number of resource offers accepted",
		},
	)

	OffersDeclined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flotilla_offers_declined_total",
			Help: "Total number of resource offers declined",
		},
	)

	// Launch metrics
	TasksLaunched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flotilla_tasks_launched_total",
			Help: "Total number of tasks launched",
		},
	)

	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_recoveries_total",
			Help: "Total number of recovery launches by type",
		},
		[]string{"type"},
	)

	// Reconciliation metrics
	ReconciliationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_reconciliation_requests_total",
			Help: "Total number of reconciliation requests by kind (explicit, implicit)",
		},
		[]string{"kind"},
	)

	ReconciliationRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_reconciliation_remaining",
			Help: "Number of task ids not yet confirmed by the cluster",
		},
	)

	// Plan metrics
	PlanStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flotilla_plan_status",
			Help: "Plan status (1 for the current status label, 0 otherwise)",
		},
		[]string{"plan", "status"},
	)

	OfferCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flotilla_offer_cycle_duration_seconds",
			Help:    "Duration of one offer processing cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Status update metrics
	StatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_status_updates_total",
			Help: "Total number of task status updates by state",
		},
		[]string{"state"},
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(
		OffersReceived,
		OffersAccepted,
		OffersDeclined,
		TasksLaunched,
		RecoveriesTotal,
		ReconciliationRequestsTotal,
		ReconciliationRemaining,
		PlanStatus,
		OfferCycleDuration,
		StatusUpdatesTotal,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetPlanStatus records the current status of a plan, clearing other
// status labels for that plan.
func SetPlanStatus(plan string, status string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == status {
			value = 1.0
		}
		PlanStatus.WithLabelValues(plan, s).Set(value)
	}
}

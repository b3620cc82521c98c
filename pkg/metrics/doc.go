/*
Package metrics exports Prometheus metrics for the Flotilla scheduler.

Metrics cover the offer pipeline (offers received, accepted, declined, and
cycle duration), task launches and recoveries, the reconciliation protocol
(request counts by kind, remaining unconfirmed tasks), status update volume
by state, and per-plan status gauges.

Register the collectors once at startup and serve them through the operator
API:

	metrics.Init()
	mux.Handle("/metrics", metrics.Handler())

Timer provides ergonomic duration observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OfferCycleDuration)

SetPlanStatus keeps the per-plan status gauge one-hot across the status
label values so dashboards can plot plan state transitions directly.
*/
package metrics

/*
Package scheduler is the top of the engine: it receives driver callbacks,
enforces the concurrency discipline, and wires the plan machinery together.

# Single writer core

All mutating work runs on one serial executor. Driver callbacks (offers,
status updates, registration, errors) arrive on the driver binding's
thread, enqueue a closure, and return; the executor drains the unbounded
queue on a single goroutine. This removes data races inside the plan graph
and the reconciler without per-object locks.

# Offer cycle

	┌─────────────────────────────────────────────────────────┐
	│                    ResourceOffers                       │
	└──────────────────────┬──────────────────────────────────┘
	                       ▼
	          reconciled?  ── no ──▶  decline everything
	                       │ yes
	                       ▼
	          coordinator.ProcessOffers (deploy, then recovery)
	                       ▼
	          cleaner pass over unused offers
	                       ▼
	          decline the remainder

Every offer in the batch is either accepted or declined by the end of the
cycle.

# Status updates

A status update is persisted first, then routed to the reconciler, the
deployment plan, and the recovery plan, in that order. A status that fails
to persist is dropped for the cycle; the cluster manager reissues it.
A status signalling failure revives offers so recovery can act.

# Lifecycle and fatality

Initialization (the config update handshake, plan construction, the
reconciler load) is deferred until the Registered callback: nothing is
written to the stores before the cluster has acknowledged the framework.
Ready is closed once the plan managers exist, unblocking the operator API.

The engine never exits the process. Fatal conditions — initialization
failure, a failed framework-id write, re-registration, an offer rescind,
disconnection, a driver error — deliver a FatalError carrying a distinct
exit code on the Fatal channel; the process supervisor consumes it,
flushes logs, and exits. Re-registration and rescind fatality are
configurable and default to on.

After every plan status change the scheduler re-evaluates offer
suppression: offers are suppressed while no plan has work and revived when
one does, with the suppressed flag mirrored to the state store.
*/
package scheduler

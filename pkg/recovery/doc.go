/*
Package recovery turns observed task failures into a recovery plan.

The recovery manager scans the state store for tasks that have left their
healthy run state. Each failing pod instance becomes a step with one of
two flavors:

  - Transient: the pod is relaunched on its existing reservations.
  - Permanent: the failure monitor has declared the task permanently lost;
    the step's launch first destroys the old volumes and reservations on
    the matching offer, then reserves and launches fresh.

The plan is regenerated, not mutated in place, whenever the failing set
changes; steps that are already placing work are preserved so an in-flight
recovery is never abandoned mid-launch. A failure is only live while the
failed task id is still the current incarnation of its task name in the
state store, so statuses superseded by a successful relaunch age out
naturally.

TimedFailureMonitor declares permanence after a task has been continuously
unhealthy for a configured timeout; NeverFailureMonitor disables permanent
failures entirely. Destructive launches across the manager are
rate-limited by TimedLaunchConstrainer, which enforces a minimum delay
between permanent recoveries; transient recoveries are unconstrained.

The manager implements plan.Manager, so the coordinator dispatches
recovery with the same machinery as deployment, ordered behind it:
deployment sees every offer first, and pods the deployment plan acted on
in a cycle are dirty for recovery until the next cycle.
*/
package recovery

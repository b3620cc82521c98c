/*
Package reconcile implements the task-status reconciliation protocol that
gates launches after (re)registration.

The cluster is the source of truth for task state. After registering, the
framework cannot trust its stored view until every known task has been
reconfirmed. The reconciler tracks the set of task ids whose state the
cluster has not yet confirmed and drives the two-stage protocol:

 1. Explicit: while unconfirmed tasks remain, periodically ask the cluster
    for their status, backing off multiplicatively (8s, 16s, then capped at
    30s) between requests. Any non-lost status received for a tracked task
    confirms it.
 2. Implicit: once the set is empty, issue a single empty reconciliation
    request covering everything the master knows, per the resource
    manager's reconciliation protocol.

IsReconciled holds once both stages are done. The scheduler checks it at
the top of every offer cycle and declines all offers until it holds, so no
launch can race a stale view of the cluster.

Reconcile is invoked on every offer batch and (re)registration; it only talks
to the driver when the protocol demands it. ForceComplete short-circuits
the protocol at the cost of possible state divergence.
*/
package reconcile

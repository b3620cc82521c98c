/*
Package plan implements the plan-driven offer dispatch engine: the
plan/phase/step hierarchy, the strategies that decide which children are
candidates for work, and the coordinator that multiplexes multiple plans
across a stream of resource offers.

# Hierarchy

Plans own phases; phases own steps. A step is the smallest unit of work,
driving one pod instance through its lifecycle:

	PENDING ──Start()──▶ PREPARED ──launch──▶ STARTING ──goal──▶ COMPLETE
	   ▲                                                            │
	   └────────── config change, lost launch, admin restart ───────┘

Phase and plan status is derived from children under the container's
strategy: ERROR dominates, a fully complete container is COMPLETE, an
interrupted container reports WAITING, partial progress is IN_PROGRESS.

# Strategies

A Strategy decides the candidate set from a container's children:

  - SerialStrategy: the first incomplete child, strictly in order
  - ParallelStrategy: every child awaiting work
  - SerialWithErrors / ParallelWithErrors: as above, skipping ERROR
    children instead of blocking at them
  - DependencyStrategy: children whose declared predecessors are COMPLETE

All strategies share the Interruptible mixin: while interrupted the
candidate set is empty and the container reports WAITING; Interrupt and
Proceed are idempotent and safe under concurrent reads.

# Dispatch

Scheduler places one candidate step against an offer batch: it starts the
step, evaluates the resulting requirement, accepts matching offers, and
feeds the launched task ids back to the step. Coordinator walks its plan
managers in priority order over the batch; offers used by an earlier
manager are unavailable to later ones, and every pod instance a manager
acted on is a dirty asset later managers must skip that cycle. Deployment
therefore sees offers before recovery, and the two never act on the same
pod instance concurrently.

Manager owns one plan, routes task statuses into it, and notifies when the
plan's derived status changes; the coordinator publishes those changes on
the event broker so the framework scheduler can suppress or revive offers.
*/
package plan

/*
Package types defines the core data structures used throughout Flotilla.

This package contains the fundamental types that represent Flotilla's domain
model: service specifications, pods and tasks, resource offers, operations,
and task status updates. These types are used by all other packages for
state management, offer evaluation, and plan orchestration.

# Design

Offers, operations, and task statuses are wire-defined concepts in the
underlying resource manager. They are kept here as plain records so that the
plan engine and its tests never depend on a wire-format library; conversions
to and from the actual RPC encoding happen at the driver boundary.

The main groups of types are:

Service model:
  - ServiceSpec: declarative description of a service, one generation per
    stored config
  - PodSpec: co-scheduled group of tasks identified by (type, index),
    optionally carrying named ResourceSets shared by its tasks
  - TaskSpec: a single task's command, resources (inline or a pod-level
    resource set referenced by id), volumes, and goal state
  - PlacementRule: declarative offer constraints (hostnames, attributes)

Offer model:
  - Offer: a time-bounded promise of resources on an agent
  - Resource: a scalar or range resource entry, possibly reserved and
    possibly carrying a persistent volume
  - Operation: RESERVE, UNRESERVE, CREATE, DESTROY, or LAUNCH
  - TaskInfo: the launchable task definition produced by offer evaluation

Status model:
  - TaskStatus: asynchronous cluster update for a task
  - TaskState: the task state enum with Terminal and NeedsRecovery helpers

Asset identifies a pod instance (type, index). It is the unit of mutual
exclusion between plans: within one offer cycle no two steps targeting the
same asset may be launched.
*/
package types

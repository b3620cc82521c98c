package plan

import (
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/types"
)

// Element is any node of the plan tree: a step, a phase, or a plan.
type Element interface {
	ID() string
	Name() string
	Status() Status
}

// Step is the smallest unit of work. A step owns its lifecycle state
// machine and exposes an offer requirement when it is ready to be placed.
//
// State machine:
//
//	PENDING  -> PREPARED  via Start returning a requirement
//	PREPARED -> STARTING  via UpdateOfferStatus with launched task ids
//	STARTING -> COMPLETE  via Update observing the goal state of every task
//	any      -> ERROR     on invariant violation
//	COMPLETE -> PENDING   on config-target mismatch or admin restart
type Step interface {
	Element

	// Start transitions PENDING -> PREPARED and returns the step's offer
	// requirement. Re-invoking a PREPARED step returns the same
	// requirement; any other state returns nil.
	Start() *offer.Requirement

	// UpdateOfferStatus reports the outcome of offer evaluation for the
	// requirement returned by Start. A non-empty launched set transitions
	// PREPARED -> STARTING; an empty set leaves the step PREPARED.
	UpdateOfferStatus(launchedTaskIDs []string)

	// Update feeds a task status into the step. Statuses for unknown task
	// ids are ignored.
	Update(status types.TaskStatus)

	// Restart is the admin transition back to PENDING.
	Restart()

	// ForceComplete is the admin transition to COMPLETE.
	ForceComplete()

	// Assets returns the pod instances this step acts on.
	Assets() []types.Asset

	// TaskIDs returns the task ids of the step's current launch attempt.
	TaskIDs() []string
}

package driver

import (
	"github.com/cuemby/flotilla/pkg/types"
)

// Driver is the outbound capability surface of the cluster resource
// manager. It is the only way the engine talks to the cluster; the wire
// encoding behind it is not this module's concern.
//
// The driver is shared state: only the scheduler's serial executor may call
// it.
type Driver interface {
	// AcceptOffers answers one offer with an ordered list of operations.
	AcceptOffers(offerID string, operations []types.Operation) error

	// DeclineOffer returns an unused offer to the resource manager.
	DeclineOffer(offerID string) error

	// KillTask asks the cluster to kill a task.
	KillTask(taskID string) error

	// ReconcileTasks requests status for the given tasks. An empty list is
	// an implicit reconciliation covering every task the master knows.
	ReconcileTasks(statuses []types.TaskStatus) error

	// SuppressOffers pauses offer delivery while there is no work.
	SuppressOffers() error

	// ReviveOffers resumes offer delivery.
	ReviveOffers() error
}

// Handler is the inbound callback surface the driver invokes. Callbacks
// arrive on the driver's own thread; implementations hand work off to their
// serial executor immediately.
type Handler interface {
	Registered(d Driver, frameworkID string, master string)
	Reregistered(d Driver, master string)
	ResourceOffers(d Driver, offers []*types.Offer)
	OfferRescinded(d Driver, offerID string)
	StatusUpdate(d Driver, status types.TaskStatus)
	FrameworkMessage(d Driver, executorID, agentID string, data []byte)
	Disconnected(d Driver)
	AgentLost(d Driver, agentID string)
	ExecutorLost(d Driver, executorID, agentID string, code int)
	Error(d Driver, message string)
}

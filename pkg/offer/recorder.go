package offer

import (
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
)

// PersistentRecorder stores launched TaskInfos into the state store so the
// framework can reattach to its tasks after a restart.
type PersistentRecorder struct {
	store storage.Store
}

// NewPersistentRecorder creates a recorder writing to the given store.
func NewPersistentRecorder(store storage.Store) *PersistentRecorder {
	return &PersistentRecorder{store: store}
}

// Record persists the TaskInfos of LAUNCH operations. Other operation
// types carry no framework-side state to persist.
func (r *PersistentRecorder) Record(op types.Operation, offer *types.Offer) error {
	if op.Type != types.OperationLaunch {
		return nil
	}
	return r.store.StoreTasks(op.Tasks...)
}

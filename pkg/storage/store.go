package storage

import (
	"errors"

	"github.com/cuemby/flotilla/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for framework state storage. Writes happen
// only from the scheduler's serial executor; reads may come from any
// goroutine, so implementations must be internally thread-safe.
type Store interface {
	// Framework identity
	StoreFrameworkID(id string) error
	FrameworkID() (string, error)
	ClearFrameworkID() error

	// Launched tasks, keyed by task name
	StoreTasks(infos ...*types.TaskInfo) error
	Task(name string) (*types.TaskInfo, error)
	Tasks() ([]*types.TaskInfo, error)
	DeleteTask(name string) error

	// Last received status per task id
	StoreStatus(status types.TaskStatus) error
	Status(taskID string) (types.TaskStatus, error)
	Statuses() ([]types.TaskStatus, error)

	// Offer suppression flag, mirrored for survivability across restarts
	SetSuppressed(suppressed bool) error
	Suppressed() (bool, error)

	// Raw property space used by the config store
	PutProperty(key string, value []byte) error
	GetProperty(key string) ([]byte, error)
	DeleteProperty(key string) error

	// Utility
	Close() error
}

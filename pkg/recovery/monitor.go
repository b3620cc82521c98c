package recovery

import (
	"sync"
	"time"

	"github.com/cuemby/flotilla/pkg/types"
)

// FailureMonitor decides when an unhealthy task is permanently lost, which
// upgrades its recovery from a relaunch to a destructive rebuild.
type FailureMonitor interface {
	// Observe records a status update for failure tracking.
	Observe(status types.TaskStatus)

	// PermanentlyFailed reports whether the task is permanently lost.
	PermanentlyFailed(taskID string) bool
}

// NeverFailureMonitor never declares a task permanently failed. Used when
// permanent-failure detection is disabled: every recovery stays transient.
type NeverFailureMonitor struct{}

func (NeverFailureMonitor) Observe(types.TaskStatus)      {}
func (NeverFailureMonitor) PermanentlyFailed(string) bool { return false }

// TimedFailureMonitor declares a task permanently failed once it has been
// continuously unhealthy for the configured timeout.
type TimedFailureMonitor struct {
	mu           sync.Mutex
	timeout      time.Duration
	firstFailure map[string]time.Time
	now          func() time.Time
}

// NewTimedFailureMonitor creates a monitor with the given timeout.
func NewTimedFailureMonitor(timeout time.Duration) *TimedFailureMonitor {
	return &TimedFailureMonitor{
		timeout:      timeout,
		firstFailure: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Observe tracks the first failure time per task; a healthy status clears
// the task's failure window.
func (m *TimedFailureMonitor) Observe(status types.TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status.State.NeedsRecovery() {
		if _, seen := m.firstFailure[status.TaskID]; !seen {
			m.firstFailure[status.TaskID] = m.now()
		}
		return
	}
	delete(m.firstFailure, status.TaskID)
}

// PermanentlyFailed reports whether the task's failure window exceeds the
// timeout.
func (m *TimedFailureMonitor) PermanentlyFailed(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	first, failing := m.firstFailure[taskID]
	return failing && m.now().Sub(first) >= m.timeout
}

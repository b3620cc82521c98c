package plan

import (
	"sync"

	"github.com/cuemby/flotilla/pkg/types"
)

// Manager owns one plan: it reports candidate steps, routes task statuses
// to the right steps, and exposes the admin surface. Managers notify when
// their plan's derived status changes.
type Manager interface {
	Plan() *Plan

	// Candidates returns the plan's candidate steps, excluding any step
	// whose assets appear in dirty.
	Candidates(dirty []types.Asset) []Step

	// Update routes a task status into the plan.
	Update(status types.TaskStatus)

	Interrupt()
	Proceed()
	IsInterrupted() bool

	Restart(phaseID, stepID string) error
	ForceComplete(phaseID, stepID string) error

	// SetNotify registers the callback invoked whenever the plan's derived
	// status changes.
	SetNotify(notify func())

	// NotifyOnChange fires the notify callback if the plan's derived
	// status changed since the last check.
	NotifyOnChange()
}

// DefaultManager is the Manager for a static plan.
type DefaultManager struct {
	mu         sync.Mutex
	plan       *Plan
	lastStatus Status
	notify     func()
}

// NewManager creates a manager owning the given plan.
func NewManager(p *Plan) *DefaultManager {
	return &DefaultManager{
		plan:       p,
		lastStatus: p.Status(),
	}
}

func (m *DefaultManager) Plan() *Plan {
	return m.plan
}

func (m *DefaultManager) Candidates(dirty []types.Asset) []Step {
	return m.plan.Candidates(dirty)
}

func (m *DefaultManager) Update(status types.TaskStatus) {
	m.plan.Update(status)
	m.NotifyOnChange()
}

func (m *DefaultManager) Interrupt() {
	m.plan.Strategy().Interrupt()
	m.NotifyOnChange()
}

func (m *DefaultManager) Proceed() {
	m.plan.Strategy().Proceed()
	m.NotifyOnChange()
}

func (m *DefaultManager) IsInterrupted() bool {
	return m.plan.Strategy().IsInterrupted()
}

func (m *DefaultManager) Restart(phaseID, stepID string) error {
	step, err := m.plan.FindStep(phaseID, stepID)
	if err != nil {
		return err
	}
	step.Restart()
	m.NotifyOnChange()
	return nil
}

func (m *DefaultManager) ForceComplete(phaseID, stepID string) error {
	step, err := m.plan.FindStep(phaseID, stepID)
	if err != nil {
		return err
	}
	step.ForceComplete()
	m.NotifyOnChange()
	return nil
}

func (m *DefaultManager) SetNotify(notify func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = notify
}

// NotifyOnChange fires the notify callback if the plan's derived status
// changed since the last check.
func (m *DefaultManager) NotifyOnChange() {
	m.mu.Lock()
	current := m.plan.Status()
	changed := current != m.lastStatus
	m.lastStatus = current
	notify := m.notify
	m.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
}

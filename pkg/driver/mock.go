package driver

import (
	"sync"

	"github.com/cuemby/flotilla/pkg/types"
)

// AcceptCall records one AcceptOffers invocation.
type AcceptCall struct {
	OfferID    string
	Operations []types.Operation
}

// ReconcileCall records one ReconcileTasks invocation.
type ReconcileCall struct {
	Statuses []types.TaskStatus
}

// MockDriver is a Driver that records every call for inspection in tests.
type MockDriver struct {
	mu sync.Mutex

	Accepts    []AcceptCall
	Declined   []string
	Killed     []string
	Reconciles []ReconcileCall
	Suppressed int
	Revived    int

	// AcceptErr, when set, is returned by AcceptOffers.
	AcceptErr error
}

// NewMockDriver creates an empty recording driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

func (m *MockDriver) AcceptOffers(offerID string, operations []types.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcceptErr != nil {
		return m.AcceptErr
	}
	m.Accepts = append(m.Accepts, AcceptCall{OfferID: offerID, Operations: operations})
	return nil
}

func (m *MockDriver) DeclineOffer(offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Declined = append(m.Declined, offerID)
	return nil
}

func (m *MockDriver) KillTask(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Killed = append(m.Killed, taskID)
	return nil
}

func (m *MockDriver) ReconcileTasks(statuses []types.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconciles = append(m.Reconciles, ReconcileCall{Statuses: statuses})
	return nil
}

func (m *MockDriver) SuppressOffers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Suppressed++
	return nil
}

func (m *MockDriver) ReviveOffers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revived++
	return nil
}

// SuppressCalls returns the number of SuppressOffers calls.
func (m *MockDriver) SuppressCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Suppressed
}

// ReviveCalls returns the number of ReviveOffers calls.
func (m *MockDriver) ReviveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Revived
}

// DeclinedOfferIDs returns the ids of all declined offers in call order.
func (m *MockDriver) DeclinedOfferIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Declined...)
}

// AcceptCalls returns a copy of the recorded accept calls.
func (m *MockDriver) AcceptCalls() []AcceptCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AcceptCall(nil), m.Accepts...)
}

// AcceptedOfferIDs returns the ids of all accepted offers in call order.
func (m *MockDriver) AcceptedOfferIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, call := range m.Accepts {
		ids = append(ids, call.OfferID)
	}
	return ids
}

// LaunchedTaskIDs returns the ids of every task in a LAUNCH operation.
func (m *MockDriver) LaunchedTaskIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, call := range m.Accepts {
		for _, op := range call.Operations {
			if op.Type != types.OperationLaunch {
				continue
			}
			for _, task := range op.Tasks {
				ids = append(ids, task.ID)
			}
		}
	}
	return ids
}

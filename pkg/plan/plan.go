package plan

import (
	"errors"

	"github.com/cuemby/flotilla/pkg/types"
	"github.com/google/uuid"
)

// ErrStepNotFound is returned by admin operations targeting an unknown
// phase or step.
var ErrStepNotFound = errors.New("step not found")

// Phase is an ordered list of steps governed by a strategy.
type Phase struct {
	id       string
	name     string
	steps    []Step
	strategy Strategy
}

// NewPhase creates a phase over the given steps.
func NewPhase(name string, steps []Step, strategy Strategy) *Phase {
	return &Phase{
		id:       uuid.New().String(),
		name:     name,
		steps:    steps,
		strategy: strategy,
	}
}

func (p *Phase) ID() string         { return p.id }
func (p *Phase) Name() string       { return p.name }
func (p *Phase) Steps() []Step      { return p.steps }
func (p *Phase) Strategy() Strategy { return p.strategy }

// Status derives the phase status from its steps under the strategy.
func (p *Phase) Status() Status {
	statuses := make([]Status, 0, len(p.steps))
	for _, s := range p.steps {
		statuses = append(statuses, s.Status())
	}
	return Rollup(p.strategy.IsInterrupted(), tolerateErrors(p.strategy, statuses))
}

// tolerateErrors maps ERROR children to COMPLETE for error-tolerant
// strategies, which skip rather than block at errored children.
func tolerateErrors(strategy Strategy, statuses []Status) []Status {
	tolerant, ok := strategy.(interface{ ToleratesErrors() bool })
	if !ok || !tolerant.ToleratesErrors() {
		return statuses
	}
	mapped := make([]Status, len(statuses))
	for i, s := range statuses {
		if s == StatusError {
			s = StatusComplete
		}
		mapped[i] = s
	}
	return mapped
}

// Candidates returns the steps currently eligible for work.
func (p *Phase) Candidates(dirty []types.Asset) []Step {
	elements := make([]Element, 0, len(p.steps))
	for _, s := range p.steps {
		elements = append(elements, s)
	}
	var steps []Step
	for _, el := range p.strategy.Candidates(elements, dirty) {
		steps = append(steps, el.(Step))
	}
	return steps
}

// Plan is an ordered list of phases governed by a strategy.
type Plan struct {
	id       string
	name     string
	phases   []*Phase
	strategy Strategy
}

// NewPlan creates a plan over the given phases.
func NewPlan(name string, phases []*Phase, strategy Strategy) *Plan {
	return &Plan{
		id:       uuid.New().String(),
		name:     name,
		phases:   phases,
		strategy: strategy,
	}
}

func (p *Plan) ID() string         { return p.id }
func (p *Plan) Name() string       { return p.name }
func (p *Plan) Phases() []*Phase   { return p.phases }
func (p *Plan) Strategy() Strategy { return p.strategy }

// Status derives the plan status from its phases under the strategy.
func (p *Plan) Status() Status {
	statuses := make([]Status, 0, len(p.phases))
	for _, ph := range p.phases {
		statuses = append(statuses, ph.Status())
	}
	return Rollup(p.strategy.IsInterrupted(), tolerateErrors(p.strategy, statuses))
}

// Candidates returns the ordered union of candidate steps across the
// plan's candidate phases.
func (p *Plan) Candidates(dirty []types.Asset) []Step {
	elements := make([]Element, 0, len(p.phases))
	for _, ph := range p.phases {
		elements = append(elements, ph)
	}
	var steps []Step
	for _, el := range p.strategy.Candidates(elements, dirty) {
		steps = append(steps, el.(*Phase).Candidates(dirty)...)
	}
	return steps
}

// Update routes a task status to every step of the plan.
func (p *Plan) Update(status types.TaskStatus) {
	for _, ph := range p.phases {
		for _, s := range ph.Steps() {
			s.Update(status)
		}
	}
}

// FindStep locates a step by phase id and step id.
func (p *Plan) FindStep(phaseID, stepID string) (Step, error) {
	for _, ph := range p.phases {
		if ph.ID() != phaseID {
			continue
		}
		for _, s := range ph.Steps() {
			if s.ID() == stepID {
				return s, nil
			}
		}
	}
	return nil, ErrStepNotFound
}

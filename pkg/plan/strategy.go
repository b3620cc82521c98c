package plan

import (
	"sync/atomic"

	"github.com/cuemby/flotilla/pkg/types"
)

// Strategy decides which of a container's children are currently
// candidates for work. Strategies support interruption: while interrupted,
// the candidate set is empty and the container reports WAITING.
type Strategy interface {
	// Candidates returns the children eligible for work, in child order,
	// excluding any step whose assets appear in dirty.
	Candidates(elements []Element, dirty []types.Asset) []Element

	Interrupt()
	Proceed()
	IsInterrupted() bool
}

// Interruptible is the shared interruption state strategies embed.
// Interrupt and Proceed are idempotent and atomic with respect to
// concurrent reads.
type Interruptible struct {
	interrupted atomic.Bool
}

func (i *Interruptible) Interrupt() {
	i.interrupted.Store(true)
}

func (i *Interruptible) Proceed() {
	i.interrupted.Store(false)
}

func (i *Interruptible) IsInterrupted() bool {
	return i.interrupted.Load()
}

// isDirty reports whether the element is a step acting on a dirty asset.
func isDirty(el Element, dirty []types.Asset) bool {
	step, ok := el.(interface{ Assets() []types.Asset })
	if !ok {
		return false
	}
	for _, asset := range step.Assets() {
		for _, d := range dirty {
			if asset == d {
				return true
			}
		}
	}
	return false
}

// eligible reports whether a child may appear in a candidate set. A step
// is a candidate only while awaiting placement; a phase stays selectable
// until terminal so an in-progress phase keeps yielding its own candidates.
func eligible(el Element) bool {
	status := el.Status()
	if _, isStep := el.(interface{ Assets() []types.Asset }); isStep {
		return status == StatusPending || status == StatusPrepared
	}
	return !status.Terminal()
}

// SerialStrategy works through children strictly in order: the candidate
// is the first child that is not COMPLETE. The serial order holds at a
// blocked child rather than skipping ahead.
type SerialStrategy struct {
	Interruptible
	skipErrors bool
}

// NewSerialStrategy creates a serial strategy that blocks at ERROR children.
func NewSerialStrategy() *SerialStrategy {
	return &SerialStrategy{}
}

// NewSerialWithErrorsStrategy creates a serial strategy that skips ERROR
// children instead of blocking at them.
func NewSerialWithErrorsStrategy() *SerialStrategy {
	return &SerialStrategy{skipErrors: true}
}

func (s *SerialStrategy) Candidates(elements []Element, dirty []types.Asset) []Element {
	if s.IsInterrupted() {
		return nil
	}
	for _, el := range elements {
		status := el.Status()
		if status == StatusComplete {
			continue
		}
		if status == StatusError {
			if s.skipErrors {
				continue
			}
			return nil
		}
		if !eligible(el) || isDirty(el, dirty) {
			// In flight or busy elsewhere this cycle; the serial order
			// holds here rather than skipping ahead.
			return nil
		}
		return []Element{el}
	}
	return nil
}

// ParallelStrategy makes every workable child a candidate.
type ParallelStrategy struct {
	Interruptible
	skipErrors bool
}

// NewParallelStrategy creates a parallel strategy. ERROR children are never
// candidates; they do not block the others either way.
func NewParallelStrategy() *ParallelStrategy {
	return &ParallelStrategy{}
}

// NewParallelWithErrorsStrategy is a parallel strategy that tolerates ERROR
// children when judging completion.
func NewParallelWithErrorsStrategy() *ParallelStrategy {
	return &ParallelStrategy{skipErrors: true}
}

func (s *ParallelStrategy) Candidates(elements []Element, dirty []types.Asset) []Element {
	if s.IsInterrupted() {
		return nil
	}
	var candidates []Element
	for _, el := range elements {
		if el.Status() == StatusError || !eligible(el) || isDirty(el, dirty) {
			continue
		}
		candidates = append(candidates, el)
	}
	return candidates
}

// ToleratesErrors reports whether ERROR children are skipped when judging
// completion.
func (s *SerialStrategy) ToleratesErrors() bool   { return s.skipErrors }
func (s *ParallelStrategy) ToleratesErrors() bool { return s.skipErrors }

// DependencyStrategy makes a child a candidate once all of its declared
// predecessors are COMPLETE. Dependencies are declared by element name.
type DependencyStrategy struct {
	Interruptible
	deps map[string][]string
}

// NewDependencyStrategy creates a dependency strategy from a map of element
// name to predecessor names.
func NewDependencyStrategy(deps map[string][]string) *DependencyStrategy {
	return &DependencyStrategy{deps: deps}
}

func (s *DependencyStrategy) Candidates(elements []Element, dirty []types.Asset) []Element {
	if s.IsInterrupted() {
		return nil
	}
	byName := make(map[string]Status, len(elements))
	for _, el := range elements {
		byName[el.Name()] = el.Status()
	}
	var candidates []Element
	for _, el := range elements {
		if el.Status() == StatusError || !eligible(el) || isDirty(el, dirty) {
			continue
		}
		ready := true
		for _, dep := range s.deps[el.Name()] {
			if byName[dep] != StatusComplete {
				ready = false
				break
			}
		}
		if ready {
			candidates = append(candidates, el)
		}
	}
	return candidates
}

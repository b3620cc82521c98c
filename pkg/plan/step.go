package plan

import (
	"sync"

	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeploymentStep drives one pod instance to its current config target.
type DeploymentStep struct {
	mu sync.Mutex

	id           string
	name         string
	spec         *types.ServiceSpec
	pod          *types.PodSpec
	configTarget string

	status  Status
	req     *offer.Requirement
	taskIDs []string
	// remaining tracks task ids of the current launch that have not yet
	// reached their goal state.
	remaining map[string]bool
	goals     map[string]types.GoalState

	// permanent marks the step's launches as destructive recoveries.
	permanent bool
	onLaunch  func()

	logger zerolog.Logger
}

// NewDeploymentStep creates a PENDING step for one pod instance.
func NewDeploymentStep(spec *types.ServiceSpec, pod *types.PodSpec, configTarget string) *DeploymentStep {
	name := types.Asset{PodType: pod.Type, Index: pod.Index}.String()
	return &DeploymentStep{
		id:           uuid.New().String(),
		name:         name,
		spec:         spec,
		pod:          pod,
		configTarget: configTarget,
		status:       StatusPending,
		logger:       log.WithStep(name),
	}
}

// MarkComplete initializes the step as already COMPLETE, tracking the given
// live task ids. Used when stored state shows the pod already deployed at
// the current target.
func (s *DeploymentStep) MarkComplete(taskIDs []string, goals map[string]types.GoalState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusComplete
	s.taskIDs = append([]string(nil), taskIDs...)
	s.goals = goals
	s.remaining = nil
}

// SetPermanent flags the step's launches as destructive recoveries and
// registers a launch hook.
func (s *DeploymentStep) SetPermanent(onLaunch func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = true
	s.onLaunch = onLaunch
}

func (s *DeploymentStep) ID() string   { return s.id }
func (s *DeploymentStep) Name() string { return s.name }

func (s *DeploymentStep) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start transitions PENDING -> PREPARED, building a fresh requirement with
// new task ids. A PREPARED step returns its existing requirement so the
// call is idempotent across offer cycles that found no match.
func (s *DeploymentStep) Start() *offer.Requirement {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusPending:
		req := offer.NewRequirement(s.spec, s.pod, s.configTarget)
		req.Permanent = s.permanent
		s.req = req
		s.goals = make(map[string]types.GoalState, len(req.Tasks))
		for _, t := range req.Tasks {
			s.goals[t.TaskID] = t.Spec.EffectiveGoal()
		}
		s.status = StatusPrepared
		s.logger.Info().Str("target", s.configTarget).Msg("step prepared")
		return req
	case StatusPrepared:
		return s.req
	default:
		return nil
	}
}

// UpdateOfferStatus records the outcome of offer evaluation. A non-empty
// launched set moves the step to STARTING; an empty one leaves it PREPARED
// for the next cycle.
func (s *DeploymentStep) UpdateOfferStatus(launchedTaskIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(launchedTaskIDs) == 0 {
		return
	}
	if s.status != StatusPrepared {
		s.logger.Error().Str("status", string(s.status)).
			Msg("launch reported for step not in PREPARED")
		s.status = StatusError
		return
	}
	s.taskIDs = append([]string(nil), launchedTaskIDs...)
	s.remaining = make(map[string]bool, len(launchedTaskIDs))
	for _, id := range launchedTaskIDs {
		s.remaining[id] = true
	}
	s.status = StatusStarting
	s.logger.Info().Int("tasks", len(launchedTaskIDs)).Msg("step starting")
	if s.onLaunch != nil {
		s.onLaunch()
	}
}

// Update feeds a task status into the step. Unknown task ids are ignored.
// A status reporting a different config target than the step's resets the
// step to PENDING: the live task runs an outdated configuration.
func (s *DeploymentStep) Update(status types.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.goals[status.TaskID]; !known {
		return
	}

	if status.ConfigTarget != "" && status.ConfigTarget != s.configTarget {
		s.logger.Info().
			Str("task_id", status.TaskID).
			Str("task_target", status.ConfigTarget).
			Str("step_target", s.configTarget).
			Msg("config target changed; step reset for rollout")
		s.reset()
		return
	}

	switch s.status {
	case StatusStarting:
		if s.goalReached(status) {
			delete(s.remaining, status.TaskID)
			if len(s.remaining) == 0 {
				s.status = StatusComplete
				s.logger.Info().Msg("step complete")
			}
			return
		}
		if status.State.NeedsRecovery() {
			// Launch died before reaching its goal; retry from scratch.
			s.logger.Warn().
				Str("task_id", status.TaskID).
				Str("state", string(status.State)).
				Msg("task lost before reaching goal; step reset")
			s.reset()
		}
	case StatusComplete:
		// Failures after completion belong to the recovery plan.
	}
}

func (s *DeploymentStep) goalReached(status types.TaskStatus) bool {
	switch s.goals[status.TaskID] {
	case types.GoalFinished:
		return status.State == types.TaskFinished
	default:
		return status.State == types.TaskRunning
	}
}

// reset returns the step to PENDING, dropping the current attempt.
func (s *DeploymentStep) reset() {
	s.status = StatusPending
	s.req = nil
	s.taskIDs = nil
	s.remaining = nil
	s.goals = nil
}

// Restart is the admin transition back to PENDING.
func (s *DeploymentStep) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Msg("step restarted")
	s.reset()
}

// ForceComplete is the admin transition to COMPLETE.
func (s *DeploymentStep) ForceComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Msg("step force-completed")
	s.status = StatusComplete
	s.remaining = nil
}

// Assets returns the pod instance this step acts on.
func (s *DeploymentStep) Assets() []types.Asset {
	return []types.Asset{{PodType: s.pod.Type, Index: s.pod.Index}}
}

// TaskIDs returns the task ids of the current launch attempt.
func (s *DeploymentStep) TaskIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.taskIDs...)
}

package recovery

import (
	"sort"
	"sync"

	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/plan"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// Manager synthesizes a recovery plan from observed task failures. The
// plan is regenerated whenever the set of failing pods changes; steps
// already placing work are preserved. Implements plan.Manager so the
// coordinator can dispatch recovery behind deployment.
type Manager struct {
	mu sync.Mutex

	store        storage.Store
	spec         *types.ServiceSpec
	configTarget string
	pods         map[types.Asset]*types.PodSpec

	constrainer LaunchConstrainer
	monitor     FailureMonitor

	// strategy is shared across regenerations so interruption survives
	// plan rebuilds.
	strategy plan.Strategy

	steps     map[types.Asset]*recoveryStep
	plan      *plan.Plan
	lastState plan.Status
	notify    func()

	logger zerolog.Logger
}

// recoveryStep tags a deployment step with its recovery flavor.
type recoveryStep struct {
	*plan.DeploymentStep
	flavor      Type
	constrainer LaunchConstrainer
}

// Start re-checks the launch constrainer at dispatch time, so two
// destructive recoveries in one offer batch cannot both launch on a single
// rate-limit token.
func (s *recoveryStep) Start() *offer.Requirement {
	if s.flavor == Permanent && !s.constrainer.CanLaunch(Permanent) {
		return nil
	}
	return s.DeploymentStep.Start()
}

// NewManager creates a recovery plan manager for the given service spec
// generation.
func NewManager(
	store storage.Store,
	spec *types.ServiceSpec,
	configTarget string,
	constrainer LaunchConstrainer,
	monitor FailureMonitor,
) *Manager {
	pods := make(map[types.Asset]*types.PodSpec, len(spec.Pods))
	for _, pod := range spec.Pods {
		pods[types.Asset{PodType: pod.Type, Index: pod.Index}] = pod
	}
	m := &Manager{
		store:        store,
		spec:         spec,
		configTarget: configTarget,
		pods:         pods,
		constrainer:  constrainer,
		monitor:      monitor,
		strategy:     plan.NewParallelStrategy(),
		steps:        make(map[types.Asset]*recoveryStep),
		logger:       log.WithComponent("recovery"),
	}
	m.rebuild()
	m.lastState = m.plan.Status()
	return m
}

// Plan returns the current recovery plan.
func (m *Manager) Plan() *plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan
}

// Candidates regenerates the plan from the state store and returns the
// candidate steps, excluding dirty assets and permanent recoveries the
// launch constrainer is holding back.
func (m *Manager) Candidates(dirty []types.Asset) []plan.Step {
	m.mu.Lock()
	m.regenerate()
	p := m.plan
	m.mu.Unlock()

	var candidates []plan.Step
	for _, step := range p.Candidates(dirty) {
		rs, ok := step.(*recoveryStep)
		if ok && rs.flavor == Permanent && !m.constrainer.CanLaunch(Permanent) {
			m.logger.Info().Str("step", step.Name()).
				Msg("destructive recovery delayed by launch constrainer")
			continue
		}
		candidates = append(candidates, step)
	}
	return candidates
}

// Update feeds a task status into the failure monitor and the live
// recovery steps, then regenerates the plan.
func (m *Manager) Update(status types.TaskStatus) {
	m.monitor.Observe(status)

	m.mu.Lock()
	for _, step := range m.steps {
		step.Update(status)
	}
	m.regenerate()
	m.mu.Unlock()

	m.NotifyOnChange()
}

func (m *Manager) Interrupt() {
	m.strategy.Interrupt()
	m.NotifyOnChange()
}

func (m *Manager) Proceed() {
	m.strategy.Proceed()
	m.NotifyOnChange()
}

func (m *Manager) IsInterrupted() bool {
	return m.strategy.IsInterrupted()
}

func (m *Manager) Restart(phaseID, stepID string) error {
	m.mu.Lock()
	step, err := m.plan.FindStep(phaseID, stepID)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	step.Restart()
	m.NotifyOnChange()
	return nil
}

func (m *Manager) ForceComplete(phaseID, stepID string) error {
	m.mu.Lock()
	step, err := m.plan.FindStep(phaseID, stepID)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	step.ForceComplete()
	m.NotifyOnChange()
	return nil
}

func (m *Manager) SetNotify(notify func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = notify
}

// NotifyOnChange fires the notify callback if the plan's derived status
// changed since the last check.
func (m *Manager) NotifyOnChange() {
	m.mu.Lock()
	current := m.plan.Status()
	changed := current != m.lastState
	m.lastState = current
	notify := m.notify
	m.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
}

// regenerate reconciles the step set against the currently failing pods.
// Steps with placement in flight are preserved; completed or recovered
// steps are dropped. Callers hold m.mu.
func (m *Manager) regenerate() {
	failing := m.failingPods()

	changed := false
	for asset, flavor := range failing {
		existing, ok := m.steps[asset]
		if ok {
			status := existing.Status()
			if status == plan.StatusPrepared || status == plan.StatusStarting {
				// Placement in flight; keep it.
				continue
			}
			if existing.flavor == flavor && status != plan.StatusComplete {
				continue
			}
		}
		m.steps[asset] = m.newStep(asset, flavor)
		changed = true
	}
	for asset, step := range m.steps {
		if _, still := failing[asset]; still {
			continue
		}
		// Pod recovered or its failure superseded; drop the step unless it
		// is mid-placement.
		status := step.Status()
		if status == plan.StatusPrepared || status == plan.StatusStarting {
			continue
		}
		delete(m.steps, asset)
		changed = true
	}

	if changed || m.plan == nil {
		m.rebuild()
	}
}

// newStep creates a recovery step for the pod instance. Callers hold m.mu.
func (m *Manager) newStep(asset types.Asset, flavor Type) *recoveryStep {
	pod := m.pods[asset]
	step := plan.NewDeploymentStep(m.spec, pod, m.configTarget)
	rs := &recoveryStep{DeploymentStep: step, flavor: flavor, constrainer: m.constrainer}
	if flavor == Permanent {
		step.SetPermanent(func() {
			m.constrainer.LaunchHappened(Permanent)
			metrics.RecoveriesTotal.WithLabelValues(string(Permanent)).Inc()
		})
		m.logger.Warn().Str("pod", asset.String()).Msg("pod permanently failed; scheduling destructive recovery")
	} else {
		m.logger.Info().Str("pod", asset.String()).Msg("scheduling transient recovery")
		metrics.RecoveriesTotal.WithLabelValues(string(Transient)).Inc()
	}
	return rs
}

// rebuild reassembles the recovery plan from the current steps in stable
// order. Callers hold m.mu.
func (m *Manager) rebuild() {
	assets := make([]types.Asset, 0, len(m.steps))
	for asset := range m.steps {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].String() < assets[j].String()
	})

	steps := make([]plan.Step, 0, len(assets))
	for _, asset := range assets {
		steps = append(steps, m.steps[asset])
	}
	m.plan = plan.NewPlan("recovery",
		[]*plan.Phase{plan.NewPhase("recovery", steps, m.strategy)},
		m.strategy)
}

// failingPods maps each pod with an unrecovered task failure to its
// recovery flavor. A failure is live only while the failed task id is
// still the pod task's current incarnation in the state store.
func (m *Manager) failingPods() map[types.Asset]Type {
	failing := make(map[types.Asset]Type)

	statuses, err := m.store.Statuses()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to scan statuses for recovery")
		return failing
	}
	tasks, err := m.store.Tasks()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to scan tasks for recovery")
		return failing
	}
	current := make(map[string]*types.TaskInfo, len(tasks))
	for _, info := range tasks {
		current[info.ID] = info
	}

	for _, status := range statuses {
		if !status.State.NeedsRecovery() {
			continue
		}
		info, live := current[status.TaskID]
		if !live {
			// Superseded by a later launch under the same task name.
			continue
		}
		asset := info.Asset()
		if _, known := m.pods[asset]; !known {
			continue
		}
		flavor := Transient
		if m.monitor.PermanentlyFailed(status.TaskID) {
			flavor = Permanent
		}
		// Permanent failure of any task upgrades the whole pod.
		if failing[asset] != Permanent {
			failing[asset] = flavor
		}
	}
	return failing
}

package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/flotilla/pkg/config"
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/events"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/plan"
	"github.com/cuemby/flotilla/pkg/reconcile"
	"github.com/cuemby/flotilla/pkg/recovery"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// frameworkRemovedMarker identifies the driver error produced by
	// registering against a framework id the master has already removed.
	frameworkRemovedMarker = "Framework has been removed"

	defaultPermanentFailureTimeout  = 20 * time.Minute
	defaultDestructiveRecoveryDelay = 10 * time.Minute
)

// Config holds scheduler tuning.
type Config struct {
	// PermanentFailureTimeout is how long a task may stay failed before
	// recovery turns destructive. Zero disables permanent-failure
	// detection entirely.
	PermanentFailureTimeout time.Duration

	// DestructiveRecoveryDelay is the minimum delay between destructive
	// recovery launches.
	DestructiveRecoveryDelay time.Duration

	// ExitOnReregistration and ExitOnOfferRescinded control whether these
	// callbacks are fatal. Both default to true.
	ExitOnReregistration bool
	ExitOnOfferRescinded bool
}

// DefaultConfig returns the default scheduler tuning.
func DefaultConfig() Config {
	return Config{
		PermanentFailureTimeout:  defaultPermanentFailureTimeout,
		DestructiveRecoveryDelay: defaultDestructiveRecoveryDelay,
		ExitOnReregistration:     true,
		ExitOnOfferRescinded:     true,
	}
}

// Scheduler deploys a service specification and recovers from faults.
// It implements driver.Handler; every callback is handed off to a serial
// executor, so all engine state has a single writer.
type Scheduler struct {
	spec        *types.ServiceSpec
	stateStore  storage.Store
	configStore *config.Store
	validators  []config.Validator
	cfg         Config

	broker   *events.Broker
	executor *serialExecutor
	fatal    chan FatalError
	ready    chan struct{}

	driver      driver.Driver
	reconciler  *reconcile.Reconciler
	coordinator *plan.Coordinator
	deployment  plan.Manager
	recoveryPM  *recovery.Manager
	accepter    *offer.Accepter
	cleaner     *offer.Cleaner
	killer      *TaskKiller

	initialized bool
	logger      zerolog.Logger
}

// New creates a scheduler for the given service spec. Initialization that
// touches the stores is deferred until registration.
func New(spec *types.ServiceSpec, stateStore storage.Store, configStore *config.Store, broker *events.Broker, cfg Config) *Scheduler {
	return &Scheduler{
		spec:        spec,
		stateStore:  stateStore,
		configStore: configStore,
		validators:  config.DefaultValidators(),
		cfg:         cfg,
		broker:      broker,
		executor:    newSerialExecutor(),
		fatal:       make(chan FatalError, 1),
		ready:       make(chan struct{}),
		logger:      log.WithComponent("scheduler"),
	}
}

// Fatal returns the channel carrying the engine's fatal error, if any.
// The process supervisor consumes it and exits with the carried code.
func (s *Scheduler) Fatal() <-chan FatalError {
	return s.fatal
}

// Ready returns a channel closed once registration-time initialization has
// completed and the plan managers exist.
func (s *Scheduler) Ready() <-chan struct{} {
	return s.ready
}

// Managers returns the plan managers by name, for the operator API. Valid
// only after Ready.
func (s *Scheduler) Managers() map[string]plan.Manager {
	return map[string]plan.Manager{
		"deploy":   s.deployment,
		"recovery": s.recoveryPM,
	}
}

// Killer returns the task killer. Valid only after Ready.
func (s *Scheduler) Killer() *TaskKiller {
	return s.killer
}

// Stop shuts down the serial executor.
func (s *Scheduler) Stop() {
	s.executor.Stop()
}

// fail delivers a fatal error to the supervisor. The first error wins.
func (s *Scheduler) fail(code ErrorCode, format string, args ...interface{}) {
	err := FatalError{Code: code, Message: fmt.Sprintf(format, args...)}
	s.logger.Error().Str("code", code.String()).Msg(err.Message)
	select {
	case s.fatal <- err:
	default:
	}
}

// initialize performs the one-time setup deferred until registration: the
// configuration update handshake, plan construction, and reconciler start.
// Nothing is written to the stores before this point.
func (s *Scheduler) initialize(d driver.Driver) error {
	s.logger.Info().Msg("initializing")

	updater := config.NewUpdater(s.configStore, s.validators)
	result, err := updater.Update(s.spec)
	if err != nil {
		return fmt.Errorf("configuration update failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("configuration change rejected: %v", result.Errors)
	}
	target := result.TargetID
	s.broker.Publish(&events.Event{Type: events.EventConfigUpdated, Message: target})

	targetSpec, err := s.configStore.Spec(target)
	if err != nil {
		return fmt.Errorf("failed to load target config: %w", err)
	}

	evaluator := offer.NewEvaluator()
	s.accepter = offer.NewAccepter(offer.NewPersistentRecorder(s.stateStore))
	s.cleaner = offer.NewCleaner(s.stateStore, targetSpec.Role)
	s.killer = NewTaskKiller(d, &markFailedListener{store: s.stateStore})
	planScheduler := plan.NewScheduler(evaluator, s.accepter)

	deployPlan, err := plan.NewDeploymentPlan(targetSpec, target, s.stateStore)
	if err != nil {
		return fmt.Errorf("failed to build deployment plan: %w", err)
	}
	s.deployment = plan.NewManager(deployPlan)

	var monitor recovery.FailureMonitor = recovery.NeverFailureMonitor{}
	if s.cfg.PermanentFailureTimeout > 0 {
		monitor = recovery.NewTimedFailureMonitor(s.cfg.PermanentFailureTimeout)
	}
	s.recoveryPM = recovery.NewManager(
		s.stateStore,
		targetSpec,
		target,
		recovery.NewTimedLaunchConstrainer(s.cfg.DestructiveRecoveryDelay),
		monitor,
	)

	s.coordinator = plan.NewCoordinator(
		[]plan.Manager{s.deployment, s.recoveryPM},
		[]string{"deploy", "recovery"},
		planScheduler,
		s.broker,
	)

	s.reconciler = reconcile.NewReconciler(s.stateStore)
	if err := s.reconciler.Start(); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	go s.watchNotifications()

	s.logger.Info().Str("target", target).Msg("initialized")
	return nil
}

// watchNotifications re-evaluates offer suppression whenever a plan's
// status changes.
func (s *Scheduler) watchNotifications() {
	sub := s.broker.Subscribe()
	for event := range sub {
		if event.Type != events.EventPlanStatusChanged {
			continue
		}
		s.executor.Execute(s.suppressOrRevive)
	}
}

// Registered performs one-time initialization, stores the framework id,
// and kicks off reconciliation.
func (s *Scheduler) Registered(d driver.Driver, frameworkID string, master string) {
	s.executor.Execute(func() {
		s.logger.Info().Str("framework_id", frameworkID).Str("master", master).Msg("registered")

		if !s.initialized {
			if err := s.initialize(d); err != nil {
				s.fail(InitializationFailure, "initialization failed: %v", err)
				return
			}
			s.initialized = true
			close(s.ready)
		}

		if err := s.stateStore.StoreFrameworkID(frameworkID); err != nil {
			s.fail(RegistrationFailure, "unable to store framework id %q: %v", frameworkID, err)
			return
		}

		s.driver = d
		s.reconciler.Reconcile(d)
		s.suppressOrRevive()
	})
}

// Reregistered is a hard error under this design: the framework should
// never be re-registered from scratch.
func (s *Scheduler) Reregistered(d driver.Driver, master string) {
	s.executor.Execute(func() {
		if s.cfg.ExitOnReregistration {
			s.fail(ReRegistration, "re-registration implies the framework was unregistered")
			return
		}
		s.logger.Warn().Str("master", master).Msg("re-registered; continuing per configuration")
		s.driver = d
		s.reconciler.Reconcile(d)
		s.suppressOrRevive()
	})
}

// ResourceOffers runs one offer cycle: the reconciliation gate, plan
// dispatch, the resource cleanup pass, then declining everything unused.
func (s *Scheduler) ResourceOffers(d driver.Driver, offers []*types.Offer) {
	batch := append([]*types.Offer(nil), offers...)
	s.executor.Execute(func() {
		timer := metrics.NewTimer()
		defer timer.ObserveDuration(metrics.OfferCycleDuration)

		metrics.OffersReceived.Add(float64(len(batch)))
		s.logger.Info().Int("offers", len(batch)).Msg("received offer batch")

		// Reconciliation must complete before any task may be launched:
		// the scheduler and the cluster have to agree on the state of all
		// tasks of interest first.
		s.reconciler.Reconcile(d)
		if !s.reconciler.IsReconciled() {
			s.logger.Info().
				Int("remaining", len(s.reconciler.Remaining())).
				Msg("reconciliation in progress; declining offers")
			s.declineAll(d, batch)
			return
		}

		accepted := s.coordinator.ProcessOffers(d, batch)
		unused := offer.FilterOutAccepted(batch, accepted)

		// Cleanup pass: release reservations no stored task expects. A
		// dirtied offer still carrying unused reservations is cleaned in a
		// later cycle.
		if recs := s.cleaner.Evaluate(unused); len(recs) > 0 {
			cleaned := s.accepter.Accept(d, recs)
			accepted = append(accepted, cleaned...)
			unused = offer.FilterOutAccepted(unused, cleaned)
		}

		s.declineAll(d, unused)
	})
}

// OfferRescinded is a hard error by default; rescind handling is a design
// simplification this scheduler does not attempt.
func (s *Scheduler) OfferRescinded(d driver.Driver, offerID string) {
	s.executor.Execute(func() {
		if s.cfg.ExitOnOfferRescinded {
			s.fail(OfferRescinded, "offer %s rescinded; rescinding offers is not supported", offerID)
			return
		}
		s.logger.Warn().Str("offer", offerID).Msg("offer rescinded; continuing per configuration")
	})
}

// StatusUpdate persists the status and forwards it to the plan managers
// and the reconciler.
func (s *Scheduler) StatusUpdate(d driver.Driver, status types.TaskStatus) {
	s.executor.Execute(func() {
		s.logger.Info().
			Str("task_id", status.TaskID).
			Str("state", string(status.State)).
			Str("message", status.Message).
			Msg("status update")
		metrics.StatusUpdatesTotal.WithLabelValues(string(status.State)).Inc()

		if err := s.stateStore.StoreStatus(status); err != nil {
			// Drop this cycle's update; the cluster manager will reissue.
			s.logger.Warn().Err(err).
				Str("task_id", status.TaskID).
				Msg("failed to persist status update; dropping")
			return
		}

		s.reconciler.Update(status)
		s.deployment.Update(status)
		s.recoveryPM.Update(status)

		s.broker.Publish(&events.Event{
			Type:    events.EventTaskStatus,
			TaskID:  status.TaskID,
			Message: string(status.State),
		})

		if status.State.NeedsRecovery() {
			s.revive()
		}
	})
}

// FrameworkMessage is logged only.
func (s *Scheduler) FrameworkMessage(d driver.Driver, executorID, agentID string, data []byte) {
	s.logger.Error().
		Str("executor", executorID).
		Str("agent", agentID).
		Msg("received a framework message, but don't know how to process it")
}

// Disconnected is fatal.
func (s *Scheduler) Disconnected(d driver.Driver) {
	s.executor.Execute(func() {
		s.fail(Disconnected, "disconnected from master")
	})
}

// AgentLost is logged only; status updates carry the recovery signal.
func (s *Scheduler) AgentLost(d driver.Driver, agentID string) {
	s.logger.Warn().Str("agent", agentID).Msg("agent lost")
}

// ExecutorLost is logged only; status updates carry the recovery signal.
func (s *Scheduler) ExecutorLost(d driver.Driver, executorID, agentID string, code int) {
	s.logger.Warn().
		Str("executor", executorID).
		Str("agent", agentID).
		Int("code", code).
		Msg("executor lost")
}

// Error is fatal. The framework-removed marker gets recovery instructions
// before exiting.
func (s *Scheduler) Error(d driver.Driver, message string) {
	s.executor.Execute(func() {
		if strings.Contains(message, frameworkRemovedMarker) {
			s.logger.Error().Msg("this error usually follows an incomplete cleanup of framework " +
				"state or reserved resources from a previous install of the service")
			s.logger.Error().Msg("uninstall the service, release its reserved resources, and " +
				"install once more")
		}
		s.fail(DriverError, "driver failed: %s", message)
	})
}

func (s *Scheduler) declineAll(d driver.Driver, offers []*types.Offer) {
	for _, o := range offers {
		s.logger.Info().Str("offer", o.ID).Msg("declining offer")
		if err := d.DeclineOffer(o.ID); err != nil {
			s.logger.Error().Err(err).Str("offer", o.ID).Msg("decline failed")
		}
		metrics.OffersDeclined.Inc()
	}
}

// suppressOrRevive pauses offer delivery when no plan has work, and
// resumes it when one does. The suppressed flag mirrors to the state store
// for survivability across restarts.
func (s *Scheduler) suppressOrRevive() {
	if s.driver == nil || s.coordinator == nil {
		return
	}
	if s.coordinator.HasOperations() {
		s.revive()
	} else {
		s.suppress()
	}
}

func (s *Scheduler) suppress() {
	if s.driver == nil {
		return
	}
	s.logger.Info().Msg("suppressing offers")
	if err := s.driver.SuppressOffers(); err != nil {
		s.logger.Error().Err(err).Msg("suppress failed")
		return
	}
	if err := s.stateStore.SetSuppressed(true); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist suppressed flag")
	}
	s.broker.Publish(&events.Event{Type: events.EventOffersSuppressed})
}

func (s *Scheduler) revive() {
	if s.driver == nil {
		return
	}
	s.logger.Info().Msg("reviving offers")
	if err := s.driver.ReviveOffers(); err != nil {
		s.logger.Error().Err(err).Msg("revive failed")
		return
	}
	if err := s.stateStore.SetSuppressed(false); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist suppressed flag")
	}
	s.broker.Publish(&events.Event{Type: events.EventOffersRevived})
}

// markFailedListener records a destructive kill as a FAILED status in the
// state store. It does not mark the pod permanently failed: the recovery
// flavor is still decided by the failure monitor, so the pod's reservations
// are reused unless that monitor declares the task permanently failed.
type markFailedListener struct {
	store storage.Store
}

func (l *markFailedListener) TaskFailed(taskID string) {
	status := types.TaskStatus{
		TaskID:    taskID,
		State:     types.TaskFailed,
		Message:   "marked failed by task killer",
		Timestamp: time.Now(),
	}
	if err := l.store.StoreStatus(status); err != nil {
		logger := log.WithComponent("task-killer")
		logger.Warn().Err(err).
			Str("task_id", taskID).Msg("failed to record task failure")
	}
}

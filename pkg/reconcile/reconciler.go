package reconcile

import (
	"sync"
	"time"

	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// Explicit reconciliation requests back off multiplicatively between
	// retries, from backoffBase up to backoffMax.
	backoffBase       = 8 * time.Second
	backoffMultiplier = 2
	backoffMax        = 30 * time.Second
)

// Reconciler synchronizes the framework's task state with what the cluster
// reports, treating the cluster as the source of truth. Until the protocol
// completes no launches may proceed; the scheduler declines offers while
// IsReconciled is false.
//
// All operations are safe for concurrent use: the scheduler's serial
// executor drives the protocol while status APIs read Remaining directly.
type Reconciler struct {
	mu sync.Mutex

	store storage.Store

	// remaining holds the last known status per task id not yet confirmed
	// by the cluster.
	remaining map[string]types.TaskStatus

	// implicitDone is set once the single implicit (empty) reconciliation
	// request has been issued.
	implicitDone bool

	lastRequestAt time.Time
	backoff       time.Duration

	logger zerolog.Logger
}

// NewReconciler creates a reconciler reading known tasks from the store.
func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{
		store:   store,
		backoff: backoffBase,
		logger:  log.WithComponent("reconciler"),
	}
}

// Start loads the set of known task ids from the state store and resets
// the protocol.
func (r *Reconciler) Start() error {
	statuses, err := r.store.Statuses()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = make(map[string]types.TaskStatus, len(statuses))
	for _, status := range statuses {
		r.remaining[status.TaskID] = status
	}
	r.implicitDone = false
	r.lastRequestAt = time.Time{}
	r.backoff = backoffBase
	metrics.ReconciliationRemaining.Set(float64(len(r.remaining)))
	r.logger.Info().Int("tasks", len(r.remaining)).Msg("reconciliation started")
	return nil
}

// Reconcile triggers any needed reconciliation against the driver. It is
// invoked on every offer batch and registration; only the driver call
// blocks.
func (r *Reconciler) Reconcile(d driver.Driver) {
	r.mu.Lock()

	if len(r.remaining) > 0 {
		if time.Since(r.lastRequestAt) < r.backoff {
			r.mu.Unlock()
			return
		}
		statuses := make([]types.TaskStatus, 0, len(r.remaining))
		for _, status := range r.remaining {
			statuses = append(statuses, status)
		}
		if !r.lastRequestAt.IsZero() {
			r.backoff = r.backoff * backoffMultiplier
			if r.backoff > backoffMax {
				r.backoff = backoffMax
			}
		}
		r.lastRequestAt = time.Now()
		r.mu.Unlock()

		r.logger.Info().Int("tasks", len(statuses)).Msg("requesting explicit reconciliation")
		metrics.ReconciliationRequestsTotal.WithLabelValues("explicit").Inc()
		if err := d.ReconcileTasks(statuses); err != nil {
			r.logger.Error().Err(err).Msg("explicit reconciliation request failed")
		}
		return
	}

	if !r.implicitDone {
		r.implicitDone = true
		r.mu.Unlock()

		// One empty request reconfirms the full task set with the master.
		r.logger.Info().Msg("requesting implicit reconciliation")
		metrics.ReconciliationRequestsTotal.WithLabelValues("implicit").Inc()
		if err := d.ReconcileTasks(nil); err != nil {
			r.logger.Error().Err(err).Msg("implicit reconciliation request failed")
		}
		return
	}
	r.mu.Unlock()
}

// Update records a status received from the cluster. Any non-lost status
// confirms the task and removes it from the remaining set.
func (r *Reconciler) Update(status types.TaskStatus) {
	if status.State == types.TaskLost {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, tracked := r.remaining[status.TaskID]; !tracked {
		return
	}
	delete(r.remaining, status.TaskID)
	metrics.ReconciliationRemaining.Set(float64(len(r.remaining)))
	if len(r.remaining) == 0 {
		r.logger.Info().Msg("all known tasks confirmed")
	}
}

// IsReconciled reports whether the protocol is complete: every known task
// confirmed and the implicit request issued.
func (r *Reconciler) IsReconciled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.implicitDone && len(r.remaining) == 0
}

// Remaining returns the unconfirmed task ids. An empty result does not
// mean reconciliation is complete; use IsReconciled.
func (r *Reconciler) Remaining() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.remaining))
	for id := range r.remaining {
		ids = append(ids, id)
	}
	return ids
}

// ForceComplete forces the protocol into a complete state. Task state may
// diverge from the cluster afterwards; not recommended.
func (r *Reconciler) ForceComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = nil
	r.implicitDone = true
	metrics.ReconciliationRemaining.Set(0)
	r.logger.Warn().Msg("reconciliation force-completed")
}

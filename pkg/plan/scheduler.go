package plan

import (
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// Scheduler places one candidate step against a batch of offers, driving
// the evaluator and accepter and feeding the outcome back to the step.
// Every call is side-effect-committing: an accepted offer is burned
// regardless of later errors.
type Scheduler struct {
	evaluator *offer.Evaluator
	accepter  *offer.Accepter
	logger    zerolog.Logger
}

// NewScheduler creates a plan scheduler.
func NewScheduler(evaluator *offer.Evaluator, accepter *offer.Accepter) *Scheduler {
	return &Scheduler{
		evaluator: evaluator,
		accepter:  accepter,
		logger:    log.WithComponent("plan-scheduler"),
	}
}

// ResourceOffers tries to place the step using the given offers and
// returns the ids of the offers it accepted.
func (s *Scheduler) ResourceOffers(d driver.Driver, offers []*types.Offer, step Step) []string {
	if d == nil || len(offers) == 0 || step == nil {
		s.logger.Info().Msg("nothing to schedule: missing driver, offers, or step")
		return nil
	}

	if status := step.Status(); status != StatusPending && status != StatusPrepared {
		s.logger.Info().
			Str("step", step.Name()).
			Str("status", string(status)).
			Msg("ignoring offers for step not awaiting placement")
		return nil
	}

	req := step.Start()
	if req == nil {
		s.logger.Info().Str("step", step.Name()).Msg("step has no offer requirement")
		step.UpdateOfferStatus(nil)
		return nil
	}

	recs := s.evaluator.Evaluate(req, offers)
	if len(recs) == 0 {
		// Offers are surfaced back to the caller as unused. Out of room on
		// the cluster?
		s.logger.Warn().
			Str("step", step.Name()).
			Str("requirement", req.String()).
			Msg("no offer fulfills step requirement")
		step.UpdateOfferStatus(nil)
		return nil
	}

	accepted := s.accepter.Accept(d, recs)
	if len(accepted) == 0 {
		step.UpdateOfferStatus(nil)
		return nil
	}

	launched := offer.LaunchedTaskIDs(recs)
	metrics.TasksLaunched.Add(float64(len(launched)))
	step.UpdateOfferStatus(launched)
	return accepted
}

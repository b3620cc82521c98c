package plan

import (
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/events"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/offer"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// Coordinator multiplexes multiple plan managers across offer batches.
// Managers are consulted in declared order; earlier managers see offers
// first, and the pod instances they act on are dirty for later managers
// within the same cycle.
type Coordinator struct {
	managers  []Manager
	names     []string
	scheduler *Scheduler
	broker    *events.Broker
	logger    zerolog.Logger
}

// NewCoordinator creates a coordinator over the given managers, in
// priority order. Plan status change notifications from every manager are
// published on the broker.
func NewCoordinator(managers []Manager, names []string, scheduler *Scheduler, broker *events.Broker) *Coordinator {
	c := &Coordinator{
		managers:  managers,
		names:     names,
		scheduler: scheduler,
		broker:    broker,
		logger:    log.WithComponent("plan-coordinator"),
	}
	for i, m := range managers {
		name := names[i]
		manager := m
		m.SetNotify(func() {
			status := manager.Plan().Status()
			metrics.SetPlanStatus(name, string(status), AllStatuses())
			broker.Publish(&events.Event{
				Type:    events.EventPlanStatusChanged,
				Plan:    name,
				Message: string(status),
			})
		})
	}
	return c
}

// ProcessOffers walks the managers in priority order, offering the
// still-unused offers to each candidate step. It returns the accumulated
// accepted offer ids, always a subset of the batch.
func (c *Coordinator) ProcessOffers(d driver.Driver, offers []*types.Offer) []string {
	var accepted []string
	remaining := offers
	dirty := make(map[types.Asset]bool)

	for i, m := range c.managers {
		candidates := m.Candidates(assetList(dirty))
		c.logger.Debug().
			Str("plan", c.names[i]).
			Int("candidates", len(candidates)).
			Int("offers", len(remaining)).
			Msg("dispatching candidates")
		for _, step := range candidates {
			ids := c.scheduler.ResourceOffers(d, remaining, step)
			accepted = append(accepted, ids...)
			remaining = offer.FilterOutAccepted(remaining, ids)
			for _, asset := range step.Assets() {
				dirty[asset] = true
			}
		}
	}

	// Step transitions driven by offer placement change plan status too.
	for _, m := range c.managers {
		m.NotifyOnChange()
	}
	return accepted
}

// HasOperations reports whether any plan still has work to do: a plan that
// is neither COMPLETE nor WAITING wants offers.
func (c *Coordinator) HasOperations() bool {
	for _, m := range c.managers {
		status := m.Plan().Status()
		if status != StatusComplete && status != StatusWaiting {
			return true
		}
	}
	return false
}

// Subscribe returns a subscription to the coordinator's notifications.
func (c *Coordinator) Subscribe() events.Subscriber {
	return c.broker.Subscribe()
}

func assetList(dirty map[types.Asset]bool) []types.Asset {
	if len(dirty) == 0 {
		return nil
	}
	assets := make([]types.Asset, 0, len(dirty))
	for asset := range dirty {
		assets = append(assets, asset)
	}
	return assets
}

package offer

import (
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// Recorder is invoked with each accepted (operation, offer) pair. Recorders
// may persist launched TaskInfos; their failures are logged and never roll
// back the accept, because the cluster manager's view is authoritative.
type Recorder interface {
	Record(op types.Operation, offer *types.Offer) error
}

// Accepter submits recommendations to the driver as accept operations,
// grouped into a single accept call per offer.
type Accepter struct {
	recorders []Recorder
	logger    zerolog.Logger
}

// NewAccepter creates an accepter that notifies the given recorders after
// each accept.
func NewAccepter(recorders ...Recorder) *Accepter {
	return &Accepter{
		recorders: recorders,
		logger:    log.WithComponent("offer-accepter"),
	}
}

// Accept groups the recommendations by offer id, submits one accept call
// per offer with the operations in recommendation order, then invokes the
// recorders. It returns the offer ids actually accepted; an offer whose
// accept call failed is not included.
func (a *Accepter) Accept(d driver.Driver, recs []Recommendation) []string {
	if len(recs) == 0 {
		return nil
	}

	// Group while preserving first-seen offer order.
	var order []string
	grouped := make(map[string][]Recommendation)
	for _, rec := range recs {
		id := rec.Offer.ID
		if _, seen := grouped[id]; !seen {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], rec)
	}

	var accepted []string
	for _, offerID := range order {
		offerRecs := grouped[offerID]
		ops := make([]types.Operation, 0, len(offerRecs))
		for _, rec := range offerRecs {
			ops = append(ops, rec.Operation)
		}
		if err := d.AcceptOffers(offerID, ops); err != nil {
			a.logger.Error().Err(err).Str("offer", offerID).Msg("accept call failed")
			continue
		}
		accepted = append(accepted, offerID)
		metrics.OffersAccepted.Inc()
		a.logger.Info().Str("offer", offerID).Int("operations", len(ops)).Msg("accepted offer")

		for _, rec := range offerRecs {
			for _, recorder := range a.recorders {
				if err := recorder.Record(rec.Operation, rec.Offer); err != nil {
					a.logger.Error().Err(err).
						Str("offer", offerID).
						Str("operation", string(rec.Operation.Type)).
						Msg("operation recorder failed")
				}
			}
		}
	}
	return accepted
}

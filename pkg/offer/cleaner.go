package offer

import (
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// Cleaner ensures reserved resources are not leaked. An agent may be gone
// long enough for its tasks to be relocated, then return and offer the old
// reservations again; those reservations no longer appear in the state
// store and must be released back to the cluster.
type Cleaner struct {
	store  storage.Store
	role   string
	logger zerolog.Logger
}

// NewCleaner creates a resource cleaner for the framework's role.
func NewCleaner(store storage.Store, role string) *Cleaner {
	return &Cleaner{
		store:  store,
		role:   role,
		logger: log.WithComponent("resource-cleaner"),
	}
}

// Evaluate scans the offers for reserved resources and persistent volumes
// that no stored task expects, and recommends DESTROY for unexpected
// volumes followed by UNRESERVE for the freed reservations.
func (c *Cleaner) Evaluate(offers []*types.Offer) []Recommendation {
	if len(offers) == 0 {
		return nil
	}

	expected, err := c.expectedReservations()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load expected reservations; skipping cleanup pass")
		return nil
	}

	var recs []Recommendation
	for _, o := range offers {
		for _, res := range o.Resources {
			if !res.Reserved() || res.Role != c.role {
				continue
			}
			if expected[res.ReservationID] {
				continue
			}
			if res.Volume != nil {
				c.logger.Info().
					Str("offer", o.ID).
					Str("persistence_id", res.Volume.PersistenceID).
					Msg("destroying unexpected volume")
				recs = append(recs, Recommendation{Offer: o, Operation: types.Operation{
					Type:      types.OperationDestroy,
					Resources: []types.Resource{res},
				}})
				res.Volume = nil
			}
			c.logger.Info().
				Str("offer", o.ID).
				Str("reservation_id", res.ReservationID).
				Str("resource", res.Name).
				Msg("unreserving unexpected reservation")
			recs = append(recs, Recommendation{Offer: o, Operation: types.Operation{
				Type:      types.OperationUnreserve,
				Resources: []types.Resource{res},
			}})
		}
	}
	return recs
}

func (c *Cleaner) expectedReservations() (map[string]bool, error) {
	tasks, err := c.store.Tasks()
	if err != nil {
		return nil, err
	}
	expected := make(map[string]bool)
	for _, task := range tasks {
		for _, res := range task.Resources {
			if res.Reserved() {
				expected[res.ReservationID] = true
			}
		}
	}
	return expected, nil
}

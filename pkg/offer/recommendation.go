package offer

import (
	"github.com/cuemby/flotilla/pkg/types"
)

// Recommendation bundles one operation with the offer it targets. Accepting
// every recommendation produced for a requirement fulfills that requirement
// using exactly one offer.
type Recommendation struct {
	Offer     *types.Offer
	Operation types.Operation
}

// LaunchedTaskIDs returns the task ids carried by LAUNCH recommendations.
func LaunchedTaskIDs(recs []Recommendation) []string {
	var ids []string
	for _, rec := range recs {
		if rec.Operation.Type != types.OperationLaunch {
			continue
		}
		for _, task := range rec.Operation.Tasks {
			ids = append(ids, task.ID)
		}
	}
	return ids
}

// FilterOutAccepted returns the offers whose ids are not in acceptedIDs,
// preserving arrival order.
func FilterOutAccepted(offers []*types.Offer, acceptedIDs []string) []*types.Offer {
	accepted := make(map[string]bool, len(acceptedIDs))
	for _, id := range acceptedIDs {
		accepted[id] = true
	}
	var unused []*types.Offer
	for _, o := range offers {
		if !accepted[o.ID] {
			unused = append(unused, o)
		}
	}
	return unused
}

package offer

import (
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Evaluator matches an offer requirement against a batch of offers. The
// first offer that fully satisfies the requirement wins; ties are broken by
// offer arrival order. Evaluation never produces a partial plan: either a
// full set of recommendations against one offer, or nothing.
type Evaluator struct {
	logger zerolog.Logger
}

// NewEvaluator creates an offer evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{logger: log.WithComponent("offer-evaluator")}
}

// Evaluate returns the recommendations that fulfill req using exactly one
// of the given offers, or nil if no single offer satisfies it.
func (e *Evaluator) Evaluate(req *Requirement, offers []*types.Offer) []Recommendation {
	if req == nil || len(offers) == 0 {
		return nil
	}
	for _, o := range offers {
		if recs := e.evaluateOffer(req, o); recs != nil {
			e.logger.Info().
				Str("offer", o.ID).
				Str("pod", req.Asset().String()).
				Int("recommendations", len(recs)).
				Msg("offer satisfies requirement")
			return recs
		}
	}
	e.logger.Info().Str("pod", req.Asset().String()).Int("offers", len(offers)).
		Msg("no offer satisfies requirement")
	return nil
}

func (e *Evaluator) evaluateOffer(req *Requirement, o *types.Offer) []Recommendation {
	if !req.Placement.Accepts(o) {
		return nil
	}
	for _, task := range req.Tasks {
		if !task.Spec.Placement.Accepts(o) {
			return nil
		}
	}

	pool := newResourcePool(o, req.Role)

	var destroys, unreserves, reserves, creates []types.Operation
	if req.Permanent {
		// Destructive recovery: tear down this pod's old volumes and their
		// reservations before reserving fresh ones.
		paths := requiredPaths(req)
		for _, vol := range pool.takeVolumes(paths) {
			destroys = append(destroys, types.Operation{
				Type:      types.OperationDestroy,
				Resources: []types.Resource{vol},
			})
			stripped := vol
			stripped.Volume = nil
			unreserves = append(unreserves, types.Operation{
				Type:      types.OperationUnreserve,
				Resources: []types.Resource{stripped},
			})
		}
	}

	var taskInfos []*types.TaskInfo
	for _, task := range req.Tasks {
		var resources []types.Resource

		cpus, ok := pool.consumeScalar("cpus", task.Resources.CPUs)
		if !ok {
			return nil
		}
		resources = append(resources, cpus...)

		mem, ok := pool.consumeScalar("mem", task.Resources.MemMB)
		if !ok {
			return nil
		}
		resources = append(resources, mem...)

		if n := task.Resources.Ports; n > 0 {
			ports, ok := pool.consumePorts(n)
			if !ok {
				return nil
			}
			resources = append(resources, ports...)
		}

		for _, volSpec := range task.Spec.Volumes {
			if !req.Permanent {
				if existing, ok := pool.takeVolume(volSpec.ContainerPath); ok {
					resources = append(resources, existing)
					continue
				}
			}
			// Volume missing: reserve disk and create it.
			if !pool.consumeUnreservedDisk(volSpec.SizeMB) {
				return nil
			}
			reservedDisk := types.Resource{
				Name:          "disk",
				Scalar:        volSpec.SizeMB,
				Role:          req.Role,
				Principal:     req.Principal,
				ReservationID: uuid.New().String(),
			}
			reserves = append(reserves, types.Operation{
				Type:      types.OperationReserve,
				Resources: []types.Resource{reservedDisk},
			})
			withVolume := reservedDisk
			withVolume.Volume = &types.VolumeInfo{
				PersistenceID: uuid.New().String(),
				ContainerPath: volSpec.ContainerPath,
			}
			creates = append(creates, types.Operation{
				Type:      types.OperationCreate,
				Resources: []types.Resource{withVolume},
			})
			resources = append(resources, withVolume)
		}

		taskInfos = append(taskInfos, &types.TaskInfo{
			ID:           task.TaskID,
			Name:         task.Name,
			AgentID:      o.AgentID,
			Hostname:     o.Hostname,
			Command:      task.Spec.Command,
			User:         req.User,
			Resources:    resources,
			Health:       task.Spec.Health,
			Goal:         task.Spec.EffectiveGoal(),
			ConfigTarget: req.ConfigTarget,
			PodType:      req.PodType,
			PodIndex:     req.PodIndex,
		})
	}

	var recs []Recommendation
	appendOps := func(ops []types.Operation) {
		for _, op := range ops {
			recs = append(recs, Recommendation{Offer: o, Operation: op})
		}
	}
	appendOps(destroys)
	appendOps(unreserves)
	appendOps(reserves)
	appendOps(creates)
	recs = append(recs, Recommendation{Offer: o, Operation: types.Operation{
		Type:  types.OperationLaunch,
		Tasks: taskInfos,
	}})
	return recs
}

func requiredPaths(req *Requirement) map[string]bool {
	paths := make(map[string]bool)
	for _, task := range req.Tasks {
		for _, vol := range task.Spec.Volumes {
			paths[vol.ContainerPath] = true
		}
	}
	return paths
}

package offer

import (
	"testing"

	"github.com/cuemby/flotilla/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() *types.ServiceSpec {
	return &types.ServiceSpec{
		Name:      "data-service",
		Principal: "data-principal",
		Role:      "data-role",
		Pods: []*types.PodSpec{
			{
				Type:  "node",
				Index: 0,
				Tasks: []*types.TaskSpec{
					{Name: "server", Command: "./server", Resources: types.ResourceSet{CPUs: 1, MemMB: 1000}},
					{Name: "sidecar", Command: "./sidecar", Resources: types.ResourceSet{CPUs: 1, MemMB: 500}},
				},
			},
		},
	}
}

func testRequirement(spec *types.ServiceSpec) *Requirement {
	return NewRequirement(spec, spec.Pods[0], "target-1")
}

func plainOffer(id string, cpus, mem float64) *types.Offer {
	return &types.Offer{
		ID:       id,
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: cpus},
			{Name: "mem", Scalar: mem},
		},
	}
}

func opTypes(recs []Recommendation) []types.OperationType {
	var out []types.OperationType
	for _, rec := range recs {
		out = append(out, rec.Operation.Type)
	}
	return out
}

func TestEvaluateLaunchesBothTasksOnOneOffer(t *testing.T) {
	e := NewEvaluator()
	req := testRequirement(testSpec())

	recs := e.Evaluate(req, []*types.Offer{plainOffer("o1", 4, 2000)})
	require.Len(t, recs, 1)
	assert.Equal(t, types.OperationLaunch, recs[0].Operation.Type)
	assert.Equal(t, "o1", recs[0].Offer.ID)

	tasks := recs[0].Operation.Tasks
	require.Len(t, tasks, 2)
	assert.Equal(t, "node-0-server", tasks[0].Name)
	assert.Equal(t, "node-0-sidecar", tasks[1].Name)
	assert.Equal(t, "target-1", tasks[0].ConfigTarget)
	assert.Equal(t, "agent-1", tasks[0].AgentID)
}

func TestEvaluatePodLevelResourceSet(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Resources = []types.ResourceSet{
		{ID: "server-resources", CPUs: 2, MemMB: 1500},
	}
	spec.Pods[0].Tasks = []*types.TaskSpec{
		{Name: "server", Command: "./server", ResourceSetID: "server-resources"},
	}
	req := testRequirement(spec)

	assert.Empty(t, e.Evaluate(req, []*types.Offer{plainOffer("small", 1, 2000)}),
		"the referenced set's cpu ask applies, not the empty inline one")

	recs := e.Evaluate(req, []*types.Offer{plainOffer("big", 4, 2000)})
	require.Len(t, recs, 1)
	assert.Equal(t, types.OperationLaunch, recs[0].Operation.Type)
}

func TestEvaluateInsufficientResources(t *testing.T) {
	e := NewEvaluator()
	req := testRequirement(testSpec())

	assert.Empty(t, e.Evaluate(req, []*types.Offer{plainOffer("o1", 4, 1000)}),
		"not enough memory for both tasks")
	assert.Empty(t, e.Evaluate(req, []*types.Offer{plainOffer("o1", 1, 4000)}),
		"not enough cpus for both tasks")
}

func TestEvaluateFirstSatisfyingOfferWins(t *testing.T) {
	e := NewEvaluator()
	req := testRequirement(testSpec())

	recs := e.Evaluate(req, []*types.Offer{
		plainOffer("small", 0.5, 100),
		plainOffer("first-fit", 4, 2000),
		plainOffer("also-fits", 8, 4000),
	})
	require.NotEmpty(t, recs)
	assert.Equal(t, "first-fit", recs[0].Offer.ID)
}

func TestEvaluatePlacementRule(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Placement = &types.PlacementRule{AvoidHostnames: []string{"host-1"}}
	req := testRequirement(spec)

	assert.Empty(t, e.Evaluate(req, []*types.Offer{plainOffer("o1", 4, 2000)}))

	other := plainOffer("o2", 4, 2000)
	other.Hostname = "host-2"
	recs := e.Evaluate(req, []*types.Offer{plainOffer("o1", 4, 2000), other})
	require.NotEmpty(t, recs)
	assert.Equal(t, "o2", recs[0].Offer.ID)
}

func TestEvaluateAttributePlacement(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Placement = &types.PlacementRule{Attributes: map[string]string{"rack": "r2"}}
	req := testRequirement(spec)

	o := plainOffer("o1", 4, 2000)
	assert.Empty(t, e.Evaluate(req, []*types.Offer{o}))

	o.Attributes = map[string]string{"rack": "r2"}
	assert.NotEmpty(t, e.Evaluate(req, []*types.Offer{o}))
}

func TestEvaluatePrefersReservedResources(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Tasks = spec.Pods[0].Tasks[:1] // just the server: 1 cpu, 1000 mem
	req := testRequirement(spec)

	o := &types.Offer{
		ID:       "o1",
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 1, Role: "data-role", Principal: "data-principal", ReservationID: "res-cpu"},
			{Name: "cpus", Scalar: 4},
			{Name: "mem", Scalar: 1000, Role: "data-role", Principal: "data-principal", ReservationID: "res-mem"},
			{Name: "mem", Scalar: 4000},
		},
	}
	recs := e.Evaluate(req, []*types.Offer{o})
	require.Len(t, recs, 1)

	resources := recs[0].Operation.Tasks[0].Resources
	for _, res := range resources {
		assert.True(t, res.Reserved(), "reserved %s consumed before unreserved", res.Name)
	}
}

func TestEvaluateMissingVolumeReservesAndCreates(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Tasks = []*types.TaskSpec{{
		Name:      "db",
		Command:   "./db",
		Resources: types.ResourceSet{CPUs: 1, MemMB: 1000},
		Volumes:   []*types.VolumeSpec{{ContainerPath: "data", SizeMB: 500}},
	}}
	req := testRequirement(spec)

	o := &types.Offer{
		ID:       "o1",
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "mem", Scalar: 2000},
			{Name: "disk", Scalar: 1000},
		},
	}
	recs := e.Evaluate(req, []*types.Offer{o})
	assert.Equal(t,
		[]types.OperationType{types.OperationReserve, types.OperationCreate, types.OperationLaunch},
		opTypes(recs))

	reserve := recs[0].Operation.Resources[0]
	assert.Equal(t, "disk", reserve.Name)
	assert.Equal(t, 500.0, reserve.Scalar)
	assert.Equal(t, "data-role", reserve.Role)
	assert.True(t, reserve.Reserved())

	create := recs[1].Operation.Resources[0]
	require.NotNil(t, create.Volume)
	assert.Equal(t, "data", create.Volume.ContainerPath)
	assert.Equal(t, reserve.ReservationID, create.ReservationID)
}

func TestEvaluateExistingVolumeReused(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Tasks = []*types.TaskSpec{{
		Name:      "db",
		Command:   "./db",
		Resources: types.ResourceSet{CPUs: 1, MemMB: 1000},
		Volumes:   []*types.VolumeSpec{{ContainerPath: "data", SizeMB: 500}},
	}}
	req := testRequirement(spec)

	o := &types.Offer{
		ID:       "o1",
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "mem", Scalar: 2000},
			{Name: "disk", Scalar: 500, Role: "data-role", ReservationID: "res-disk",
				Volume: &types.VolumeInfo{PersistenceID: "vol-1", ContainerPath: "data"}},
		},
	}
	recs := e.Evaluate(req, []*types.Offer{o})
	assert.Equal(t, []types.OperationType{types.OperationLaunch}, opTypes(recs),
		"existing volume needs no RESERVE/CREATE")
}

func TestEvaluatePermanentRecoveryTearsDownOldVolume(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Tasks = []*types.TaskSpec{{
		Name:      "db",
		Command:   "./db",
		Resources: types.ResourceSet{CPUs: 1, MemMB: 1000},
		Volumes:   []*types.VolumeSpec{{ContainerPath: "data", SizeMB: 500}},
	}}
	req := testRequirement(spec)
	req.Permanent = true

	o := &types.Offer{
		ID:       "o1",
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "mem", Scalar: 2000},
			{Name: "disk", Scalar: 1000},
			{Name: "disk", Scalar: 500, Role: "data-role", ReservationID: "res-old",
				Volume: &types.VolumeInfo{PersistenceID: "vol-old", ContainerPath: "data"}},
		},
	}
	recs := e.Evaluate(req, []*types.Offer{o})
	assert.Equal(t,
		[]types.OperationType{
			types.OperationDestroy,
			types.OperationUnreserve,
			types.OperationReserve,
			types.OperationCreate,
			types.OperationLaunch,
		},
		opTypes(recs))

	assert.Equal(t, "res-old", recs[0].Operation.Resources[0].ReservationID)
	assert.NotEqual(t, "res-old", recs[2].Operation.Resources[0].ReservationID,
		"fresh reservation replaces the destroyed one")
}

func TestEvaluatePortAssignment(t *testing.T) {
	e := NewEvaluator()
	spec := testSpec()
	spec.Pods[0].Tasks = []*types.TaskSpec{{
		Name:      "server",
		Command:   "./server",
		Resources: types.ResourceSet{CPUs: 1, MemMB: 1000, Ports: 2},
	}}
	req := testRequirement(spec)

	o := plainOffer("o1", 4, 2000)
	o.Resources = append(o.Resources, types.Resource{
		Name:   "ports",
		Ranges: []types.PortRange{{Begin: 31000, End: 31001}},
	})
	recs := e.Evaluate(req, []*types.Offer{o})
	require.Len(t, recs, 1)

	var ports int
	for _, res := range recs[0].Operation.Tasks[0].Resources {
		if res.Name == "ports" {
			for _, r := range res.Ranges {
				ports += int(r.End - r.Begin + 1)
			}
		}
	}
	assert.Equal(t, 2, ports)

	// Not enough ports fails the whole offer.
	o.Resources[len(o.Resources)-1].Ranges = []types.PortRange{{Begin: 31000, End: 31000}}
	assert.Empty(t, e.Evaluate(req, []*types.Offer{o}))
}

func TestEvaluateNeverEmitsPartialPlans(t *testing.T) {
	e := NewEvaluator()
	req := testRequirement(testSpec())

	// First task fits, second does not: nothing is emitted at all.
	recs := e.Evaluate(req, []*types.Offer{plainOffer("o1", 1.5, 1200)})
	assert.Empty(t, recs)
}

package offer

import (
	"fmt"

	"github.com/cuemby/flotilla/pkg/types"
	"github.com/google/uuid"
)

// TaskRequirement pairs a task spec with the identity its launch will use
// and its resolved resource asks (inline or from a pod-level resource
// set). Task ids are generated up front so a step can track its launches
// before any status arrives.
type TaskRequirement struct {
	Spec      *types.TaskSpec
	Name      string
	TaskID    string
	Resources types.ResourceSet
}

// Requirement describes everything needed to place one pod instance using
// exactly one offer. Requirements are immutable once built.
type Requirement struct {
	ConfigTarget string
	PodType      string
	PodIndex     int
	User         string
	Role         string
	Principal    string
	Placement    *types.PlacementRule
	Tasks        []TaskRequirement

	// Permanent marks a destructive recovery launch: existing reservations
	// and volumes for this pod are torn down on the chosen offer before a
	// fresh reservation is made.
	Permanent bool
}

// NewRequirement builds a requirement for one pod instance against the
// given config target, generating fresh task ids.
func NewRequirement(spec *types.ServiceSpec, pod *types.PodSpec, configTarget string) *Requirement {
	req := &Requirement{
		ConfigTarget: configTarget,
		PodType:      pod.Type,
		PodIndex:     pod.Index,
		User:         pod.User,
		Role:         spec.Role,
		Principal:    spec.Principal,
		Placement:    pod.Placement,
	}
	for _, task := range pod.Tasks {
		name := types.TaskName(pod.Type, pod.Index, task.Name)
		req.Tasks = append(req.Tasks, TaskRequirement{
			Spec:      task,
			Name:      name,
			TaskID:    fmt.Sprintf("%s__%s", name, uuid.New().String()),
			Resources: pod.TaskResources(task),
		})
	}
	return req
}

// Asset returns the pod instance this requirement places.
func (r *Requirement) Asset() types.Asset {
	return types.Asset{PodType: r.PodType, Index: r.PodIndex}
}

// TaskIDs returns the pre-generated task ids in task order.
func (r *Requirement) TaskIDs() []string {
	ids := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		ids = append(ids, t.TaskID)
	}
	return ids
}

func (r *Requirement) String() string {
	return fmt.Sprintf("%s (%d tasks, target %s)", r.Asset(), len(r.Tasks), r.ConfigTarget)
}

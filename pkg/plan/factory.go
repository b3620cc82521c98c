package plan

import (
	"errors"
	"fmt"

	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
)

// NewDeploymentPlan builds the deployment plan for a service spec at the
// given config target: one phase per pod type in declaration order, one
// step per pod instance, serial strategies throughout.
//
// Stored state seeds step status: a pod whose tasks are all recorded at the
// current target and have reached their goal starts COMPLETE, so a restart
// does not redeploy a healthy service. Any config change yields a new
// target, so it reopens every step whose tasks were recorded at an earlier
// target, whether or not that pod's spec changed.
func NewDeploymentPlan(spec *types.ServiceSpec, configTarget string, store storage.Store) (*Plan, error) {
	var typeOrder []string
	byType := make(map[string][]*types.PodSpec)
	for _, pod := range spec.Pods {
		if _, seen := byType[pod.Type]; !seen {
			typeOrder = append(typeOrder, pod.Type)
		}
		byType[pod.Type] = append(byType[pod.Type], pod)
	}

	var phases []*Phase
	for _, podType := range typeOrder {
		var steps []Step
		for _, pod := range byType[podType] {
			step := NewDeploymentStep(spec, pod, configTarget)
			deployed, taskIDs, goals, err := podDeployed(store, pod, configTarget)
			if err != nil {
				return nil, fmt.Errorf("failed to load state for pod %s-%d: %w", pod.Type, pod.Index, err)
			}
			if deployed {
				step.MarkComplete(taskIDs, goals)
			}
			steps = append(steps, step)
		}
		phases = append(phases, NewPhase(podType, steps, NewSerialStrategy()))
	}

	return NewPlan("deploy", phases, NewSerialStrategy()), nil
}

// podDeployed reports whether every task of the pod is recorded at the
// given target and has reached its goal state.
func podDeployed(store storage.Store, pod *types.PodSpec, configTarget string) (bool, []string, map[string]types.GoalState, error) {
	var taskIDs []string
	goals := make(map[string]types.GoalState)
	for _, task := range pod.Tasks {
		name := types.TaskName(pod.Type, pod.Index, task.Name)
		info, err := store.Task(name)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil, nil, nil
		}
		if err != nil {
			return false, nil, nil, err
		}
		if info.ConfigTarget != configTarget {
			return false, nil, nil, nil
		}
		status, err := store.Status(info.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil, nil, nil
		}
		if err != nil {
			return false, nil, nil, err
		}
		reached := status.State == types.TaskRunning
		if task.EffectiveGoal() == types.GoalFinished {
			reached = status.State == types.TaskFinished
		}
		if !reached {
			return false, nil, nil, nil
		}
		taskIDs = append(taskIDs, info.ID)
		goals[info.ID] = task.EffectiveGoal()
	}
	return true, taskIDs, goals, nil
}

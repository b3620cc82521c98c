package config

import (
	"fmt"

	"github.com/cuemby/flotilla/pkg/types"
)

// Validator checks a proposed configuration change. The old spec is nil on
// first deployment.
type Validator interface {
	Validate(old, new *types.ServiceSpec) []error
}

// DefaultValidators returns the validators applied to every change:
// task sets cannot shrink, and task volumes cannot change.
func DefaultValidators() []Validator {
	return []Validator{
		TaskSetsCannotShrink{},
		TaskVolumesCannotChange{},
	}
}

// TaskSetsCannotShrink rejects changes that remove pods or reduce the task
// count within a pod. Scaling down would strand reserved resources.
type TaskSetsCannotShrink struct{}

func (TaskSetsCannotShrink) Validate(old, new *types.ServiceSpec) []error {
	if old == nil {
		return nil
	}
	var errs []error
	newPods := podIndex(new)
	for asset, oldPod := range podIndex(old) {
		newPod, ok := newPods[asset]
		if !ok {
			errs = append(errs, fmt.Errorf("pod %s removed; task sets cannot shrink", asset))
			continue
		}
		if len(newPod.Tasks) < len(oldPod.Tasks) {
			errs = append(errs, fmt.Errorf(
				"pod %s task count reduced from %d to %d; task sets cannot shrink",
				asset, len(oldPod.Tasks), len(newPod.Tasks)))
		}
	}
	return errs
}

// TaskVolumesCannotChange rejects changes to a task's persistent volume
// requirements. Volumes are bound to reservations that outlive config
// generations.
type TaskVolumesCannotChange struct{}

func (TaskVolumesCannotChange) Validate(old, new *types.ServiceSpec) []error {
	if old == nil {
		return nil
	}
	var errs []error
	newPods := podIndex(new)
	for asset, oldPod := range podIndex(old) {
		newPod, ok := newPods[asset]
		if !ok {
			continue
		}
		newTasks := make(map[string]*types.TaskSpec)
		for _, t := range newPod.Tasks {
			newTasks[t.Name] = t
		}
		for _, oldTask := range oldPod.Tasks {
			newTask, ok := newTasks[oldTask.Name]
			if !ok {
				continue
			}
			if !volumesEqual(oldTask.Volumes, newTask.Volumes) {
				errs = append(errs, fmt.Errorf(
					"task %s in pod %s changed volumes; volumes cannot change",
					oldTask.Name, asset))
			}
		}
	}
	return errs
}

func podIndex(spec *types.ServiceSpec) map[types.Asset]*types.PodSpec {
	pods := make(map[types.Asset]*types.PodSpec)
	for _, pod := range spec.Pods {
		pods[types.Asset{PodType: pod.Type, Index: pod.Index}] = pod
	}
	return pods
}

func volumesEqual(a, b []*types.VolumeSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ContainerPath != b[i].ContainerPath || a[i].SizeMB != b[i].SizeMB {
			return false
		}
	}
	return true
}

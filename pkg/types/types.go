package types

import (
	"fmt"
	"time"
)

// ServiceSpec is the declarative description of a service to be deployed.
// A spec is immutable once stored; changes produce a new config generation.
type ServiceSpec struct {
	Name      string     `yaml:"name" json:"name"`
	Principal string     `yaml:"principal" json:"principal"`
	Role      string     `yaml:"role" json:"role"`
	Pods      []*PodSpec `yaml:"pods" json:"pods"`
}

// PodSpec describes one co-scheduled group of tasks, identified by
// (Type, Index) across the service. Resources holds named resource sets
// that the pod's tasks may reference instead of declaring asks inline.
type PodSpec struct {
	Type      string         `yaml:"type" json:"type"`
	User      string         `yaml:"user,omitempty" json:"user,omitempty"`
	Index     int            `yaml:"index" json:"index"`
	Tasks     []*TaskSpec    `yaml:"tasks" json:"tasks"`
	Resources []ResourceSet  `yaml:"resourceSets,omitempty" json:"resourceSets,omitempty"`
	Placement *PlacementRule `yaml:"placement,omitempty" json:"placement,omitempty"`
}

// ResourceSetByID returns the pod-level resource set with the given id.
func (p *PodSpec) ResourceSetByID(id string) (ResourceSet, bool) {
	for _, set := range p.Resources {
		if set.ID == id {
			return set, true
		}
	}
	return ResourceSet{}, false
}

// TaskResources resolves a task's resource asks: the pod-level set named
// by ResourceSetID when set, the task's inline resources otherwise.
func (p *PodSpec) TaskResources(task *TaskSpec) ResourceSet {
	if task.ResourceSetID != "" {
		if set, ok := p.ResourceSetByID(task.ResourceSetID); ok {
			return set
		}
	}
	return task.Resources
}

// TaskSpec describes a single task within a pod. Resource asks come either
// from the inline Resources or from a pod-level set named by ResourceSetID;
// ResourceSetID wins when both are present.
type TaskSpec struct {
	Name          string         `yaml:"name" json:"name"`
	Command       string         `yaml:"command" json:"command"`
	Resources     ResourceSet    `yaml:"resources,omitempty" json:"resources,omitempty"`
	ResourceSetID string         `yaml:"resourceSet,omitempty" json:"resourceSet,omitempty"`
	Volumes       []*VolumeSpec  `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	Placement     *PlacementRule `yaml:"placement,omitempty" json:"placement,omitempty"`
	Health        *HealthCheck   `yaml:"health,omitempty" json:"health,omitempty"`
	Goal          GoalState      `yaml:"goal,omitempty" json:"goal,omitempty"`
}

// GoalState is the terminal condition a task is expected to reach.
type GoalState string

const (
	// GoalRunning tasks are long-lived; they are complete once RUNNING.
	GoalRunning GoalState = "running"

	// GoalFinished tasks run to completion; they are complete once FINISHED.
	GoalFinished GoalState = "finished"
)

// EffectiveGoal returns the task's goal state, defaulting to GoalRunning.
func (t *TaskSpec) EffectiveGoal() GoalState {
	if t.Goal == GoalFinished {
		return GoalFinished
	}
	return GoalRunning
}

// ResourceSet is a set of resource quantities a task asks for. Pod-level
// sets carry an ID so tasks can reference them by name.
type ResourceSet struct {
	ID     string  `yaml:"id,omitempty" json:"id,omitempty"`
	CPUs   float64 `yaml:"cpus" json:"cpus"`
	MemMB  float64 `yaml:"mem" json:"mem"`
	DiskMB float64 `yaml:"disk,omitempty" json:"disk,omitempty"`
	Ports  int     `yaml:"ports,omitempty" json:"ports,omitempty"`
}

// VolumeSpec describes a persistent volume requirement.
type VolumeSpec struct {
	ContainerPath string  `yaml:"path" json:"path"`
	SizeMB        float64 `yaml:"size" json:"size"`
}

// PlacementRule constrains which offers a pod may be placed on. Rules are
// declarative so they survive spec serialization.
type PlacementRule struct {
	// Hostnames restricts placement to the listed hostnames when non-empty.
	Hostnames []string `yaml:"hostnames,omitempty" json:"hostnames,omitempty"`

	// AvoidHostnames rejects the listed hostnames.
	AvoidHostnames []string `yaml:"avoidHostnames,omitempty" json:"avoidHostnames,omitempty"`

	// Attributes requires the offer to carry all listed attribute pairs.
	Attributes map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Accepts reports whether the rule allows placement on the given offer.
func (r *PlacementRule) Accepts(offer *Offer) bool {
	if r == nil {
		return true
	}
	if len(r.Hostnames) > 0 {
		ok := false
		for _, h := range r.Hostnames {
			if h == offer.Hostname {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, h := range r.AvoidHostnames {
		if h == offer.Hostname {
			return false
		}
	}
	for k, v := range r.Attributes {
		if offer.Attributes[k] != v {
			return false
		}
	}
	return true
}

// HealthCheck defines task health checking, carried through to the launched
// task definition.
type HealthCheck struct {
	Command  string        `yaml:"command" json:"command"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Retries  int           `yaml:"retries" json:"retries"`
}

// Asset identifies a pod instance, the unit of mutual exclusion between
// plans acting on the cluster within one offer cycle.
type Asset struct {
	PodType string `json:"podType"`
	Index   int    `json:"index"`
}

func (a Asset) String() string {
	return fmt.Sprintf("%s-%d", a.PodType, a.Index)
}

// Validate checks structural invariants of a service spec.
func (s *ServiceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service spec missing name")
	}
	seen := make(map[Asset]bool)
	for _, pod := range s.Pods {
		if pod.Type == "" {
			return fmt.Errorf("pod in service %q missing type", s.Name)
		}
		asset := Asset{PodType: pod.Type, Index: pod.Index}
		if seen[asset] {
			return fmt.Errorf("duplicate pod %s in service %q", asset, s.Name)
		}
		seen[asset] = true
		if len(pod.Tasks) == 0 {
			return fmt.Errorf("pod %s in service %q has no tasks", asset, s.Name)
		}
		setIDs := make(map[string]bool, len(pod.Resources))
		for _, set := range pod.Resources {
			if set.ID == "" {
				return fmt.Errorf("pod %s has a resource set without an id", asset)
			}
			if setIDs[set.ID] {
				return fmt.Errorf("pod %s has duplicate resource set %q", asset, set.ID)
			}
			setIDs[set.ID] = true
		}
		for _, task := range pod.Tasks {
			if task.Name == "" {
				return fmt.Errorf("task in pod %s missing name", asset)
			}
			if task.ResourceSetID != "" && !setIDs[task.ResourceSetID] {
				return fmt.Errorf("task %s in pod %s references unknown resource set %q",
					task.Name, asset, task.ResourceSetID)
			}
		}
	}
	return nil
}

// TaskName returns the canonical cluster-wide task name for a task of a pod
// instance: <podType>-<index>-<taskName>.
func TaskName(podType string, index int, taskName string) string {
	return fmt.Sprintf("%s-%d-%s", podType, index, taskName)
}

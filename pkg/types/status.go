package types

import "time"

// TaskState is the cluster-reported state of a task.
type TaskState string

const (
	TaskStaging  TaskState = "TASK_STAGING"
	TaskStarting TaskState = "TASK_STARTING"
	TaskRunning  TaskState = "TASK_RUNNING"
	TaskFinished TaskState = "TASK_FINISHED"
	TaskFailed   TaskState = "TASK_FAILED"
	TaskKilled   TaskState = "TASK_KILLED"
	TaskLost     TaskState = "TASK_LOST"
	TaskError    TaskState = "TASK_ERROR"
)

// Terminal reports whether the state is terminal: the cluster will send no
// further updates for the task.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost, TaskError:
		return true
	}
	return false
}

// NeedsRecovery reports whether a task in this state has left its healthy
// run state and is a candidate for recovery.
func (s TaskState) NeedsRecovery() bool {
	switch s {
	case TaskFailed, TaskKilled, TaskLost, TaskError:
		return true
	}
	return false
}

// TaskStatus is an asynchronous update from the cluster about a task's
// current state.
type TaskStatus struct {
	TaskID       string
	State        TaskState
	Message      string
	AgentID      string
	ConfigTarget string
	Healthy      bool
	Timestamp    time.Time
}

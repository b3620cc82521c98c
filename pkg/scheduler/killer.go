package scheduler

import (
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/rs/zerolog"
)

// TaskFailureListener is notified when a task is killed destructively.
type TaskFailureListener interface {
	TaskFailed(taskID string)
}

// TaskKiller issues kill requests through the driver on behalf of the
// operator API's kill endpoint.
type TaskKiller struct {
	driver   driver.Driver
	listener TaskFailureListener
	logger   zerolog.Logger
}

// NewTaskKiller creates a task killer. The listener may be nil.
func NewTaskKiller(d driver.Driver, listener TaskFailureListener) *TaskKiller {
	return &TaskKiller{
		driver:   d,
		listener: listener,
		logger:   log.WithComponent("task-killer"),
	}
}

// KillTask asks the cluster to kill the task. A destructive kill also
// notifies the failure listener.
func (k *TaskKiller) KillTask(taskID string, destructive bool) error {
	k.logger.Info().Str("task_id", taskID).Bool("destructive", destructive).Msg("killing task")
	if err := k.driver.KillTask(taskID); err != nil {
		return err
	}
	if destructive && k.listener != nil {
		k.listener.TaskFailed(taskID)
	}
	return nil
}

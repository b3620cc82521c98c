package driver

import (
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/rs/zerolog"
)

// LogDriver is a Driver that logs every outbound call and performs no
// cluster communication. It is the integration point a real resource
// manager binding replaces; running the binary without a binding exercises
// the full engine against this driver.
type LogDriver struct {
	logger zerolog.Logger
}

// NewLogDriver creates a logging driver.
func NewLogDriver() *LogDriver {
	return &LogDriver{logger: log.WithComponent("driver")}
}

func (d *LogDriver) AcceptOffers(offerID string, operations []types.Operation) error {
	d.logger.Info().Str("offer", offerID).Int("operations", len(operations)).Msg("accept offers")
	return nil
}

func (d *LogDriver) DeclineOffer(offerID string) error {
	d.logger.Info().Str("offer", offerID).Msg("decline offer")
	return nil
}

func (d *LogDriver) KillTask(taskID string) error {
	d.logger.Info().Str("task_id", taskID).Msg("kill task")
	return nil
}

func (d *LogDriver) ReconcileTasks(statuses []types.TaskStatus) error {
	d.logger.Info().Int("tasks", len(statuses)).Msg("reconcile tasks")
	return nil
}

func (d *LogDriver) SuppressOffers() error {
	d.logger.Info().Msg("suppress offers")
	return nil
}

func (d *LogDriver) ReviveOffers() error {
	d.logger.Info().Msg("revive offers")
	return nil
}

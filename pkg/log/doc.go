/*
Package log provides structured logging for Flotilla built on zerolog.

A single global logger is initialized once at process start and shared by
all components through child loggers carrying a component field:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("plan-coordinator")
	logger.Info().Int("offers", len(offers)).Msg("processing offer batch")

Console output (human-readable, RFC3339 timestamps) is the default; JSON
output is available for log aggregation:

	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true})

Child logger helpers exist for the fields that recur across the engine:
WithComponent, WithPlan, WithStep, and WithTaskID. Fatal paths inside the
engine never log at fatal level directly; they surface a typed fatal error
to the process supervisor, which flushes and exits.
*/
package log

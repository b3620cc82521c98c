/*
Package api exposes the operator surface of the scheduler over HTTP.

Endpoints:

	GET  /health                                  liveness
	GET  /metrics                                 prometheus metrics
	GET  /v1/plans                                plan summaries
	GET  /v1/plans/{plan}                         full plan tree
	POST /v1/plans/{plan}/interrupt               pause the plan's strategy
	POST /v1/plans/{plan}/continue                resume it
	POST /v1/plans/{plan}/restart?phase=&step=    reset a step to PENDING
	POST /v1/plans/{plan}/forceComplete?phase=&step=
	GET  /v1/tasks                                known tasks and last state
	GET  /v1/tasks/{name}/status                  last status for one task
	POST /v1/tasks/{name}/kill?destructive=       kill a task

The server reads plan and task state directly; it never mutates engine
state except through the plan managers' admin surface and the task killer,
both of which are safe to call off the scheduler's serial executor.
*/
package api

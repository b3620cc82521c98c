/*
Package storage provides persistent framework state storage backed by BoltDB.

The Store interface covers the state a framework scheduler must survive a
restart with:

  - the framework id assigned at registration
  - every launched TaskInfo, keyed by task name
  - the last received TaskStatus per task id
  - the offer-suppression flag
  - a raw property space used by the config store for targets and
    serialized service specifications

# Layout

BoltStore keeps one bucket per record kind, with JSON-encoded values:

	framework/   id, suppressed
	tasks/       <task name> -> TaskInfo
	statuses/    <task id>   -> TaskStatus
	properties/  <key>       -> opaque bytes

# Concurrency

Writes are issued only from the scheduler's serial executor. Reads may come
from any goroutine (the operator API reads tasks and statuses directly);
BoltDB's single-writer/multi-reader transactions provide the required
isolation without additional locking.

# Usage

	store, err := storage.NewBoltStore("/var/lib/flotilla")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.StoreTasks(taskInfo)
	tasks, err := store.Tasks()

Missing records are reported with ErrNotFound, which callers test with
errors.Is.
*/
package storage

package recovery

import (
	"testing"
	"time"

	"github.com/cuemby/flotilla/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNeverFailureMonitor(t *testing.T) {
	m := NeverFailureMonitor{}
	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskFailed})
	assert.False(t, m.PermanentlyFailed("t1"))
}

func TestTimedFailureMonitor(t *testing.T) {
	m := NewTimedFailureMonitor(10 * time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskLost})
	assert.False(t, m.PermanentlyFailed("t1"), "failure window just opened")

	now = now.Add(5 * time.Minute)
	assert.False(t, m.PermanentlyFailed("t1"))

	now = now.Add(6 * time.Minute)
	assert.True(t, m.PermanentlyFailed("t1"), "failed past the timeout")
}

func TestTimedFailureMonitorHealthyStatusClearsWindow(t *testing.T) {
	m := NewTimedFailureMonitor(10 * time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskFailed})
	now = now.Add(5 * time.Minute)
	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskRunning})
	now = now.Add(20 * time.Minute)
	assert.False(t, m.PermanentlyFailed("t1"), "recovery in between reset the window")
}

func TestTimedFailureMonitorKeepsFirstFailureTime(t *testing.T) {
	m := NewTimedFailureMonitor(10 * time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskFailed})
	now = now.Add(9 * time.Minute)
	m.Observe(types.TaskStatus{TaskID: "t1", State: types.TaskFailed})
	now = now.Add(2 * time.Minute)
	assert.True(t, m.PermanentlyFailed("t1"),
		"repeated failures do not restart the window")
}

func TestTimedLaunchConstrainer(t *testing.T) {
	c := NewTimedLaunchConstrainer(10 * time.Minute)

	assert.True(t, c.CanLaunch(Transient), "transient launches are unconstrained")
	assert.True(t, c.CanLaunch(Permanent), "first destructive launch allowed")

	c.LaunchHappened(Permanent)
	assert.False(t, c.CanLaunch(Permanent), "second destructive launch rate-limited")
	assert.True(t, c.CanLaunch(Transient))

	c.LaunchHappened(Transient)
	assert.True(t, c.CanLaunch(Transient), "transient launches never consume the budget")
}

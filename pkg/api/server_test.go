package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/flotilla/pkg/plan"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKiller struct {
	killed      []string
	destructive []bool
}

func (k *fakeKiller) KillTask(taskID string, destructive bool) error {
	k.killed = append(k.killed, taskID)
	k.destructive = append(k.destructive, destructive)
	return nil
}

func testServer(t *testing.T) (*Server, *plan.DeploymentStep, storage.Store, *fakeKiller) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	spec := &types.ServiceSpec{
		Name: "data-service",
		Role: "data-role",
		Pods: []*types.PodSpec{{
			Type:  "node",
			Index: 0,
			Tasks: []*types.TaskSpec{
				{Name: "server", Command: "./server", Resources: types.ResourceSet{CPUs: 1, MemMB: 1000}},
			},
		}},
	}
	step := plan.NewDeploymentStep(spec, spec.Pods[0], "target-1")
	p := plan.NewPlan("deploy",
		[]*plan.Phase{plan.NewPhase("node", []plan.Step{step}, plan.NewSerialStrategy())},
		plan.NewSerialStrategy())

	killer := &fakeKiller{}
	server := NewServer(map[string]plan.Manager{"deploy": plan.NewManager(p)}, store, killer)
	return server, step, store, killer
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	server, _, _, _ := testServer(t)
	rec := get(t, server.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlansSummary(t *testing.T) {
	server, _, _, _ := testServer(t)
	rec := get(t, server.Handler(), "/v1/plans")
	require.Equal(t, http.StatusOK, rec.Code)

	var plans map[string]planSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Contains(t, plans, "deploy")
	assert.Equal(t, "PENDING", plans["deploy"].Status)
	assert.False(t, plans["deploy"].Interrupted)
}

func TestPlanTree(t *testing.T) {
	server, _, _, _ := testServer(t)
	rec := get(t, server.Handler(), "/v1/plans/deploy")
	require.Equal(t, http.StatusOK, rec.Code)

	var view planView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "deploy", view.Name)
	require.Len(t, view.Phases, 1)
	require.Len(t, view.Phases[0].Steps, 1)
	assert.Equal(t, "node-0", view.Phases[0].Steps[0].Name)

	assert.Equal(t, http.StatusNotFound, get(t, server.Handler(), "/v1/plans/nope").Code)
}

func TestInterruptAndContinue(t *testing.T) {
	server, _, _, _ := testServer(t)
	h := server.Handler()

	require.Equal(t, http.StatusOK, post(t, h, "/v1/plans/deploy/interrupt").Code)

	var plans map[string]planSummary
	rec := get(t, h, "/v1/plans")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	assert.True(t, plans["deploy"].Interrupted)
	assert.Equal(t, "WAITING", plans["deploy"].Status)

	require.Equal(t, http.StatusOK, post(t, h, "/v1/plans/deploy/continue").Code)
	rec = get(t, h, "/v1/plans")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	assert.False(t, plans["deploy"].Interrupted)
}

func TestStepAdmin(t *testing.T) {
	server, step, _, _ := testServer(t)
	h := server.Handler()

	var view planView
	rec := get(t, h, "/v1/plans/deploy")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	phaseID := view.Phases[0].ID
	stepID := view.Phases[0].Steps[0].ID

	rec = post(t, h, "/v1/plans/deploy/forceComplete?phase="+phaseID+"&step="+stepID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.StatusComplete, step.Status())

	rec = post(t, h, "/v1/plans/deploy/restart?phase="+phaseID+"&step="+stepID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.StatusPending, step.Status())

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/v1/plans/deploy/restart").Code)
	assert.Equal(t, http.StatusNotFound,
		post(t, h, "/v1/plans/deploy/restart?phase=x&step=y").Code)
}

func TestTasks(t *testing.T) {
	server, _, store, _ := testServer(t)
	h := server.Handler()

	require.NoError(t, store.StoreTasks(&types.TaskInfo{
		ID: "id-1", Name: "node-0-server", AgentID: "agent-1", ConfigTarget: "target-1",
	}))
	require.NoError(t, store.StoreStatus(types.TaskStatus{
		TaskID: "id-1", State: types.TaskRunning, Timestamp: time.Now(),
	}))

	rec := get(t, h, "/v1/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []taskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "TASK_RUNNING", tasks[0].State)

	rec = get(t, h, "/v1/tasks/node-0-server/status")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/tasks/stranger/status").Code)
}

func TestKillTask(t *testing.T) {
	server, _, store, killer := testServer(t)
	h := server.Handler()

	require.NoError(t, store.StoreTasks(&types.TaskInfo{ID: "id-1", Name: "node-0-server"}))

	rec := post(t, h, "/v1/tasks/node-0-server/kill?destructive=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"id-1"}, killer.killed)
	assert.Equal(t, []bool{true}, killer.destructive)
}

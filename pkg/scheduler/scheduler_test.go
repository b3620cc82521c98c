package scheduler

import (
	"testing"
	"time"

	"github.com/cuemby/flotilla/pkg/config"
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/events"
	"github.com/cuemby/flotilla/pkg/plan"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() *types.ServiceSpec {
	return &types.ServiceSpec{
		Name:      "data-service",
		Principal: "data-principal",
		Role:      "data-role",
		Pods: []*types.PodSpec{
			{
				Type:  "node",
				Index: 0,
				Tasks: []*types.TaskSpec{
					{Name: "t1", Command: "./t1", Resources: types.ResourceSet{CPUs: 1, MemMB: 1000}},
					{Name: "t2", Command: "./t2", Resources: types.ResourceSet{CPUs: 1, MemMB: 500}},
				},
			},
		},
	}
}

func bigOffer(id string) *types.Offer {
	return &types.Offer{
		ID:       id,
		AgentID:  "agent-1",
		Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "mem", Scalar: 2000},
		},
	}
}

type testHarness struct {
	sched  *Scheduler
	d      *driver.MockDriver
	store  storage.Store
	cfgs   *config.Store
	broker *events.Broker
}

func newHarness(t *testing.T, spec *types.ServiceSpec, store storage.Store) *testHarness {
	t.Helper()
	if store == nil {
		var err error
		store, err = storage.NewBoltStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfgs := config.NewStore(store)
	sched := New(spec, store, cfgs, broker, DefaultConfig())
	t.Cleanup(sched.Stop)

	return &testHarness{
		sched:  sched,
		d:      driver.NewMockDriver(),
		store:  store,
		cfgs:   cfgs,
		broker: broker,
	}
}

// register drives registration and waits for the serial executor to drain.
func (h *testHarness) register(t *testing.T) {
	t.Helper()
	h.sched.Registered(h.d, "framework-1", "master-1")
	h.sched.executor.Wait()
	select {
	case <-h.sched.Ready():
	case fatal := <-h.sched.Fatal():
		t.Fatalf("fatal during registration: %v", fatal)
	}
}

func (h *testHarness) offers(t *testing.T, offers ...*types.Offer) {
	t.Helper()
	h.sched.ResourceOffers(h.d, offers)
	h.sched.executor.Wait()
}

func (h *testHarness) status(t *testing.T, status types.TaskStatus) {
	t.Helper()
	h.sched.StatusUpdate(h.d, status)
	h.sched.executor.Wait()
}

func (h *testHarness) target(t *testing.T) string {
	t.Helper()
	target, err := h.cfgs.Target()
	require.NoError(t, err)
	return target
}

func (h *testHarness) runAll(t *testing.T, taskIDs []string) {
	t.Helper()
	target := h.target(t)
	for _, id := range taskIDs {
		h.status(t, types.TaskStatus{
			TaskID:       id,
			State:        types.TaskRunning,
			ConfigTarget: target,
			Timestamp:    time.Now(),
		})
	}
}

func TestFreshDeploymentSinglePodTwoTasks(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.offers(t, bigOffer("o1"))

	accepts := h.d.AcceptCalls()
	require.Len(t, accepts, 1, "one accept on o1")
	assert.Equal(t, "o1", accepts[0].OfferID)
	launched := h.d.LaunchedTaskIDs()
	require.Len(t, launched, 2, "t1 and t2 launched together")
	assert.Empty(t, h.d.DeclinedOfferIDs())

	h.runAll(t, launched)
	deploy := h.sched.Managers()["deploy"]
	assert.Equal(t, plan.StatusComplete, deploy.Plan().Status())

	// With no work left the coordinator notification suppresses offers.
	require.Eventually(t, func() bool {
		h.sched.executor.Wait()
		return h.d.SuppressCalls() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Launched tasks were recorded for restart survivability.
	tasks, err := h.store.Tasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestOfferPartition(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.offers(t, bigOffer("o1"), bigOffer("o2"), bigOffer("o3"))

	accepted := h.d.AcceptedOfferIDs()
	declined := h.d.DeclinedOfferIDs()
	assert.Len(t, accepted, 1)
	assert.Len(t, declined, 2, "every offer in the batch is accepted or declined")
	seen := map[string]bool{}
	for _, id := range append(accepted, declined...) {
		seen[id] = true
	}
	assert.Equal(t, map[string]bool{"o1": true, "o2": true, "o3": true}, seen)
}

func TestInterruptedRollout(t *testing.T) {
	spec := testSpec()
	spec.Pods = []*types.PodSpec{
		{Type: "node", Index: 0, Tasks: []*types.TaskSpec{
			{Name: "t", Command: "./t", Resources: types.ResourceSet{CPUs: 1, MemMB: 500}}}},
		{Type: "node", Index: 1, Tasks: []*types.TaskSpec{
			{Name: "t", Command: "./t", Resources: types.ResourceSet{CPUs: 1, MemMB: 500}}}},
		{Type: "node", Index: 2, Tasks: []*types.TaskSpec{
			{Name: "t", Command: "./t", Resources: types.ResourceSet{CPUs: 1, MemMB: 500}}}},
	}
	h := newHarness(t, spec, nil)
	h.register(t)

	// Step 1 deploys and completes.
	h.offers(t, bigOffer("o1"))
	require.Len(t, h.d.LaunchedTaskIDs(), 1)
	h.runAll(t, h.d.LaunchedTaskIDs())

	// Operator interrupts the deployment plan.
	deploy := h.sched.Managers()["deploy"]
	deploy.Interrupt()
	assert.Equal(t, plan.StatusWaiting, deploy.Plan().Status())

	h.offers(t, bigOffer("o2"))
	assert.Len(t, h.d.LaunchedTaskIDs(), 1, "no launches while interrupted")
	assert.Contains(t, h.d.DeclinedOfferIDs(), "o2")

	// After proceed, step 2 starts on the next batch.
	deploy.Proceed()
	h.offers(t, bigOffer("o3"))
	assert.Len(t, h.d.LaunchedTaskIDs(), 2)
}

func TestReconciliationGate(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// The framework already knows a task; the cluster has not confirmed it.
	require.NoError(t, store.StoreStatus(types.TaskStatus{
		TaskID:    "task-x",
		State:     types.TaskRunning,
		Timestamp: time.Now(),
	}))

	h := newHarness(t, testSpec(), store)
	h.register(t)

	// First batch arrives before any status update: everything declined.
	h.offers(t, bigOffer("o1"))
	assert.Empty(t, h.d.AcceptCalls(), "no LAUNCH while unreconciled")
	assert.Equal(t, []string{"o1"}, h.d.DeclinedOfferIDs())

	// The cluster confirms the task; the next batch proceeds normally.
	h.status(t, types.TaskStatus{TaskID: "task-x", State: types.TaskRunning, Timestamp: time.Now()})
	h.offers(t, bigOffer("o2"))
	assert.Len(t, h.d.LaunchedTaskIDs(), 2)
}

func TestTransientRecoveryRelaunches(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.offers(t, bigOffer("o1"))
	launched := h.d.LaunchedTaskIDs()
	require.Len(t, launched, 2)
	h.runAll(t, launched)

	// One task dies after deployment completed.
	h.status(t, types.TaskStatus{
		TaskID:       launched[0],
		State:        types.TaskFailed,
		ConfigTarget: h.target(t),
		Timestamp:    time.Now(),
	})
	assert.Greater(t, h.d.ReviveCalls(), 0, "failure revives offers")

	deploy := h.sched.Managers()["deploy"]
	assert.Equal(t, plan.StatusComplete, deploy.Plan().Status(),
		"post-completion failures belong to recovery, not deployment")

	// The next offer batch relaunches the pod through the recovery plan.
	h.offers(t, bigOffer("o2"))
	assert.Len(t, h.d.LaunchedTaskIDs(), 4, "recovery relaunched both pod tasks")
}

func TestConfigChangeReopensStep(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Deploy generation A to completion.
	h1 := newHarness(t, testSpec(), store)
	h1.register(t)
	h1.offers(t, bigOffer("o1"))
	launchedA := h1.d.LaunchedTaskIDs()
	h1.runAll(t, launchedA)
	require.Equal(t, plan.StatusComplete, h1.sched.Managers()["deploy"].Plan().Status())
	targetA := h1.target(t)
	h1.sched.Stop()

	// Generation B raises t1's cpu requirement.
	specB := testSpec()
	specB.Pods[0].Tasks[0].Resources.CPUs = 2.0

	h2 := newHarness(t, specB, store)
	h2.register(t)
	targetB := h2.target(t)
	assert.NotEqual(t, targetA, targetB)

	deploy := h2.sched.Managers()["deploy"]
	assert.NotEqual(t, plan.StatusComplete, deploy.Plan().Status(),
		"config change reopened the step")

	// The restarted scheduler declines offers until the cluster reconfirms
	// the generation-A tasks it loaded from the store.
	for _, id := range launchedA {
		h2.status(t, types.TaskStatus{TaskID: id, State: types.TaskRunning, ConfigTarget: targetA, Timestamp: time.Now()})
	}

	// An offer that satisfied generation A no longer suffices.
	h2.offers(t, &types.Offer{
		ID: "small", AgentID: "agent-1", Hostname: "host-1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 2.5},
			{Name: "mem", Scalar: 2000},
		},
	})
	assert.Empty(t, h2.d.AcceptCalls(), "cpus=2.5 cannot fit cpu asks of 2.0+1.0")

	h2.offers(t, bigOffer("big"))
	assert.Len(t, h2.d.LaunchedTaskIDs(), 2)
}

func TestConfigValidationRejectionIsFatal(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h1 := newHarness(t, testSpec(), store)
	h1.register(t)
	h1.sched.Stop()

	// Dropping a task from the pod shrinks the task set.
	shrunk := testSpec()
	shrunk.Pods[0].Tasks = shrunk.Pods[0].Tasks[:1]

	h2 := newHarness(t, shrunk, store)
	h2.sched.Registered(h2.d, "framework-1", "master-1")
	h2.sched.executor.Wait()

	select {
	case fatal := <-h2.sched.Fatal():
		assert.Equal(t, InitializationFailure, fatal.Code)
	default:
		t.Fatal("expected a fatal initialization error")
	}
}

func TestReregistrationIsFatalByDefault(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.sched.Reregistered(h.d, "master-2")
	h.sched.executor.Wait()

	select {
	case fatal := <-h.sched.Fatal():
		assert.Equal(t, ReRegistration, fatal.Code)
	default:
		t.Fatal("expected a fatal re-registration error")
	}
}

func TestOfferRescindedConfigurable(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := DefaultConfig()
	cfg.ExitOnOfferRescinded = false
	sched := New(testSpec(), store, config.NewStore(store), broker, cfg)
	t.Cleanup(sched.Stop)
	d := driver.NewMockDriver()

	sched.Registered(d, "framework-1", "master-1")
	sched.executor.Wait()

	sched.OfferRescinded(d, "o1")
	sched.executor.Wait()

	select {
	case fatal := <-sched.Fatal():
		t.Fatalf("rescind should not be fatal here: %v", fatal)
	default:
	}
}

func TestDriverErrorIsFatal(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.sched.Error(h.d, "Framework has been removed")
	h.sched.executor.Wait()

	select {
	case fatal := <-h.sched.Fatal():
		assert.Equal(t, DriverError, fatal.Code)
	default:
		t.Fatal("expected a fatal driver error")
	}
}

func TestStatusUpdatesAreIdempotent(t *testing.T) {
	h := newHarness(t, testSpec(), nil)
	h.register(t)

	h.offers(t, bigOffer("o1"))
	launched := h.d.LaunchedTaskIDs()
	h.runAll(t, launched)

	deploy := h.sched.Managers()["deploy"]
	require.Equal(t, plan.StatusComplete, deploy.Plan().Status())

	h.runAll(t, launched)
	assert.Equal(t, plan.StatusComplete, deploy.Plan().Status(),
		"replaying the same statuses changes nothing")
}

func TestErrorCodesInDeclarationOrder(t *testing.T) {
	assert.Equal(t, 0, int(OK))
	assert.Equal(t, 1, int(InitializationFailure))
	assert.Equal(t, 2, int(RegistrationFailure))
	assert.Equal(t, 3, int(ReRegistration))
	assert.Equal(t, 4, int(OfferRescinded))
	assert.Equal(t, 5, int(Disconnected))
	assert.Equal(t, 6, int(DriverError))
}

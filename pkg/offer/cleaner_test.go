package offer

import (
	"testing"

	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCleanerReleasesUnexpectedReservations(t *testing.T) {
	store := newTestStore(t)
	c := NewCleaner(store, "data-role")

	o := &types.Offer{
		ID: "o1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "disk", Scalar: 500, Role: "data-role", ReservationID: "res-orphan",
				Volume: &types.VolumeInfo{PersistenceID: "vol-orphan", ContainerPath: "data"}},
		},
	}
	recs := c.Evaluate([]*types.Offer{o})
	require.Len(t, recs, 2)
	assert.Equal(t, types.OperationDestroy, recs[0].Operation.Type, "volume destroyed before unreserve")
	assert.Equal(t, types.OperationUnreserve, recs[1].Operation.Type)
	assert.Nil(t, recs[1].Operation.Resources[0].Volume)
}

func TestCleanerKeepsExpectedReservations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.StoreTasks(&types.TaskInfo{
		ID:   "id-1",
		Name: "node-0-db",
		Resources: []types.Resource{
			{Name: "disk", Scalar: 500, Role: "data-role", ReservationID: "res-live"},
		},
	}))
	c := NewCleaner(store, "data-role")

	o := &types.Offer{
		ID: "o1",
		Resources: []types.Resource{
			{Name: "disk", Scalar: 500, Role: "data-role", ReservationID: "res-live",
				Volume: &types.VolumeInfo{PersistenceID: "vol-live", ContainerPath: "data"}},
		},
	}
	assert.Empty(t, c.Evaluate([]*types.Offer{o}))
}

func TestCleanerIgnoresOtherRolesAndUnreserved(t *testing.T) {
	store := newTestStore(t)
	c := NewCleaner(store, "data-role")

	o := &types.Offer{
		ID: "o1",
		Resources: []types.Resource{
			{Name: "cpus", Scalar: 4},
			{Name: "disk", Scalar: 100, Role: "other-role", ReservationID: "res-foreign"},
		},
	}
	assert.Empty(t, c.Evaluate([]*types.Offer{o}))
}

func TestFilterOutAccepted(t *testing.T) {
	offers := []*types.Offer{{ID: "o1"}, {ID: "o2"}, {ID: "o3"}}

	unused := FilterOutAccepted(offers, []string{"o2"})
	require.Len(t, unused, 2)
	assert.Equal(t, "o1", unused[0].ID)
	assert.Equal(t, "o3", unused[1].ID)

	assert.Len(t, FilterOutAccepted(offers, nil), 3)
	assert.Empty(t, FilterOutAccepted(offers, []string{"o1", "o2", "o3"}))
}

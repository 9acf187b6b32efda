package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	source := newTestWorld()
	ent := addTestPlanet(source, 1, Position{Galaxy: 3, System: 42, Planet: 7})

	source.store.Resources.Set(ent, &Resources{Metal: 1234, Crystal: 56, Deuterium: 7})
	source.store.Buildings.Get(ent).Levels["metal_mine"] = 5
	source.store.Fleets.Get(ent).Ships["cruiser"] = 2
	source.store.Research.Get(ent).Levels["computer"] = 3

	snaps := source.Snapshots()
	require.Len(t, snaps, 1)

	restored := newTestWorld()
	got := restored.LoadSnapshot(snaps[0])

	assert.Equal(t, ent, got)
	assert.Equal(t, 1, restored.store.Players.Get(got).UserID)
	assert.Equal(t, Position{Galaxy: 3, System: 42, Planet: 7}, *restored.store.Positions.Get(got))
	assert.InDelta(t, 1234.0, restored.store.Resources.Get(got).Metal, 1e-9)
	assert.Equal(t, 5, restored.store.Buildings.Get(got).Level("metal_mine"))
	assert.Equal(t, 2, restored.store.Fleets.Get(got).Count("cruiser"))
	assert.Equal(t, 3, restored.store.Research.Get(got).Level("computer"))
}

func TestLoadSnapshotReservesEntityCounter(t *testing.T) {
	w := newTestWorld()

	w.LoadSnapshot(PlanetSnapshot{
		Entity:   Entity(17),
		UserID:   1,
		Name:     "Homeworld",
		Position: Position{Galaxy: 1, System: 1, Planet: 1},
	})

	// The next allocation must not collide with the restored
	// identifier.
	assert.Greater(t, int(w.store.NewEntity()), 17)
}

func TestLoadSnapshotWithoutEntityAllocatesOne(t *testing.T) {
	w := newTestWorld()

	ent := w.LoadSnapshot(PlanetSnapshot{
		UserID:   4,
		Name:     "Restored",
		Position: Position{Galaxy: 2, System: 2, Planet: 2},
	})

	assert.NotZero(t, ent)
	assert.Equal(t, []Entity{ent}, w.store.FindByUser(4))

	// A zero valued production timestamp is replaced so that
	// the next tick does not accrue decades of resources.
	assert.False(t, w.store.Production.Get(ent).LastUpdate.IsZero())
}

func TestSnapshotCarriesInFlightMovement(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 1

	dispatchFleet(w, 1, Position{Galaxy: 1, System: 2, Planet: 1}, "transfer", nil)
	w.Tick(Now())

	snaps := w.Snapshots()
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].Movement)

	restored := newTestWorld()
	got := restored.LoadSnapshot(snaps[0])

	movement := restored.store.Movements.Get(got)
	require.NotNil(t, movement)
	assert.Equal(t, "transfer", movement.Mission)
	assert.Equal(t, Position{Galaxy: 1, System: 2, Planet: 1}, movement.Target)
}

func TestPlayerDataShape(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(ent, &Resources{Metal: 100.9})
	w.store.Buildings.Get(ent).Levels["metal_mine"] = 2

	data := w.PlayerData(1)
	require.NotNil(t, data)

	resources, ok := data["resources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 100.0, resources["metal"])

	buildings, ok := data["buildings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, buildings["metal_mine"])

	for _, key := range []string{"player", "position", "build_queue", "ship_build_queue", "research_queue", "fleet", "research", "ship_stats", "planet"} {
		assert.Contains(t, data, key)
	}
	assert.NotContains(t, data, "fleet_movement")

	assert.Nil(t, w.PlayerData(99))
}

func TestSettleAppliesOverdueCompletions(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.BuildQueues.Set(ent, &BuildQueue{Items: []BuildItem{{
		Kind:           "metal_mine",
		CompletionTime: Now().Add(-time.Minute),
		QueuedAt:       Now().Add(-time.Hour),
	}}})

	w.Settle()

	assert.Equal(t, 1, w.store.Buildings.Get(ent).Level("metal_mine"))
	assert.Empty(t, w.store.BuildQueues.Get(ent).Items)
}

func TestStatusCountsReflectTheWorld(t *testing.T) {
	w := newTestWorld()
	addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	addTestPlanet(w, 2, Position{Galaxy: 1, System: 2, Planet: 1})

	counts := w.StatusCounts()
	assert.Equal(t, 2, counts["planets"])
	assert.Equal(t, 0, counts["fleets_in_flight"])
	assert.Equal(t, 0, counts["pending_commands"])
	assert.Equal(t, 0, counts["open_offers"])
}

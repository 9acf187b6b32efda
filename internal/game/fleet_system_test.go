package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchFleet(w *World, userID int, target Position, mission string, ships map[string]int) {
	w.Enqueue(Command{
		Type:    CmdFleetDispatch,
		UserID:  userID,
		Galaxy:  target.Galaxy,
		System:  target.System,
		Planet:  target.Planet,
		Mission: mission,
		Ships:   ships,
	})
}

func TestDispatchCreatesMovement(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 3

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 2, Planet: 1}, "transfer", nil)
	w.Tick(now)

	movement := w.store.Movements.Get(ent)
	require.NotNil(t, movement)
	assert.Equal(t, "transfer", movement.Mission)
	assert.True(t, movement.ArrivalTime.After(movement.DepartureTime))
	assert.Equal(t, Position{Galaxy: 1, System: 1, Planet: 1}, movement.Origin)
}

func TestDispatchRejectedWhileInFlight(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 3

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 2, Planet: 1}, "transfer", nil)
	w.Tick(now)

	first := *w.store.Movements.Get(ent)

	dispatchFleet(w, 1, Position{Galaxy: 2, System: 1, Planet: 1}, "transfer", nil)
	w.Tick(now)

	assert.Equal(t, first.Target, w.store.Movements.Get(ent).Target)
}

func TestTransferArrivalMovesEntity(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 3

	target := Position{Galaxy: 1, System: 1, Planet: 5}
	now := Now()
	dispatchFleet(w, 1, target, "transfer", nil)
	w.Tick(now)

	arrival := w.store.Movements.Get(ent).ArrivalTime
	w.Tick(arrival.Add(time.Second))

	assert.Nil(t, w.store.Movements.Get(ent))
	assert.Equal(t, target, *w.store.Positions.Get(ent))
}

func TestRecallRoundTrip(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 3

	origin := Position{Galaxy: 1, System: 1, Planet: 1}
	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 2, System: 10, Planet: 5}, "transfer", nil)
	w.Tick(now)

	// Recall halfway through the trip.
	midway := now.Add(w.store.Movements.Get(ent).ArrivalTime.Sub(now) / 2)
	w.Enqueue(Command{Type: CmdFleetRecall, UserID: 1})
	w.Tick(midway)

	movement := w.store.Movements.Get(ent)
	require.NotNil(t, movement)
	assert.True(t, movement.Recalled)
	assert.Equal(t, origin, movement.Target)

	w.Tick(movement.ArrivalTime.Add(time.Second))

	assert.Nil(t, w.store.Movements.Get(ent))
	assert.Equal(t, origin, *w.store.Positions.Get(ent))
}

func TestMovementOfTracksTheFlight(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["light_fighter"] = 3

	assert.Nil(t, w.MovementOf(1))

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 2, System: 10, Planet: 5}, "transfer", nil)
	w.Tick(now)

	movement := w.MovementOf(1)
	require.NotNil(t, movement)
	assert.False(t, movement.Recalled)

	// Once the fleet arrived the movement is gone; a late
	// recall finds nothing to turn around.
	w.Tick(movement.ArrivalTime.Add(time.Second))
	assert.Nil(t, w.MovementOf(1))

	w.Enqueue(Command{Type: CmdFleetRecall, UserID: 1})
	w.Tick(movement.ArrivalTime.Add(2 * time.Second))
	assert.Nil(t, w.MovementOf(1))
}

func TestColonizationTwoPhase(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(ent).Ships["colony_ship"] = 1

	target := Position{Galaxy: 1, System: 3, Planet: 7}
	now := Now()
	dispatchFleet(w, 1, target, "colonize", map[string]int{"colony_ship": 1})
	w.Tick(now)

	arrival := w.store.Movements.Get(ent).ArrivalTime

	// First phase: the fleet reaches the slot and starts the
	// colonization countdown.
	w.Tick(arrival)

	movement := w.store.Movements.Get(ent)
	require.NotNil(t, movement)
	require.NotNil(t, movement.ColonizingUntil)
	assert.Equal(t, *movement.ColonizingUntil, movement.ArrivalTime)

	// Second phase: the countdown elapses and the colony is
	// created, consuming the colony ship.
	w.Tick(movement.ColonizingUntil.Add(time.Second))

	assert.Nil(t, w.store.Movements.Get(ent))
	assert.Equal(t, 0, w.store.Fleets.Get(ent).Count("colony_ship"))

	colony := w.store.FindAt(target)
	require.NotZero(t, colony)
	assert.Equal(t, 1, w.store.Players.Get(colony).UserID)
	assert.Equal(t, "Colony", w.store.Planets.Get(colony).Name)
}

func TestColonizationAbortsWithoutColonyShip(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	target := Position{Galaxy: 1, System: 3, Planet: 7}
	now := Now()
	dispatchFleet(w, 1, target, "colonize", nil)
	w.Tick(now)

	arrival := w.store.Movements.Get(ent).ArrivalTime
	w.Tick(arrival.Add(time.Second))

	assert.Nil(t, w.store.Movements.Get(ent))
	assert.Zero(t, w.store.FindAt(target))
}

func TestColonizationFailsOnOccupiedSlot(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	addTestPlanet(w, 2, Position{Galaxy: 1, System: 3, Planet: 7})

	w.store.Fleets.Get(ent).Ships["colony_ship"] = 1

	target := Position{Galaxy: 1, System: 3, Planet: 7}
	now := Now()
	dispatchFleet(w, 1, target, "colonize", map[string]int{"colony_ship": 1})
	w.Tick(now)

	// A long catch-up covers both phases in a single tick.
	w.Tick(now.Add(24 * time.Hour))

	assert.Nil(t, w.store.Movements.Get(ent))

	// The ship survives a failed colonization and the slot
	// keeps its original owner.
	assert.Equal(t, 1, w.store.Fleets.Get(ent).Count("colony_ship"))
	assert.Equal(t, 2, w.store.Players.Get(w.store.FindAt(target)).UserID)
	assert.Len(t, w.store.FindByUser(1), 1)
}

func TestEspionageProducesReport(t *testing.T) {
	w := newTestWorld()
	spy := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	victim := addTestPlanet(w, 2, Position{Galaxy: 1, System: 1, Planet: 4})

	w.store.Fleets.Get(spy).Ships["light_fighter"] = 1
	w.store.Buildings.Get(victim).Levels["metal_mine"] = 4
	w.store.Resources.Set(victim, &Resources{Metal: 1234})

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 1, Planet: 4}, "espionage", nil)
	w.Tick(now)

	arrival := w.store.Movements.Get(spy).ArrivalTime
	w.Tick(arrival.Add(time.Second))

	reports := w.reports.List(EspionageReportKind, 1, 10, 0)
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].DefenderUserID)

	snapshot, ok := reports[0].Payload["snapshot"].(map[string]interface{})
	require.True(t, ok)
	resources, ok := snapshot["resources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1234, resources["metal"])
}

func TestEspionageOnEmptySlotReportsNothing(t *testing.T) {
	w := newTestWorld()
	spy := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Fleets.Get(spy).Ships["light_fighter"] = 1

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 9, Planet: 9}, "espionage", nil)
	w.Tick(now)

	arrival := w.store.Movements.Get(spy).ArrivalTime
	w.Tick(arrival.Add(time.Second))

	reports := w.reports.List(EspionageReportKind, 1, 10, 0)
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].DefenderUserID)
	assert.Equal(t, map[string]interface{}{}, reports[0].Payload["snapshot"])
}

func TestRecalledAttackDoesNotFight(t *testing.T) {
	w := newTestWorld()
	attacker := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	addTestPlanet(w, 2, Position{Galaxy: 1, System: 5, Planet: 1})

	w.store.Fleets.Get(attacker).Ships["light_fighter"] = 2

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 5, Planet: 1}, "attack", map[string]int{"light_fighter": 2})
	w.Tick(now)

	w.Enqueue(Command{Type: CmdFleetRecall, UserID: 1})
	w.Tick(now.Add(time.Second))

	movement := w.store.Movements.Get(attacker)
	require.NotNil(t, movement)

	w.Tick(movement.ArrivalTime.Add(time.Second))

	assert.Empty(t, w.reports.List(BattleReportKind, 1, 10, 0))
	assert.Empty(t, w.store.Battles.Entities())
}

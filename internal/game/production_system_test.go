package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRates :
// Overrides the hourly base rates of the input planet.
func setRates(w *World, ent Entity, metal float64, crystal float64, deuterium float64, lastUpdate time.Time) {
	w.store.Production.Set(ent, &ResourceProduction{
		Metal:      metal,
		Crystal:    crystal,
		Deuterium:  deuterium,
		LastUpdate: lastUpdate,
	})
}

func TestProductionOneHourSaturatedEnergy(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 60, 30, 15, now.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 1
	buildings.Levels["crystal_mine"] = 1
	buildings.Levels["deuterium_synthesizer"] = 1
	buildings.Levels["solar_plant"] = 10

	w.Tick(now)

	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 66.0, res.Metal, 1e-9)
	assert.InDelta(t, 33.0, res.Crystal, 1e-9)
	assert.InDelta(t, 17.0, res.Deuterium, 1e-9)
}

func TestProductionHalvedByEnergyDeficit(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 60, 30, 15, now.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 8
	buildings.Levels["crystal_mine"] = 4
	buildings.Levels["deuterium_synthesizer"] = 4
	buildings.Levels["solar_plant"] = 1

	// Required 3*8 + 2*4 + 2*4 = 40 against 20 produced.
	balance := w.energyBalance(buildings, w.store.Research.Get(ent))
	assert.InDelta(t, 0.5, balance.Factor, 1e-9)

	w.Tick(now)

	assert.InDelta(t, 64.0, w.store.Resources.Get(ent).Metal, 1e-9)
}

func TestProductionZeroWithoutPower(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 60, 30, 15, now.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 1
	buildings.Levels["crystal_mine"] = 1
	buildings.Levels["deuterium_synthesizer"] = 1

	w.Tick(now)

	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 0.0, res.Metal, 1e-9)
	assert.InDelta(t, 0.0, res.Crystal, 1e-9)
	assert.InDelta(t, 0.0, res.Deuterium, 1e-9)
}

func TestCompletionGrantedAfterProduction(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 10, 0, 0, now.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 1
	buildings.Levels["solar_plant"] = 100

	// The level 2 mine completes one second before the tick:
	// the accrual for the elapsed hour still uses level 1.
	w.store.BuildQueues.Set(ent, &BuildQueue{Items: []BuildItem{{
		Kind:           "metal_mine",
		CompletionTime: now.Add(-time.Second),
		QueuedAt:       now.Add(-time.Hour),
	}}})

	w.Tick(now)

	assert.InDelta(t, 11.0, w.store.Resources.Get(ent).Metal, 1e-9)
	assert.Equal(t, 2, buildings.Level("metal_mine"))
	assert.Empty(t, w.store.BuildQueues.Get(ent).Items)
}

func TestOfflineAccrualMatchesSingleTick(t *testing.T) {
	reference := newTestWorld()
	offline := newTestWorld()

	now := Now()

	for _, w := range []*World{reference, offline} {
		ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
		w.store.Resources.Set(ent, &Resources{})
		buildings := w.store.Buildings.Get(ent)
		buildings.Levels["metal_mine"] = 3
		buildings.Levels["solar_plant"] = 5
	}

	refEnt := reference.store.FindByUser(1)[0]
	offEnt := offline.store.FindByUser(1)[0]

	// The reference world ticks twice, the offline world
	// catches up with a single pass over the same span.
	setRates(reference, refEnt, 30, 0, 0, now.Add(-6*time.Hour))
	reference.Tick(now.Add(-3 * time.Hour))
	reference.Tick(now)

	setRates(offline, offEnt, 30, 0, 0, now.Add(-6*time.Hour))
	offline.Tick(now)

	refMetal := reference.store.Resources.Get(refEnt).Metal
	offMetal := offline.store.Resources.Get(offEnt).Metal

	// Both runs round once per accrual so they may differ by
	// at most one unit of rounding.
	assert.InDelta(t, refMetal, offMetal, 1.0)
}

func TestProductionClampedByStorage(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 30, 0, 0, now.Add(-time.Hour))

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 1
	buildings.Levels["solar_plant"] = 10

	// Base capacity with no storage upgrades is 10000.
	w.store.Resources.Set(ent, &Resources{Metal: 9990})

	w.Tick(now)

	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 10000.0, res.Metal, 1e-9)

	// The saturation produced a storage notification.
	notifs := w.notifications.List(1, 10, 0)
	require.NotEmpty(t, notifs)
	found := false
	for _, notif := range notifs {
		if notif.Type == "storage_full" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFusionReactorBurnsDeuterium(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	now := Now()
	setRates(w, ent, 0, 0, 0, now.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{Deuterium: 100})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["fusion_reactor"] = 2

	w.Tick(now)

	// Two reactor levels burn 10 deuterium per level per
	// hour, never below zero.
	assert.InDelta(t, 80.0, w.store.Resources.Get(ent).Deuterium, 1e-9)
}

func TestEnergyDeficitNotificationCooldown(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	start := Now()
	setRates(w, ent, 30, 0, 0, start.Add(-time.Hour))
	w.store.Resources.Set(ent, &Resources{})

	// Mines without any power: factor 0, deep deficit.
	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 5

	w.Tick(start)
	w.Tick(start.Add(time.Second))

	count := 0
	for _, notif := range w.notifications.List(1, 50, 0) {
		if notif.Type == "energy_deficit" {
			count++
		}
	}

	// The cooldown elides the second alert.
	assert.Equal(t, 1, count)
}

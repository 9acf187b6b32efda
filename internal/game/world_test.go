package game

import (
	"testing"
	"time"

	"stellar_server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopLogger :
// Discards every trace, keeping the tests quiet.
type noopLogger struct{}

func (noopLogger) Trace(level logger.Severity, module string, message string) {}

// newTestWorld :
// Creates a world with the default balance values and a
// silent logger.
func newTestWorld() *World {
	return NewWorld(DefaultRules(), noopLogger{})
}

// addTestPlanet :
// Creates a planet for the input user with deterministic
// physical attributes so that the size and temperature
// production modifiers stay at `1.0`.
func addTestPlanet(w *World, userID int, pos Position) Entity {
	ent := w.createPlanet(userID, "tester", pos, "Testworld")

	w.store.Planets.Set(ent, &Planet{Name: "Testworld", Temperature: 20, Size: 160})

	return ent
}

func TestBuildBuildingSpendsAndQueues(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(ent, &Resources{Metal: 1000, Crystal: 1000})

	now := Now()
	w.Enqueue(Command{Type: CmdBuildBuilding, UserID: 1, BuildingKind: "metal_mine"})
	w.Tick(now)

	queue := w.store.BuildQueues.Get(ent)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, "metal_mine", queue.Items[0].Kind)

	// Level 0 -> 1 costs the base price.
	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 940.0, res.Metal, 1e-9)
	assert.InDelta(t, 985.0, res.Crystal, 1e-9)
}

func TestBuildBuildingRejectsUnaffordable(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(ent, &Resources{Metal: 10})

	w.Enqueue(Command{Type: CmdBuildBuilding, UserID: 1, BuildingKind: "metal_mine"})
	w.Tick(Now())

	assert.Empty(t, w.store.BuildQueues.Get(ent).Items)
	assert.InDelta(t, 10.0, w.store.Resources.Get(ent).Metal, 1e-9)
}

func TestCancelBuildRefundsHalf(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(ent, &Resources{Metal: 1000, Crystal: 1000})

	now := Now()
	w.Enqueue(Command{Type: CmdBuildBuilding, UserID: 1, BuildingKind: "metal_mine"})
	w.Tick(now)

	index := 0
	w.Enqueue(Command{Type: CmdCancelBuild, UserID: 1, Index: &index})
	w.Tick(now)

	assert.Empty(t, w.store.BuildQueues.Get(ent).Items)

	// Half of 60/15, floored.
	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 970.0, res.Metal, 1e-9)
	assert.InDelta(t, 992.0, res.Crystal, 1e-9)
}

func TestDemolishRefusedWhenPrerequisiteWouldBreak(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["robot_factory"] = 2
	buildings.Levels["shipyard"] = 1

	w.Enqueue(Command{Type: CmdDemolishBuilding, UserID: 1, BuildingKind: "robot_factory"})
	w.Tick(Now())

	// The shipyard requires robot factory level 2.
	assert.Equal(t, 2, buildings.Level("robot_factory"))
}

func TestDemolishGrantsPartialRefund(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	buildings := w.store.Buildings.Get(ent)
	buildings.Levels["metal_mine"] = 1
	w.store.Resources.Set(ent, &Resources{})

	w.Enqueue(Command{Type: CmdDemolishBuilding, UserID: 1, BuildingKind: "metal_mine"})
	w.Tick(Now())

	assert.Equal(t, 0, buildings.Level("metal_mine"))

	// 30% of the level 0 -> 1 cost, floored.
	res := w.store.Resources.Get(ent)
	assert.InDelta(t, 18.0, res.Metal, 1e-9)
	assert.InDelta(t, 4.0, res.Crystal, 1e-9)
}

func TestFleetCapRejectsOverflowingOrder(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Buildings.Get(ent).Levels["shipyard"] = 1
	w.store.Resources.Set(ent, &Resources{Metal: 100000, Crystal: 100000})
	w.store.Fleets.Get(ent).Ships["light_fighter"] = 49

	w.Enqueue(Command{Type: CmdBuildShips, UserID: 1, ShipKind: "light_fighter", Quantity: 2})
	w.Tick(Now())

	assert.Empty(t, w.store.ShipQueues.Get(ent).Items)
}

func TestFleetCapAcceptsFittingOrder(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Buildings.Get(ent).Levels["shipyard"] = 1
	w.store.Resources.Set(ent, &Resources{Metal: 100000, Crystal: 100000})
	w.store.Fleets.Get(ent).Ships["light_fighter"] = 48

	w.Enqueue(Command{Type: CmdBuildShips, UserID: 1, ShipKind: "light_fighter", Quantity: 2})
	w.Tick(Now())

	queue := w.store.ShipQueues.Get(ent)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, 2, queue.Items[0].Quantity)
}

func TestQueuedShipsCountAgainstCap(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Buildings.Get(ent).Levels["shipyard"] = 1
	w.store.Resources.Set(ent, &Resources{Metal: 1000000, Crystal: 1000000})
	w.store.Fleets.Get(ent).Ships["light_fighter"] = 40

	now := Now()
	w.Enqueue(Command{Type: CmdBuildShips, UserID: 1, ShipKind: "light_fighter", Quantity: 8})
	w.Tick(now)
	w.Enqueue(Command{Type: CmdBuildShips, UserID: 1, ShipKind: "light_fighter", Quantity: 5})
	w.Tick(now)

	// 40 stationed + 8 queued leaves room for at most 2.
	queue := w.store.ShipQueues.Get(ent)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, 8, queue.Items[0].Quantity)
}

func TestTradeLifecycle(t *testing.T) {
	w := newTestWorld()
	seller := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	buyer := addTestPlanet(w, 2, Position{Galaxy: 1, System: 1, Planet: 2})

	w.store.Resources.Set(seller, &Resources{Metal: 1000, Crystal: 1000})
	w.store.Resources.Set(buyer, &Resources{Metal: 1000, Crystal: 1000})

	now := Now()
	w.Enqueue(Command{
		Type: CmdTradeCreate, UserID: 1,
		OfferedResource: "metal", OfferedAmount: 100,
		RequestedResource: "crystal", RequestedAmount: 50,
	})
	w.Tick(now)

	// The offered amount is held in escrow right away.
	assert.InDelta(t, 900.0, w.store.Resources.Get(seller).Metal, 1e-9)

	offers := w.market.ListOffers("open", 10, 0)
	require.Len(t, offers, 1)

	w.Enqueue(Command{Type: CmdTradeAccept, UserID: 2, OfferID: offers[0].ID})
	w.Tick(now)

	sellerRes := w.store.Resources.Get(seller)
	buyerRes := w.store.Resources.Get(buyer)
	assert.InDelta(t, 900.0, sellerRes.Metal, 1e-9)
	assert.InDelta(t, 1050.0, sellerRes.Crystal, 1e-9)
	assert.InDelta(t, 1100.0, buyerRes.Metal, 1e-9)
	assert.InDelta(t, 950.0, buyerRes.Crystal, 1e-9)

	offer := w.market.Offer(offers[0].ID)
	require.NotNil(t, offer)
	assert.Equal(t, "accepted", offer.Status)
	require.NotNil(t, offer.AcceptedBy)
	assert.Equal(t, 2, *offer.AcceptedBy)
}

func TestTradeCreateRejectedWithoutFunds(t *testing.T) {
	w := newTestWorld()
	seller := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(seller, &Resources{Metal: 50})

	w.Enqueue(Command{
		Type: CmdTradeCreate, UserID: 1,
		OfferedResource: "metal", OfferedAmount: 100,
		RequestedResource: "crystal", RequestedAmount: 50,
	})
	w.Tick(Now())

	assert.Equal(t, 0, w.market.Count(""))
	assert.InDelta(t, 50.0, w.store.Resources.Get(seller).Metal, 1e-9)
}

func TestTradeAcceptOwnOfferRefused(t *testing.T) {
	w := newTestWorld()
	seller := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	w.store.Resources.Set(seller, &Resources{Metal: 1000, Crystal: 1000})

	now := Now()
	w.Enqueue(Command{
		Type: CmdTradeCreate, UserID: 1,
		OfferedResource: "metal", OfferedAmount: 100,
		RequestedResource: "crystal", RequestedAmount: 50,
	})
	w.Tick(now)

	offers := w.market.ListOffers("open", 10, 0)
	require.Len(t, offers, 1)

	w.Enqueue(Command{Type: CmdTradeAccept, UserID: 1, OfferID: offers[0].ID})
	w.Tick(now)

	assert.Equal(t, "open", w.market.Offer(offers[0].ID).Status)
}

func TestCreateHomeworldValidation(t *testing.T) {
	w := newTestWorld()

	_, err := w.CreateHomeworld(1, "alice", Position{Galaxy: 99, System: 1, Planet: 1}, "")
	assert.Error(t, err)

	ent, err := w.CreateHomeworld(1, "alice", Position{Galaxy: 1, System: 1, Planet: 1}, "")
	require.NoError(t, err)
	assert.Equal(t, "Homeworld", w.store.Planets.Get(ent).Name)

	// One homeworld per user.
	_, err = w.CreateHomeworld(1, "alice", Position{Galaxy: 1, System: 1, Planet: 2}, "")
	assert.Error(t, err)

	// The slot is taken.
	_, err = w.CreateHomeworld(2, "bob", Position{Galaxy: 1, System: 1, Planet: 1}, "")
	assert.Error(t, err)
}

func TestCleanupInactiveRemovesStalePlayers(t *testing.T) {
	w := newTestWorld()
	stale := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	fresh := addTestPlanet(w, 2, Position{Galaxy: 1, System: 1, Planet: 2})

	w.store.Players.Get(stale).LastActive = Now().Add(-40 * 24 * time.Hour)
	w.store.Players.Get(fresh).LastActive = Now()

	removed := w.CleanupInactive(30 * 24 * time.Hour)

	assert.Equal(t, 1, removed)
	assert.Empty(t, w.store.FindByUser(1))
	assert.Len(t, w.store.FindByUser(2), 1)
}

func TestSelectPlanetSwitchesActiveEntity(t *testing.T) {
	w := newTestWorld()
	home := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	colony := addTestPlanet(w, 1, Position{Galaxy: 1, System: 2, Planet: 1})

	w.lock.Lock()
	assert.Equal(t, home, w.entityOf(1))
	w.lock.Unlock()

	require.NoError(t, w.SelectPlanet(1, int(colony)))

	w.lock.Lock()
	assert.Equal(t, colony, w.entityOf(1))
	w.lock.Unlock()

	// Foreign planets cannot be selected.
	assert.Error(t, w.SelectPlanet(2, int(colony)))

	planets := w.PlanetsOf(1)
	require.Len(t, planets, 2)
	assert.Equal(t, false, planets[0]["is_active"])
	assert.Equal(t, true, planets[1]["is_active"])
}

func TestUpdateActivityCommand(t *testing.T) {
	w := newTestWorld()
	ent := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	past := Now().Add(-time.Hour)
	w.store.Players.Get(ent).LastActive = past

	w.Enqueue(Command{Type: CmdUpdateActivity, UserID: 1})
	now := Now()
	w.Tick(now)

	assert.True(t, w.store.Players.Get(ent).LastActive.After(past))
}

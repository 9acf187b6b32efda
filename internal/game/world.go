package game

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"stellar_server/pkg/logger"
)

// module :
// Identifier used by this package when producing logs.
const module = "game"

// World :
// Aggregates the whole simulation state: the component
// store, the balance values, the command queue, the side
// stores (marketplace, reports, notifications) and the
// outward interfaces (event sink, persister).
//
// A single mutex guards the component store. The tick
// loop holds it for the duration of a tick; the request
// adapter acquires it briefly to build snapshots or to
// run marketplace operations.
type World struct {
	lock sync.Mutex

	store         *Store
	rules         *Rules
	commands      *CommandQueue
	market        *Market
	reports       *ReportStore
	notifications *NotificationCenter
	galaxy        *Galaxy
	rng           *rand.Rand

	sink      EventSink
	persister Persister
	log       logger.Logger

	// Active planet of each user, when the user explicitly
	// selected one. Defaults to the home planet otherwise.
	active map[int]Entity
}

// NewWorld :
// Creates an empty world with the input balance values.
//
// The `rules` define the balance values of the simulation.
//
// The `log` permits to notify errors and information.
//
// Returns the created world.
func NewWorld(rules *Rules, log logger.Logger) *World {
	w := &World{
		store:         NewStore(),
		rules:         rules,
		commands:      NewCommandQueue(),
		market:        NewMarket(),
		reports:       NewReportStore(),
		notifications: NewNotificationCenter(),
		galaxy:        NewGalaxy(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		log:           log,
		active:        make(map[int]Entity),
	}

	w.galaxy.Initialize(rules, w.rng)

	return w
}

// WithSink :
// Assigns the destination of the real time events.
//
// Returns this world to allow chain calling.
func (w *World) WithSink(sink EventSink) *World {
	w.sink = sink
	return w
}

// WithPersister :
// Assigns the destination of the durable side effects.
//
// Returns this world to allow chain calling.
func (w *World) WithPersister(p Persister) *World {
	w.persister = p
	return w
}

// Rules :
// Returns the balance values of this world.
func (w *World) Rules() *Rules {
	return w.rules
}

// Market :
// Returns the marketplace of this world.
func (w *World) Market() *Market {
	return w.market
}

// Reports :
// Returns the report store of this world.
func (w *World) Reports() *ReportStore {
	return w.reports
}

// Notifications :
// Returns the notification center of this world.
func (w *World) Notifications() *NotificationCenter {
	return w.notifications
}

// Galaxy :
// Returns the seeded coordinate pool of this world.
func (w *World) Galaxy() *Galaxy {
	return w.galaxy
}

// Enqueue :
// Buffers a command for the next tick.
func (w *World) Enqueue(cmd Command) {
	w.commands.Push(cmd)
}

// PendingCommands :
// Returns the number of buffered commands.
func (w *World) PendingCommands() int {
	return w.commands.Len()
}

// Tick :
// Advances the simulation to the input time: drains the
// command queue, then runs all the systems in a fixed
// order. Production runs first so that completions later
// in the tick never retroactively change the rates used
// for the elapsed interval.
func (w *World) Tick(now time.Time) {
	w.lock.Lock()
	defer w.lock.Unlock()

	for _, cmd := range w.commands.Drain() {
		w.apply(cmd, now)
	}

	w.runProduction(now)
	w.runConstruction(now)
	w.runResearch(now)
	w.runShipyard(now)
	w.runFleet(now)
	w.runBattles(now)
}

// apply :
// Executes a single command against the store. Invalid
// commands are dropped with a log entry; they never stop
// the tick.
func (w *World) apply(cmd Command, now time.Time) {
	switch cmd.Type {
	case CmdBuildBuilding:
		w.handleBuildBuilding(cmd.UserID, cmd.BuildingKind, now)
	case CmdDemolishBuilding:
		w.handleDemolishBuilding(cmd.UserID, cmd.BuildingKind)
	case CmdCancelBuild:
		w.handleCancelBuild(cmd.UserID, cmd.Index)
	case CmdUpdateActivity:
		w.handleUpdateActivity(cmd.UserID, now)
	case CmdStartResearch:
		w.handleStartResearch(cmd.UserID, cmd.ResearchKind, now)
	case CmdBuildShips:
		w.handleBuildShips(cmd.UserID, cmd.ShipKind, cmd.Quantity, now)
	case CmdColonize:
		w.handleColonize(cmd.UserID, Position{Galaxy: cmd.Galaxy, System: cmd.System, Planet: cmd.Planet}, cmd.PlanetName)
	case CmdFleetDispatch:
		w.handleFleetDispatch(cmd, now)
	case CmdFleetRecall:
		w.handleFleetRecall(cmd.UserID, now)
	case CmdTradeCreate:
		w.handleTradeCreate(cmd)
	case CmdTradeAccept:
		w.handleTradeAccept(cmd.UserID, cmd.OfferID)
	default:
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Dropping command with unknown type \"%s\"", cmd.Type))
	}
}

// entityOf :
// Returns the active entity of the input user, `0` when
// the user has no loaded planet. The explicitly selected
// planet wins; the home planet is the fallback.
func (w *World) entityOf(userID int) Entity {
	if ent, ok := w.active[userID]; ok {
		if player := w.store.Players.Get(ent); player != nil && player.UserID == userID {
			return ent
		}
		delete(w.active, userID)
	}

	ents := w.store.FindByUser(userID)
	if len(ents) == 0 {
		return 0
	}
	return ents[0]
}

func (w *World) handleBuildBuilding(userID int, kind string, now time.Time) {
	ent := w.entityOf(userID)
	if ent == 0 || !w.rules.KnownBuilding(kind) {
		return
	}

	resources := w.store.Resources.Get(ent)
	buildings := w.store.Buildings.Get(ent)
	queue := w.store.BuildQueues.Get(ent)
	if resources == nil || buildings == nil || queue == nil {
		return
	}

	if !w.rules.BuildingAllowed(kind, buildings) {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting construction of \"%s\" for user %d (prerequisites unmet)", kind, userID))
		return
	}

	level := buildings.Level(kind)
	cost := w.rules.BuildingCost(kind, level)
	if !resources.CanAfford(cost) {
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Rejecting construction of \"%s\" for user %d (insufficient resources)", kind, userID))
		return
	}

	research := w.store.Research.Get(ent)
	duration := w.rules.BuildingDuration(kind, level, research.Level("hyperspace"), buildings.Level("robot_factory"))

	resources.Sub(cost)

	queue.Items = append(queue.Items, BuildItem{
		Kind:           kind,
		CompletionTime: now.Add(time.Duration(duration * float64(time.Second))),
		Cost:           cost,
		QueuedAt:       now,
		Duration:       duration,
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Started construction of \"%s\" (level %d) for user %d", kind, level+1, userID))
	w.persistPlanet(ent)
}

func (w *World) handleDemolishBuilding(userID int, kind string) {
	ent := w.entityOf(userID)
	if ent == 0 || !w.rules.KnownBuilding(kind) {
		return
	}

	resources := w.store.Resources.Get(ent)
	buildings := w.store.Buildings.Get(ent)
	if resources == nil || buildings == nil {
		return
	}

	level := buildings.Level(kind)
	if level <= 0 {
		return
	}

	// A demolition cannot strand a building whose own
	// prerequisites reference the demolished one.
	if blocked := w.rules.BuildingRequiredBy(kind, level-1, buildings); len(blocked) > 0 {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting demolition of \"%s\" for user %d (required by %v)", kind, userID, blocked))
		return
	}

	newLevel := level - 1
	buildings.Levels[kind] = newLevel

	// Refund 30% of the cost of the demolished level.
	refund := w.rules.BuildingCost(kind, newLevel).Scale(0.3)
	resources.Add(Resources{
		Metal:     math.Floor(refund.Metal),
		Crystal:   math.Floor(refund.Crystal),
		Deuterium: math.Floor(refund.Deuterium),
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Demolished \"%s\" to level %d for user %d", kind, newLevel, userID))
	w.persistPlanet(ent)
}

func (w *World) handleCancelBuild(userID int, index *int) {
	if index == nil {
		return
	}

	ent := w.entityOf(userID)
	if ent == 0 {
		return
	}

	resources := w.store.Resources.Get(ent)
	queue := w.store.BuildQueues.Get(ent)
	if resources == nil || queue == nil {
		return
	}

	i := *index
	if i < 0 || i >= len(queue.Items) {
		return
	}

	item := queue.Items[i]
	queue.Items = append(queue.Items[:i], queue.Items[i+1:]...)

	// Refund half of what was paid.
	refund := item.Cost.Scale(0.5)
	resources.Add(Resources{
		Metal:     math.Floor(refund.Metal),
		Crystal:   math.Floor(refund.Crystal),
		Deuterium: math.Floor(refund.Deuterium),
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Cancelled pending construction of \"%s\" for user %d", item.Kind, userID))
	w.persistPlanet(ent)
}

func (w *World) handleUpdateActivity(userID int, now time.Time) {
	for _, ent := range w.store.FindByUser(userID) {
		player := w.store.Players.Get(ent)
		player.LastActive = now
	}
}

func (w *World) handleStartResearch(userID int, kind string, now time.Time) {
	ent := w.entityOf(userID)
	if ent == 0 || !w.rules.KnownTechnology(kind) {
		return
	}

	resources := w.store.Resources.Get(ent)
	research := w.store.Research.Get(ent)
	queue := w.store.ResearchQs.Get(ent)
	if resources == nil || research == nil || queue == nil {
		return
	}

	if !w.rules.ResearchAllowed(kind, research) {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting research of \"%s\" for user %d (prerequisites unmet)", kind, userID))
		return
	}

	level := research.Level(kind)
	cost := w.rules.ResearchCost(kind, level)
	if !resources.CanAfford(cost) {
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Rejecting research of \"%s\" for user %d (insufficient resources)", kind, userID))
		return
	}

	buildings := w.store.Buildings.Get(ent)
	duration := w.rules.ResearchDuration(kind, level, buildings.Level("research_lab"))

	resources.Sub(cost)

	queue.Items = append(queue.Items, ResearchItem{
		Kind:           kind,
		CompletionTime: now.Add(time.Duration(duration * float64(time.Second))),
		Cost:           cost,
		QueuedAt:       now,
		Duration:       duration,
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Started research of \"%s\" (level %d) for user %d", kind, level+1, userID))
	w.persistPlanet(ent)
}

func (w *World) handleBuildShips(userID int, kind string, quantity int, now time.Time) {
	if quantity < 1 {
		quantity = 1
	}

	ent := w.entityOf(userID)
	if ent == 0 || !w.rules.KnownShip(kind) {
		return
	}

	resources := w.store.Resources.Get(ent)
	buildings := w.store.Buildings.Get(ent)
	fleet := w.store.Fleets.Get(ent)
	if resources == nil || buildings == nil || fleet == nil {
		return
	}

	shipyard := buildings.Level("shipyard")
	if shipyard <= 0 {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting ship order of user %d (no shipyard)", userID))
		return
	}

	queue := w.store.ShipQueues.Get(ent)
	if queue == nil {
		queue = &ShipBuildQueue{}
		w.store.ShipQueues.Set(ent, queue)
	}

	if len(queue.Items) >= w.rules.ShipQueueLimit(shipyard) {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting ship order of user %d (shipyard queue full)", userID))
		return
	}

	// Queued batches count against the fleet cap.
	total := fleet.Total()
	for _, item := range queue.Items {
		total += item.Quantity
	}

	research := w.store.Research.Get(ent)
	maxAllowed := w.rules.FleetCap(research.Level("computer"))
	if total+quantity > maxAllowed {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting ship order of user %d (%d + %d exceeds fleet cap %d)", userID, total, quantity, maxAllowed))
		return
	}

	cost := w.rules.ShipCost(kind, quantity)
	if !resources.CanAfford(cost) {
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Rejecting ship order of user %d (insufficient resources)", userID))
		return
	}

	duration := w.rules.ShipBatchDuration(kind, quantity, research.Level("hyperspace"), shipyard, buildings.Level("robot_factory"))

	resources.Sub(cost)

	queue.Items = append(queue.Items, ShipOrder{
		Kind:           kind,
		Quantity:       quantity,
		CompletionTime: now.Add(time.Duration(duration * float64(time.Second))),
		Cost:           cost,
		QueuedAt:       now,
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Started production of %d \"%s\" for user %d", quantity, kind, userID))
	w.persistPlanet(ent)
}

// handleColonize :
// Immediate colonization: consumes a stationed colony ship
// and creates the colony right away provided the target is
// valid and unoccupied. Colonization through a travelling
// fleet goes through `fleet_dispatch` with the `colonize`
// mission instead.
func (w *World) handleColonize(userID int, target Position, name string) {
	if !w.rules.ValidCoordinates(target) {
		return
	}

	ent := w.entityOf(userID)
	if ent == 0 {
		return
	}

	fleet := w.store.Fleets.Get(ent)
	if fleet.Count("colony_ship") <= 0 {
		return
	}

	if w.store.FindAt(target) != 0 {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting colonization of %v for user %d (occupied)", target, userID))
		return
	}

	fleet.Ships["colony_ship"] = fleet.Count("colony_ship") - 1

	player := w.store.Players.Get(ent)
	colony := w.createPlanet(userID, player.Name, target, name)

	w.log.Trace(logger.Info, module, fmt.Sprintf("User %d colonized [%d:%d:%d]", userID, target.Galaxy, target.System, target.Planet))
	w.persistPlanet(ent)
	w.persistPlanet(colony)
}

func (w *World) handleFleetDispatch(cmd Command, now time.Time) {
	target := Position{Galaxy: cmd.Galaxy, System: cmd.System, Planet: cmd.Planet}
	if !w.rules.ValidCoordinates(target) {
		return
	}

	mission := cmd.Mission
	if len(mission) == 0 {
		mission = "transfer"
	}

	ent := w.entityOf(cmd.UserID)
	if ent == 0 {
		return
	}

	pos := w.store.Positions.Get(ent)
	fleet := w.store.Fleets.Get(ent)
	if pos == nil || fleet == nil {
		return
	}

	if w.store.Movements.Has(ent) {
		w.log.Trace(logger.Info, module, fmt.Sprintf("Rejecting dispatch for user %d (fleet already in flight)", cmd.UserID))
		return
	}

	research := w.store.Research.Get(ent)
	stats := w.rules.DerivedShipStats(research)

	// The slowest ship of the composition paces the fleet.
	// Without a composition, fall back to the fastest owned
	// ship, then to the base light fighter speed.
	speed := 0.0
	for kind, count := range cmd.Ships {
		if count <= 0 {
			continue
		}
		s := stats[kind].Speed
		if s > 0 && (speed == 0 || s < speed) {
			speed = s
		}
	}
	if speed <= 0 {
		for kind := range stats {
			if fleet.Count(kind) > 0 && stats[kind].Speed > speed {
				speed = stats[kind].Speed
			}
		}
	}
	if speed <= 0 {
		speed = stats["light_fighter"].Speed
		if speed <= 0 {
			speed = 5000
		}
	}

	factor := 1.0
	if cmd.Speed != nil && *cmd.Speed > 0 && *cmd.Speed <= 1.0 {
		factor = *cmd.Speed
	}
	speed = math.Max(1.0, speed*factor)

	dist := w.rules.Distance(*pos, target)
	seconds := int(float64(dist) / speed * 3600.0)
	if seconds < 1 {
		seconds = 1
	}

	movement := &FleetMovement{
		Origin:        *pos,
		Target:        target,
		DepartureTime: now,
		ArrivalTime:   now.Add(time.Duration(seconds) * time.Second),
		Speed:         speed,
		Mission:       mission,
		OwnerID:       cmd.UserID,
	}
	w.store.Movements.Set(ent, movement)

	w.log.Trace(logger.Info, module, fmt.Sprintf("Dispatched fleet of user %d to [%d:%d:%d] (mission: %s, eta: %ds)", cmd.UserID, target.Galaxy, target.System, target.Planet, mission, seconds))

	if mission == "attack" {
		if defender := w.store.FindAt(target); defender != 0 {
			defenderID := w.store.Players.Get(defender).UserID
			if defenderID != cmd.UserID {
				payload := map[string]interface{}{
					"attacker_user_id": cmd.UserID,
					"origin":           map[string]interface{}{"galaxy": movement.Origin.Galaxy, "system": movement.Origin.System, "planet": movement.Origin.Planet},
					"target":           map[string]interface{}{"galaxy": target.Galaxy, "system": target.System, "planet": target.Planet},
					"eta":              FormatTime(movement.ArrivalTime),
				}

				event := map[string]interface{}{"type": "incoming_attack", "ts": FormatTime(now)}
				for k, v := range payload {
					event[k] = v
				}
				sendEvent(w.sink, defenderID, event)

				notif := w.notifications.Create(defenderID, "incoming_attack", payload, "critical")
				if w.persister != nil {
					w.persister.SaveNotification(notif)
				}
			}
		}
	}

	w.persistPlanet(ent)
}

func (w *World) handleFleetRecall(userID int, now time.Time) {
	for _, ent := range w.store.FindByUser(userID) {
		movement := w.store.Movements.Get(ent)
		if movement == nil {
			continue
		}

		// Nothing to recall once the fleet arrived.
		if !now.Before(movement.ArrivalTime) {
			return
		}

		// Recalling twice is an idempotent success.
		if movement.Recalled {
			return
		}

		elapsed := now.Sub(movement.DepartureTime)
		if elapsed < time.Second {
			elapsed = time.Second
		}

		movement.Target = movement.Origin
		movement.Recalled = true
		movement.DepartureTime = now
		movement.ArrivalTime = now.Add(elapsed)
		movement.ColonizingUntil = nil

		w.log.Trace(logger.Info, module, fmt.Sprintf("Recalled fleet of user %d (return eta: %s)", userID, FormatTime(movement.ArrivalTime)))
		w.persistPlanet(ent)
		return
	}
}

func (w *World) handleTradeCreate(cmd Command) {
	offered := cmd.OfferedResource
	requested := cmd.RequestedResource
	if !validResource(offered) || !validResource(requested) {
		return
	}
	if cmd.OfferedAmount <= 0 || cmd.RequestedAmount <= 0 {
		return
	}

	ent := w.entityOf(cmd.UserID)
	if ent == 0 {
		return
	}

	resources := w.store.Resources.Get(ent)
	if resourceAmount(resources, offered) < float64(cmd.OfferedAmount) {
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Rejecting offer of user %d (insufficient %s)", cmd.UserID, offered))
		return
	}

	// Move the offered amount into escrow.
	addResource(resources, offered, -float64(cmd.OfferedAmount))

	offer := w.market.AddOffer(TradeOffer{
		SellerUserID:      cmd.UserID,
		OfferedResource:   offered,
		OfferedAmount:     cmd.OfferedAmount,
		RequestedResource: requested,
		RequestedAmount:   cmd.RequestedAmount,
		Status:            "open",
		CreatedAt:         Now(),
	})

	event := w.market.RecordEvent(map[string]interface{}{
		"type":               "offer_created",
		"offer_id":           offer.ID,
		"seller_user_id":     cmd.UserID,
		"offered_resource":   offered,
		"offered_amount":     cmd.OfferedAmount,
		"requested_resource": requested,
		"requested_amount":   cmd.RequestedAmount,
		"status":             "open",
	})

	w.emitTradeEvent(event)
	if w.persister != nil {
		w.persister.SaveOffer(*offer)
		w.persister.SaveTradeEvent(event)
	}

	w.log.Trace(logger.Info, module, fmt.Sprintf("User %d created offer %d (%d %s for %d %s)", cmd.UserID, offer.ID, cmd.OfferedAmount, offered, cmd.RequestedAmount, requested))
	w.persistPlanet(ent)
}

func (w *World) handleTradeAccept(buyerID int, offerID int) {
	offer := w.market.Offer(offerID)
	if offer == nil || offer.Status != "open" {
		return
	}
	if offer.SellerUserID == buyerID {
		return
	}

	buyerEnt := w.entityOf(buyerID)
	sellerEnt := w.entityOf(offer.SellerUserID)
	if buyerEnt == 0 || sellerEnt == 0 {
		return
	}

	buyerRes := w.store.Resources.Get(buyerEnt)
	sellerRes := w.store.Resources.Get(sellerEnt)

	if resourceAmount(buyerRes, offer.RequestedResource) < float64(offer.RequestedAmount) {
		w.log.Trace(logger.Warning, module, fmt.Sprintf("Rejecting acceptance of offer %d by user %d (insufficient %s)", offerID, buyerID, offer.RequestedResource))
		return
	}

	// Buyer pays the requested amount; the seller receives
	// it minus the configured fee, which is burned. The
	// escrowed amount goes to the buyer.
	sellerGain := math.Floor(float64(offer.RequestedAmount) * (1.0 - w.rules.TradeFee))

	addResource(buyerRes, offer.RequestedResource, -float64(offer.RequestedAmount))
	addResource(sellerRes, offer.RequestedResource, sellerGain)
	addResource(buyerRes, offer.OfferedResource, float64(offer.OfferedAmount))

	now := Now()
	offer.Status = "accepted"
	offer.AcceptedBy = &buyerID
	offer.AcceptedAt = &now

	event := w.market.RecordEvent(map[string]interface{}{
		"type":               "trade_completed",
		"offer_id":           offer.ID,
		"seller_user_id":     offer.SellerUserID,
		"buyer_user_id":      buyerID,
		"offered_resource":   offer.OfferedResource,
		"offered_amount":     offer.OfferedAmount,
		"requested_resource": offer.RequestedResource,
		"requested_amount":   offer.RequestedAmount,
		"status":             "completed",
	})

	w.emitTradeEvent(event)
	if w.persister != nil {
		w.persister.SaveOffer(*offer)
		w.persister.SaveTradeEvent(event)
	}

	w.log.Trace(logger.Info, module, fmt.Sprintf("User %d accepted offer %d from user %d", buyerID, offerID, offer.SellerUserID))
	w.persistPlanet(buyerEnt)
	w.persistPlanet(sellerEnt)
}

// emitTradeEvent :
// Forwards a trade event to both participants through the
// real time channel.
func (w *World) emitTradeEvent(event map[string]interface{}) {
	payload := make(map[string]interface{}, len(event)+1)
	for k, v := range event {
		payload[k] = v
	}
	payload["type"] = "trade_event"

	if seller, ok := event["seller_user_id"].(int); ok {
		sendEvent(w.sink, seller, payload)
	}
	if buyer, ok := event["buyer_user_id"].(int); ok {
		sendEvent(w.sink, buyer, payload)
	}
}

// createPlanet :
// Allocates a new planet entity with all its components,
// randomized physical attributes and starter resources.
// Callers hold the world lock.
func (w *World) createPlanet(userID int, playerName string, pos Position, name string) Entity {
	ent := w.store.NewEntity()

	size := w.rules.PlanetSizeMin + w.rng.Intn(w.rules.PlanetSizeMax-w.rules.PlanetSizeMin+1)
	temp := w.rules.PlanetTempMin + w.rng.Intn(w.rules.PlanetTempMax-w.rules.PlanetTempMin+1)

	w.store.Players.Set(ent, &Player{UserID: userID, Name: playerName, LastActive: Now()})
	w.store.Positions.Set(ent, &Position{Galaxy: pos.Galaxy, System: pos.System, Planet: pos.Planet})
	w.store.Resources.Set(ent, &Resources{
		Metal:     w.rules.StarterResources.Metal,
		Crystal:   w.rules.StarterResources.Crystal,
		Deuterium: w.rules.StarterResources.Deuterium,
	})
	w.store.Production.Set(ent, &ResourceProduction{
		Metal:      w.rules.BaseProductionRates.Metal,
		Crystal:    w.rules.BaseProductionRates.Crystal,
		Deuterium:  w.rules.BaseProductionRates.Deuterium,
		LastUpdate: Now(),
	})
	w.store.Buildings.Set(ent, NewBuildings())
	w.store.BuildQueues.Set(ent, &BuildQueue{})
	w.store.ShipQueues.Set(ent, &ShipBuildQueue{})
	w.store.Fleets.Set(ent, NewFleet())
	w.store.Research.Set(ent, NewResearch())
	w.store.ResearchQs.Set(ent, &ResearchQueue{})
	w.store.Planets.Set(ent, &Planet{Name: name, Temperature: temp, Size: size})

	return ent
}

// CreateHomeworld :
// Creates the starting planet of the input user at the
// requested coordinates. Fails when the slot is occupied,
// out of bounds or the user already owns a planet.
//
// Returns the created entity or an error.
func (w *World) CreateHomeworld(userID int, playerName string, pos Position, name string) (Entity, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if !w.rules.ValidCoordinates(pos) {
		return 0, fmt.Errorf("coordinates [%d:%d:%d] are out of bounds", pos.Galaxy, pos.System, pos.Planet)
	}
	if len(w.store.FindByUser(userID)) > 0 {
		return 0, fmt.Errorf("user %d already owns a planet", userID)
	}
	if w.store.FindAt(pos) != 0 {
		return 0, fmt.Errorf("coordinates [%d:%d:%d] are already occupied", pos.Galaxy, pos.System, pos.Planet)
	}

	if len(name) == 0 {
		name = w.rules.StarterPlanetName
	}

	ent := w.createPlanet(userID, playerName, pos, name)

	w.log.Trace(logger.Info, module, fmt.Sprintf("Created homeworld of user %d at [%d:%d:%d]", userID, pos.Galaxy, pos.System, pos.Planet))
	w.persistPlanet(ent)

	return ent, nil
}

// OccupiedPositions :
// Returns the set of coordinates currently occupied by a
// player entity.
func (w *World) OccupiedPositions() map[Position]struct{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	out := make(map[Position]struct{})
	for _, ent := range w.store.Positions.Entities() {
		if w.store.Players.Has(ent) {
			out[*w.store.Positions.Get(ent)] = struct{}{}
		}
	}

	return out
}

// RemoveUser :
// Destroys all the entities of the input user, typically
// during inactivity cleanup.
//
// Returns the number of destroyed entities.
func (w *World) RemoveUser(userID int) int {
	w.lock.Lock()
	defer w.lock.Unlock()

	ents := w.store.FindByUser(userID)
	for _, ent := range ents {
		if w.persister != nil {
			w.persister.DeletePlanet(ent)
		}
		w.store.DestroyEntity(ent)
	}
	delete(w.active, userID)

	return len(ents)
}

// CleanupInactive :
// Removes every player whose last activity is older than
// the input duration.
//
// Returns the number of removed players.
func (w *World) CleanupInactive(olderThan time.Duration) int {
	cutoff := Now().Add(-olderThan)

	inactive := make([]int, 0)
	func() {
		w.lock.Lock()
		defer w.lock.Unlock()

		seen := make(map[int]struct{})
		for _, ent := range w.store.Players.Entities() {
			player := w.store.Players.Get(ent)
			if _, ok := seen[player.UserID]; ok {
				continue
			}
			seen[player.UserID] = struct{}{}

			if player.LastActive.Before(cutoff) {
				inactive = append(inactive, player.UserID)
			}
		}
	}()

	for _, userID := range inactive {
		w.RemoveUser(userID)
		w.log.Trace(logger.Info, module, fmt.Sprintf("Removed inactive user %d", userID))
	}

	return len(inactive)
}

// persistPlanet :
// Snapshots the input entity and forwards it to the
// persistence layer. Callers hold the world lock.
func (w *World) persistPlanet(ent Entity) {
	if w.persister == nil {
		return
	}

	snap, ok := w.snapshot(ent)
	if !ok {
		return
	}

	w.persister.UpsertPlanet(snap)
}

// snapshot :
// Builds a consistent copy of all the components of the
// input entity. Callers hold the world lock.
func (w *World) snapshot(ent Entity) (PlanetSnapshot, bool) {
	player := w.store.Players.Get(ent)
	pos := w.store.Positions.Get(ent)
	if player == nil || pos == nil {
		return PlanetSnapshot{}, false
	}

	snap := PlanetSnapshot{
		Entity:     ent,
		UserID:     player.UserID,
		PlayerName: player.Name,
		Position:   *pos,
		UpdatedAt:  Now(),
	}

	if planet := w.store.Planets.Get(ent); planet != nil {
		snap.Name = planet.Name
		snap.Temperature = planet.Temperature
		snap.Size = planet.Size
	}
	if res := w.store.Resources.Get(ent); res != nil {
		snap.Resources = *res
	}
	if prod := w.store.Production.Get(ent); prod != nil {
		snap.Production = *prod
	}
	if buildings := w.store.Buildings.Get(ent); buildings != nil {
		snap.Buildings = make(map[string]int, len(buildings.Levels))
		for kind, level := range buildings.Levels {
			snap.Buildings[kind] = level
		}
	}
	if queue := w.store.BuildQueues.Get(ent); queue != nil {
		snap.BuildQueue = append([]BuildItem(nil), queue.Items...)
	}
	if queue := w.store.ShipQueues.Get(ent); queue != nil {
		snap.ShipQueue = append([]ShipOrder(nil), queue.Items...)
	}
	if fleet := w.store.Fleets.Get(ent); fleet != nil {
		snap.Fleet = copyShips(fleet.Ships)
	}
	if movement := w.store.Movements.Get(ent); movement != nil {
		copied := *movement
		snap.Movement = &copied
	}
	if research := w.store.Research.Get(ent); research != nil {
		snap.Research = make(map[string]int, len(research.Levels))
		for kind, level := range research.Levels {
			snap.Research[kind] = level
		}
	}
	if queue := w.store.ResearchQs.Get(ent); queue != nil {
		snap.ResearchQueue = append([]ResearchItem(nil), queue.Items...)
	}

	return snap, true
}

// Snapshots :
// Builds a consistent copy of every loaded planet, used
// by the periodic save job.
func (w *World) Snapshots() []PlanetSnapshot {
	w.lock.Lock()
	defer w.lock.Unlock()

	out := make([]PlanetSnapshot, 0, w.store.Players.Len())
	for _, ent := range w.store.Players.Entities() {
		if snap, ok := w.snapshot(ent); ok {
			out = append(out, snap)
		}
	}

	return out
}

// validResource :
// Returns `true` for the three tradable resources.
func validResource(name string) bool {
	return name == "metal" || name == "crystal" || name == "deuterium"
}

// resourceAmount :
// Returns the stored amount of the named resource.
func resourceAmount(res *Resources, name string) float64 {
	if res == nil {
		return 0
	}
	switch name {
	case "metal":
		return res.Metal
	case "crystal":
		return res.Crystal
	case "deuterium":
		return res.Deuterium
	}
	return 0
}

// addResource :
// Adds the input delta to the named resource.
func addResource(res *Resources, name string, delta float64) {
	if res == nil {
		return
	}
	switch name {
	case "metal":
		res.Metal += delta
	case "crystal":
		res.Crystal += delta
	case "deuterium":
		res.Deuterium += delta
	}
}

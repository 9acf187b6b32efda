package game

import (
	"fmt"
	"math"
)

// PlayerData :
// Builds the full view of the active planet of the input
// user: identity, coordinates, stockpiles, levels, queues,
// stationed ships, in-flight movement and the ship stats
// derived from the research levels.
//
// Returns `nil` when the user has no loaded planet.
func (w *World) PlayerData(userID int) map[string]interface{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	ent := w.entityOf(userID)
	if ent == 0 {
		return nil
	}

	player := w.store.Players.Get(ent)
	pos := w.store.Positions.Get(ent)
	resources := w.store.Resources.Get(ent)
	buildings := w.store.Buildings.Get(ent)
	fleet := w.store.Fleets.Get(ent)
	research := w.store.Research.Get(ent)
	planet := w.store.Planets.Get(ent)
	if pos == nil || resources == nil || buildings == nil || fleet == nil || research == nil || planet == nil {
		return nil
	}

	data := map[string]interface{}{
		"player": map[string]interface{}{
			"name":        player.Name,
			"user_id":     player.UserID,
			"last_active": FormatTime(player.LastActive),
		},
		"position": positionPayload(*pos),
		"resources": map[string]interface{}{
			"metal":     math.Floor(resources.Metal),
			"crystal":   math.Floor(resources.Crystal),
			"deuterium": math.Floor(resources.Deuterium),
		},
		"buildings":       levelsPayload(buildings.Levels),
		"build_queue":     buildQueuePayload(w.store.BuildQueues.Get(ent)),
		"ship_build_queue": shipQueuePayload(w.store.ShipQueues.Get(ent)),
		"research_queue":  researchQueuePayload(w.store.ResearchQs.Get(ent)),
		"fleet":           shipsPayload(fleet.Ships),
		"research":        levelsPayload(research.Levels),
		"ship_stats":      shipStatsPayload(w.rules.DerivedShipStats(research)),
		"planet": map[string]interface{}{
			"name":        planet.Name,
			"temperature": planet.Temperature,
			"size":        planet.Size,
		},
	}

	if movement := w.store.Movements.Get(ent); movement != nil {
		data["fleet_movement"] = movementPayload(movement)
	}

	return data
}

// FleetData :
// Returns the stationed ships and the in-flight movement of
// the active planet of the input user.
func (w *World) FleetData(userID int) map[string]interface{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	ent := w.entityOf(userID)
	if ent == 0 {
		return nil
	}

	fleet := w.store.Fleets.Get(ent)
	if fleet == nil {
		return nil
	}

	data := map[string]interface{}{
		"fleet": shipsPayload(fleet.Ships),
	}
	if movement := w.store.Movements.Get(ent); movement != nil {
		data["movement"] = movementPayload(movement)
	}

	return data
}

// MovementOf :
// Returns a copy of the in-flight movement of the input
// user, `nil` when none of their planets has a fleet
// underway.
func (w *World) MovementOf(userID int) *FleetMovement {
	w.lock.Lock()
	defer w.lock.Unlock()

	for _, ent := range w.store.FindByUser(userID) {
		if movement := w.store.Movements.Get(ent); movement != nil {
			out := *movement
			return &out
		}
	}

	return nil
}

// StatusCounts :
// Entity and queue counts exposed by the status route.
func (w *World) StatusCounts() map[string]interface{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	pending := 0
	for _, ent := range w.store.BuildQueues.Entities() {
		pending += len(w.store.BuildQueues.Get(ent).Items)
	}
	for _, ent := range w.store.ResearchQs.Entities() {
		pending += len(w.store.ResearchQs.Get(ent).Items)
	}
	for _, ent := range w.store.ShipQueues.Entities() {
		pending += len(w.store.ShipQueues.Get(ent).Items)
	}

	return map[string]interface{}{
		"planets":          w.store.Players.Len(),
		"fleets_in_flight": w.store.Movements.Len(),
		"pending_items":    pending,
		"open_offers":      w.market.Count("open"),
		"pending_commands": w.commands.Len(),
	}
}

// Settle :
// Advances the simulation to the current time outside of
// the regular loop, typically before serving a read so that
// overdue completions are observed.
func (w *World) Settle() {
	w.Tick(Now())
}

// LoadSnapshot :
// Restores a persisted planet into the store, reconciling
// the entity counter so that future allocations never
// collide with reloaded identifiers.
func (w *World) LoadSnapshot(snap PlanetSnapshot) Entity {
	w.lock.Lock()
	defer w.lock.Unlock()

	ent := snap.Entity
	if ent <= 0 {
		ent = w.store.NewEntity()
	} else {
		w.store.Reserve(ent)
	}

	w.store.Players.Set(ent, &Player{UserID: snap.UserID, Name: snap.PlayerName, LastActive: snap.UpdatedAt})
	w.store.Positions.Set(ent, &Position{Galaxy: snap.Position.Galaxy, System: snap.Position.System, Planet: snap.Position.Planet})

	res := snap.Resources
	w.store.Resources.Set(ent, &res)

	prod := snap.Production
	if prod.LastUpdate.IsZero() {
		prod.LastUpdate = Now()
	}
	w.store.Production.Set(ent, &prod)

	buildings := NewBuildings()
	for kind, level := range snap.Buildings {
		buildings.Levels[kind] = level
	}
	w.store.Buildings.Set(ent, buildings)

	w.store.BuildQueues.Set(ent, &BuildQueue{Items: append([]BuildItem(nil), snap.BuildQueue...)})
	w.store.ShipQueues.Set(ent, &ShipBuildQueue{Items: append([]ShipOrder(nil), snap.ShipQueue...)})

	fleet := NewFleet()
	for kind, count := range snap.Fleet {
		fleet.Ships[kind] = count
	}
	w.store.Fleets.Set(ent, fleet)

	if snap.Movement != nil {
		movement := *snap.Movement
		w.store.Movements.Set(ent, &movement)
	}

	research := NewResearch()
	for kind, level := range snap.Research {
		research.Levels[kind] = level
	}
	w.store.Research.Set(ent, research)

	w.store.ResearchQs.Set(ent, &ResearchQueue{Items: append([]ResearchItem(nil), snap.ResearchQueue...)})

	w.store.Planets.Set(ent, &Planet{Name: snap.Name, Temperature: snap.Temperature, Size: snap.Size})

	return ent
}

// PlanetsOf :
// Lists the planets owned by the input user: identifier,
// name, coordinates, physical attributes and whether the
// planet is the active one.
func (w *World) PlanetsOf(userID int) []map[string]interface{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	active := w.entityOf(userID)

	out := make([]map[string]interface{}, 0)
	for _, ent := range w.store.FindByUser(userID) {
		planet := w.store.Planets.Get(ent)
		pos := w.store.Positions.Get(ent)
		if planet == nil || pos == nil {
			continue
		}

		out = append(out, map[string]interface{}{
			"id":          int(ent),
			"name":        planet.Name,
			"position":    positionPayload(*pos),
			"temperature": planet.Temperature,
			"size":        planet.Size,
			"is_active":   ent == active,
		})
	}

	return out
}

// SelectPlanet :
// Marks the input planet as the active one of the user.
// Fails when the planet does not exist or belongs to
// somebody else: both cases answer the same way so that
// probing cannot reveal foreign planet identifiers.
func (w *World) SelectPlanet(userID int, planetID int) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	ent := Entity(planetID)
	player := w.store.Players.Get(ent)
	if player == nil || player.UserID != userID {
		return fmt.Errorf("no planet %d for user %d", planetID, userID)
	}

	w.active[userID] = ent

	return nil
}

// levelsPayload :
// Serializable form of a level map.
func levelsPayload(levels map[string]int) map[string]interface{} {
	out := make(map[string]interface{}, len(levels))
	for kind, level := range levels {
		out[kind] = level
	}
	return out
}

// buildQueuePayload :
// Serializable form of a construction queue.
func buildQueuePayload(queue *BuildQueue) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	if queue == nil {
		return out
	}

	for _, item := range queue.Items {
		out = append(out, map[string]interface{}{
			"type":            item.Kind,
			"completion_time": FormatTime(item.CompletionTime),
			"cost":            resourcesPayload(item.Cost),
			"queued_at":       FormatTime(item.QueuedAt),
			"duration_s":      item.Duration,
		})
	}

	return out
}

// shipQueuePayload :
// Serializable form of a shipyard queue.
func shipQueuePayload(queue *ShipBuildQueue) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	if queue == nil {
		return out
	}

	for _, item := range queue.Items {
		out = append(out, map[string]interface{}{
			"type":            item.Kind,
			"count":           item.Quantity,
			"completion_time": FormatTime(item.CompletionTime),
			"cost":            resourcesPayload(item.Cost),
			"queued_at":       FormatTime(item.QueuedAt),
		})
	}

	return out
}

// researchQueuePayload :
// Serializable form of a research queue.
func researchQueuePayload(queue *ResearchQueue) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	if queue == nil {
		return out
	}

	for _, item := range queue.Items {
		out = append(out, map[string]interface{}{
			"type":            item.Kind,
			"completion_time": FormatTime(item.CompletionTime),
			"cost":            resourcesPayload(item.Cost),
			"queued_at":       FormatTime(item.QueuedAt),
			"duration_s":      item.Duration,
		})
	}

	return out
}

// movementPayload :
// Serializable form of an in-flight movement.
func movementPayload(movement *FleetMovement) map[string]interface{} {
	out := map[string]interface{}{
		"origin":         positionPayload(movement.Origin),
		"target":         positionPayload(movement.Target),
		"departure_time": FormatTime(movement.DepartureTime),
		"arrival_time":   FormatTime(movement.ArrivalTime),
		"speed":          movement.Speed,
		"mission":        movement.Mission,
		"recalled":       movement.Recalled,
	}
	if movement.ColonizingUntil != nil {
		out["colonizing_until"] = FormatTime(*movement.ColonizingUntil)
	}
	return out
}

// resourcesPayload :
// Serializable form of a resource triplet.
func resourcesPayload(res Resources) map[string]interface{} {
	return map[string]interface{}{
		"metal":     res.Metal,
		"crystal":   res.Crystal,
		"deuterium": res.Deuterium,
	}
}

// shipStatsPayload :
// Serializable form of the derived ship stats.
func shipStatsPayload(stats map[string]ShipStats) map[string]interface{} {
	out := make(map[string]interface{}, len(stats))
	for kind, s := range stats {
		out[kind] = map[string]interface{}{
			"attack": s.Attack,
			"shield": s.Shield,
			"speed":  s.Speed,
			"cargo":  s.Cargo,
		}
	}
	return out
}

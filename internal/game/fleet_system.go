package game

import (
	"fmt"
	"time"

	"stellar_server/pkg/logger"
)

// runFleet :
// Finalizes fleet movements whose arrival time has been
// reached. Colonization is a two phase mission: the fleet
// first reaches the target, then a colonization countdown
// runs before the colony is actually created. All other
// missions move the entity to the target; espionage also
// produces a report and an attack arrival schedules a
// battle against the stationed defender.
func (w *World) runFleet(now time.Time) {
	for _, ent := range w.store.Movements.Entities() {
		movement := w.store.Movements.Get(ent)
		fleet := w.store.Fleets.Get(ent)
		if fleet == nil {
			continue
		}

		if now.Before(movement.ArrivalTime) {
			continue
		}

		// A recalled colonization flies home as a regular
		// transfer.
		if movement.Mission == "colonize" && !movement.Recalled {
			if movement.ColonizingUntil == nil {
				if fleet.Count("colony_ship") <= 0 {
					w.detachMovement(ent)
					w.log.Trace(logger.Info, module, fmt.Sprintf("Aborted colonization of [%d:%d:%d] by user %d (no colony ship)", movement.Target.Galaxy, movement.Target.System, movement.Target.Planet, movement.OwnerID))
					continue
				}

				until := movement.ArrivalTime.Add(time.Duration(w.rules.ColonizationTime * float64(time.Second)))
				movement.ColonizingUntil = &until
				// The arrival time doubles as the phase ETA.
				movement.ArrivalTime = until

				// A long catch-up interval can cover both
				// phases at once.
				if now.Before(until) {
					continue
				}
			}

			w.finalizeColonization(ent, fleet, movement, now)
			continue
		}

		// Resolve the mission before the entity moves: the
		// defender lookup must not find the attacker at the
		// contested slot.
		switch {
		case movement.Mission == "espionage":
			w.resolveEspionage(movement, now)
		case movement.Mission == "attack" && !movement.Recalled:
			w.scheduleBattle(ent, fleet, movement, now)
		}

		pos := w.store.Positions.Get(ent)
		if pos == nil {
			pos = &Position{}
			w.store.Positions.Set(ent, pos)
		}
		*pos = movement.Target

		w.detachMovement(ent)
		w.log.Trace(logger.Info, module, fmt.Sprintf("Fleet of user %d arrived at [%d:%d:%d] (mission: %s)", movement.OwnerID, movement.Target.Galaxy, movement.Target.System, movement.Target.Planet, movement.Mission))
		w.persistPlanet(ent)
	}
}

// finalizeColonization :
// Ends the colonization countdown: when the target is still
// unoccupied a colony is created and the colony ship is
// consumed. The movement ends either way.
func (w *World) finalizeColonization(ent Entity, fleet *Fleet, movement *FleetMovement, now time.Time) {
	success := w.store.FindAt(movement.Target) == 0

	if success {
		playerName := "Player"
		if player := w.store.Players.Get(ent); player != nil {
			playerName = player.Name
		}

		colony := w.createPlanet(movement.OwnerID, playerName, movement.Target, "Colony")
		fleet.Ships["colony_ship"] = maxInt(0, fleet.Count("colony_ship")-1)
		w.persistPlanet(colony)
	}

	w.detachMovement(ent)

	w.log.Trace(logger.Info, module, fmt.Sprintf("Colonization of [%d:%d:%d] by user %d ended (success: %t)", movement.Target.Galaxy, movement.Target.System, movement.Target.Planet, movement.OwnerID, success))

	if movement.OwnerID != 0 {
		sendEvent(w.sink, movement.OwnerID, map[string]interface{}{
			"type":    "colonize_complete",
			"success": success,
			"target":  positionPayload(movement.Target),
			"ts":      FormatTime(now),
		})
	}

	w.persistPlanet(ent)
}

// resolveEspionage :
// Produces an espionage report about the target slot. The
// first player found at the coordinates which is not the
// attacker is scanned; an empty snapshot is reported when
// the slot is unoccupied.
func (w *World) resolveEspionage(movement *FleetMovement, now time.Time) {
	defenderID := 0
	snapshot := map[string]interface{}{}

	for _, dent := range w.store.Players.Entities() {
		dplayer := w.store.Players.Get(dent)
		dpos := w.store.Positions.Get(dent)
		if dpos == nil || !dpos.SameAs(movement.Target) {
			continue
		}
		if dplayer.UserID == movement.OwnerID {
			continue
		}

		defenderID = dplayer.UserID
		snapshot = w.espionageSnapshot(dent)
		break
	}

	report := w.reports.Add(Report{
		Kind:           EspionageReportKind,
		AttackerUserID: movement.OwnerID,
		DefenderUserID: defenderID,
		Location:       movement.Target,
		Payload:        map[string]interface{}{"snapshot": snapshot},
	})

	if w.persister != nil {
		w.persister.SaveReport(report)
	}

	w.log.Trace(logger.Info, module, fmt.Sprintf("Stored espionage report %d of user %d about [%d:%d:%d]", report.ID, movement.OwnerID, movement.Target.Galaxy, movement.Target.System, movement.Target.Planet))
}

// espionageSnapshot :
// Collects what a probe learns about a planet: its physical
// attributes, stockpiles, building levels and stationed
// ships.
func (w *World) espionageSnapshot(ent Entity) map[string]interface{} {
	snapshot := map[string]interface{}{}

	if planet := w.store.Planets.Get(ent); planet != nil {
		snapshot["planet"] = map[string]interface{}{
			"name":        planet.Name,
			"temperature": planet.Temperature,
			"size":        planet.Size,
		}
	}
	if res := w.store.Resources.Get(ent); res != nil {
		snapshot["resources"] = map[string]interface{}{
			"metal":     int(res.Metal),
			"crystal":   int(res.Crystal),
			"deuterium": int(res.Deuterium),
		}
	}
	if buildings := w.store.Buildings.Get(ent); buildings != nil {
		levels := make(map[string]interface{}, len(buildings.Levels))
		for kind, level := range buildings.Levels {
			levels[kind] = level
		}
		snapshot["buildings"] = levels
	}
	if fleet := w.store.Fleets.Get(ent); fleet != nil {
		ships := make(map[string]interface{}, len(fleet.Ships))
		for kind, count := range fleet.Ships {
			ships[kind] = count
		}
		snapshot["fleet"] = ships
	}

	return snapshot
}

// scheduleBattle :
// An attack arrival against an occupied slot schedules a
// battle between the attacking fleet and the stationed
// defender, resolved by the battle system later in the same
// tick.
func (w *World) scheduleBattle(ent Entity, fleet *Fleet, movement *FleetMovement, now time.Time) {
	defender := w.store.FindAt(movement.Target)
	if defender == 0 || defender == ent {
		return
	}

	defenderID := w.store.Players.Get(defender).UserID
	if defenderID == movement.OwnerID {
		return
	}

	defenderShips := map[string]int{}
	if defFleet := w.store.Fleets.Get(defender); defFleet != nil {
		defenderShips = copyShips(defFleet.Ships)
	}

	bent := w.store.NewEntity()
	w.store.Battles.Set(bent, &Battle{
		AttackerID:    movement.OwnerID,
		DefenderID:    defenderID,
		AttackerShips: copyShips(fleet.Ships),
		DefenderShips: defenderShips,
		Location:      movement.Target,
		ScheduledTime: now,
	})

	w.log.Trace(logger.Info, module, fmt.Sprintf("Scheduled battle between user %d and user %d at [%d:%d:%d]", movement.OwnerID, defenderID, movement.Target.Galaxy, movement.Target.System, movement.Target.Planet))
}

// detachMovement :
// Removes the movement component of the input entity and
// deletes the persisted mission row.
func (w *World) detachMovement(ent Entity) {
	w.store.Movements.Remove(ent)
	if w.persister != nil {
		w.persister.DeleteMission(ent)
	}
}

// positionPayload :
// Serializable form of a coordinate triplet.
func positionPayload(pos Position) map[string]interface{} {
	return map[string]interface{}{
		"galaxy": pos.Galaxy,
		"system": pos.System,
		"planet": pos.Planet,
	}
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

package game

import (
	"fmt"
	"time"

	"stellar_server/pkg/logger"
)

// runBattles :
// Resolves every scheduled battle whose due time has been
// reached. The resolution is a deterministic single round:
// each side fires its total attack through the opposing
// shields and the damage translates into proportional hull
// losses.
func (w *World) runBattles(now time.Time) {
	for _, ent := range w.store.Battles.Entities() {
		battle := w.store.Battles.Get(ent)
		if battle.Resolved || now.Before(battle.ScheduledTime) {
			continue
		}

		atkPower := w.fleetPower(battle.AttackerShips)
		defPower := w.fleetPower(battle.DefenderShips)

		atkAttack := w.fleetAttack(battle.AttackerShips)
		defAttack := w.fleetAttack(battle.DefenderShips)
		atkShield := w.fleetShield(battle.AttackerShips)
		defShield := w.fleetShield(battle.DefenderShips)
		atkStruct := w.fleetStructure(battle.AttackerShips)
		defStruct := w.fleetStructure(battle.DefenderShips)

		damageToDef := maxInt(0, atkAttack-defShield)
		damageToAtk := maxInt(0, defAttack-atkShield)

		defFrac := lossFraction(damageToDef, defStruct)
		atkFrac := lossFraction(damageToAtk, atkStruct)

		atkLosses, atkRemaining := applyLosses(battle.AttackerShips, atkFrac)
		defLosses, defRemaining := applyLosses(battle.DefenderShips, defFrac)

		atkRemainingPower := w.fleetPower(atkRemaining)
		defRemainingPower := w.fleetPower(defRemaining)

		winner := "draw"
		switch {
		case atkRemainingPower > defRemainingPower:
			winner = "attacker"
		case defRemainingPower > atkRemainingPower:
			winner = "defender"
		case atkPower > defPower:
			winner = "attacker"
		case defPower > atkPower:
			winner = "defender"
		}

		location := positionPayload(battle.Location)

		battle.Outcome = map[string]interface{}{
			"winner":                   winner,
			"attacker_power":           atkPower,
			"defender_power":           defPower,
			"attacker_remaining_power": atkRemainingPower,
			"defender_remaining_power": defRemainingPower,
			"attacker_losses":          shipsPayload(atkLosses),
			"defender_losses":          shipsPayload(defLosses),
			"attacker_remaining":       shipsPayload(atkRemaining),
			"defender_remaining":       shipsPayload(defRemaining),
			"resolved_at":              FormatTime(now),
			"location":                 location,
		}
		battle.Resolved = true

		report := w.reports.Add(Report{
			Kind:           BattleReportKind,
			AttackerUserID: battle.AttackerID,
			DefenderUserID: battle.DefenderID,
			Location:       battle.Location,
			Payload:        map[string]interface{}{"outcome": battle.Outcome},
		})

		if w.persister != nil {
			w.persister.SaveReport(report)
		}

		event := map[string]interface{}{
			"type":       "battle_report",
			"report_id":  report.ID,
			"created_at": FormatTime(report.CreatedAt),
			"location":   location,
			"outcome":    battle.Outcome,
		}

		for _, userID := range []int{battle.AttackerID, battle.DefenderID} {
			if userID == 0 {
				continue
			}

			sendEvent(w.sink, userID, event)

			notif := w.notifications.Create(userID, "battle_report", map[string]interface{}{
				"report_id": report.ID,
				"location":  location,
				"outcome":   battle.Outcome,
			}, "critical")
			if w.persister != nil {
				w.persister.SaveNotification(notif)
			}
		}

		w.log.Trace(logger.Info, module, fmt.Sprintf("Resolved battle %d between user %d and user %d (winner: %s)", report.ID, battle.AttackerID, battle.DefenderID, winner))
	}
}

// fleetPower :
// Comparison power of a fleet. Unknown ship types count for
// one point each so that an unrecognized composition still
// outweighs an empty one.
func (w *World) fleetPower(ships map[string]int) int {
	total := 0
	for kind, count := range ships {
		attack := 1
		if stats, ok := w.rules.ShipBase[kind]; ok {
			attack = int(stats.Attack)
		}
		total += count * attack
	}
	return total
}

// fleetAttack :
// Total firepower of a fleet.
func (w *World) fleetAttack(ships map[string]int) int {
	total := 0
	for kind, count := range ships {
		total += count * int(w.rules.ShipBase[kind].Attack)
	}
	return total
}

// fleetShield :
// Total shielding of a fleet.
func (w *World) fleetShield(ships map[string]int) int {
	total := 0
	for kind, count := range ships {
		total += count * int(w.rules.ShipBase[kind].Shield)
	}
	return total
}

// fleetStructure :
// Total hull points of a fleet, derived from the build
// costs of its ships.
func (w *World) fleetStructure(ships map[string]int) float64 {
	total := 0.0
	for kind, count := range ships {
		cost := w.rules.ShipCosts[kind]
		total += float64(count) * (cost.Metal + cost.Crystal) / 10.0
	}
	return total
}

// lossFraction :
// Share of a fleet destroyed by the input damage, between
// zero and one. A fleet without structure takes no losses.
func lossFraction(damage int, structure float64) float64 {
	if structure <= 0 {
		return 0.0
	}
	frac := float64(damage) / structure
	if frac > 1.0 {
		return 1.0
	}
	if frac < 0.0 {
		return 0.0
	}
	return frac
}

// applyLosses :
// Destroys the input fraction of each ship type, rounding
// down.
//
// Returns the losses and the remaining ships.
func applyLosses(ships map[string]int, fraction float64) (map[string]int, map[string]int) {
	if fraction <= 0 {
		return map[string]int{}, copyShips(ships)
	}

	losses := make(map[string]int, len(ships))
	remaining := make(map[string]int, len(ships))

	for kind, count := range ships {
		destroyed := int(float64(count) * fraction)
		if destroyed > count {
			destroyed = count
		}
		losses[kind] = destroyed
		if count-destroyed > 0 {
			remaining[kind] = count - destroyed
		}
	}

	return losses, remaining
}

// shipsPayload :
// Serializable form of a ship count map.
func shipsPayload(ships map[string]int) map[string]interface{} {
	out := make(map[string]interface{}, len(ships))
	for kind, count := range ships {
		out[kind] = count
	}
	return out
}

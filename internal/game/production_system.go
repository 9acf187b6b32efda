package game

import (
	"fmt"
	"math"
	"time"
)

// EnergyBalance :
// Hourly energy budget of a planet: what the power plants
// produce, what the mines draw, and the resulting factor
// applied to all production.
type EnergyBalance struct {
	Produced  float64 `json:"produced"`
	Required  float64 `json:"required"`
	FactorRaw float64 `json:"factor_raw"`
	Factor    float64 `json:"factor"`
}

// energyBalance :
// Computes the energy budget of a planet. The solar plant
// and the fusion reactor produce, scaled by the energy
// technology; the three mines consume. The resulting factor
// is the produced over required ratio capped at one, with a
// configured soft floor once a deficit occurs.
func (w *World) energyBalance(buildings *Buildings, research *Research) EnergyBalance {
	r := w.rules

	bonus := 1.0 + r.EnergyBonusPerTechLevel*float64(research.Level("energy"))

	solarLvl := buildings.Level("solar_plant")
	solar := r.EnergySolarBase * float64(solarLvl) * math.Pow(r.EnergySolarGrowth, math.Max(0, float64(solarLvl-1)))

	fusionLvl := buildings.Level("fusion_reactor")
	fusion := r.EnergyFusionBase * float64(fusionLvl) * math.Pow(r.EnergyFusionGrowth, math.Max(0, float64(fusionLvl-1)))

	produced := (solar + fusion) * bonus

	required := 0.0
	for kind, draw := range r.EnergyConsumption {
		lvl := buildings.Level(kind)
		if lvl > 0 {
			required += draw * float64(lvl) * math.Pow(r.EnergyConsumptionGrow, float64(lvl-1))
		}
	}

	balance := EnergyBalance{Produced: produced, Required: required}

	switch {
	case required <= 0:
		balance.FactorRaw = 1.0
		balance.Factor = 1.0
	case produced <= 0:
		balance.FactorRaw = 0.0
		balance.Factor = 0.0
	default:
		balance.FactorRaw = math.Min(1.0, produced/required)
		balance.Factor = math.Max(r.DeficitFloor, balance.FactorRaw)
	}

	return balance
}

// runProduction :
// Accrues resources on every planet for the time elapsed
// since its last update. The accrual covers energy balance,
// planet modifiers, plasma bonuses, storage capacities and
// the fusion reactor's deuterium draw; each affected owner
// receives a resource update event.
func (w *World) runProduction(now time.Time) {
	r := w.rules

	for _, ent := range w.store.Production.Entities() {
		production := w.store.Production.Get(ent)
		resources := w.store.Resources.Get(ent)
		buildings := w.store.Buildings.Get(ent)
		if resources == nil || buildings == nil {
			continue
		}

		hours := now.Sub(production.LastUpdate).Hours()
		if hours <= 0 {
			continue
		}

		research := w.store.Research.Get(ent)
		planet := w.store.Planets.Get(ent)
		player := w.store.Players.Get(ent)

		userID := 0
		planetName := ""
		if player != nil {
			userID = player.UserID
		}
		if planet != nil {
			planetName = planet.Name
		}

		balance := w.energyBalance(buildings, research)

		if balance.FactorRaw < 1.0 && balance.FactorRaw <= r.DeficitNotifyBelow && userID != 0 {
			key := fmt.Sprintf("energy_deficit:%s", cooldownScope(planetName, ent))
			if w.notifications.Allow(key, now, time.Duration(r.DeficitCooldown*float64(time.Second))) {
				notif := w.notifications.Create(userID, "energy_deficit", map[string]interface{}{
					"planet":          planetName,
					"energy_produced": balance.Produced,
					"energy_required": balance.Required,
					"factor_raw":      balance.FactorRaw,
					"factor_applied":  balance.Factor,
				}, "warning")
				if w.persister != nil {
					w.persister.SaveNotification(notif)
				}
			}
		}

		baseMetal := production.Metal
		baseCrystal := production.Crystal
		baseDeut := production.Deuterium
		if r.UseConfigRates {
			baseMetal = r.BaseProductionRates.Metal
			baseCrystal = r.BaseProductionRates.Crystal
			baseDeut = r.BaseProductionRates.Deuterium
		}

		sizeMult := 1.0
		tempMult := 1.0
		if planet != nil {
			sizeMult = sizeMultiplier(planet.Size)
			tempMult = temperatureMultiplier(planet.Temperature)
		}

		metal := baseMetal * math.Pow(r.ProductionGrowth, float64(buildings.Level("metal_mine"))) * hours * balance.Factor * sizeMult
		crystal := baseCrystal * math.Pow(r.ProductionGrowth, float64(buildings.Level("crystal_mine"))) * hours * balance.Factor * sizeMult
		deuterium := baseDeut * math.Pow(r.ProductionGrowth, float64(buildings.Level("deuterium_synthesizer"))) * hours * balance.Factor * sizeMult * tempMult

		if plasma := research.Level("plasma"); plasma > 0 {
			metal *= 1.0 + r.PlasmaProductionBonus.Metal*float64(plasma)
			crystal *= 1.0 + r.PlasmaProductionBonus.Crystal*float64(plasma)
			deuterium *= 1.0 + r.PlasmaProductionBonus.Deuterium*float64(plasma)
		}

		rawMetal := math.Round(metal)
		rawCrystal := math.Round(crystal)
		rawDeut := math.Round(deuterium)

		// Clamp the accrual to the storage capacities, the
		// capacities scaling with the planet size.
		capMetal := math.Floor(r.StorageCapacity(buildings.Level("metal_storage")) * sizeMult)
		capCrystal := math.Floor(r.StorageCapacity(buildings.Level("crystal_storage")) * sizeMult)
		capDeut := math.Floor(r.StorageCapacity(buildings.Level("deuterium_tank")) * sizeMult)

		addMetal := clampAccrual(rawMetal, resources.Metal, capMetal)
		addCrystal := clampAccrual(rawCrystal, resources.Crystal, capCrystal)
		addDeut := clampAccrual(rawDeut, resources.Deuterium, capDeut)

		if userID != 0 {
			w.notifyStorageFull(userID, "metal", resources.Metal, addMetal, capMetal, planetName, ent, now)
			w.notifyStorageFull(userID, "crystal", resources.Crystal, addCrystal, capCrystal, planetName, ent, now)
			w.notifyStorageFull(userID, "deuterium", resources.Deuterium, addDeut, capDeut, planetName, ent, now)
		}

		// The fusion reactor burns deuterium regardless of
		// the energy factor, applied after the accrual.
		burn := math.Round(r.FusionDeuteriumDraw * float64(buildings.Level("fusion_reactor")) * hours)

		resources.Metal += addMetal
		resources.Crystal += addCrystal
		resources.Deuterium += addDeut
		if burn > 0 {
			resources.Deuterium = math.Max(0, resources.Deuterium-burn)
		}

		production.LastUpdate = now

		if userID != 0 && (addMetal != 0 || addCrystal != 0 || addDeut != 0 || burn != 0) {
			sendEvent(w.sink, userID, map[string]interface{}{
				"type":   "resource_update",
				"deltas": map[string]interface{}{"metal": addMetal, "crystal": addCrystal, "deuterium": addDeut - burn},
				"totals": map[string]interface{}{"metal": math.Floor(resources.Metal), "crystal": math.Floor(resources.Crystal), "deuterium": math.Floor(resources.Deuterium)},
				"ts":     FormatTime(now),
			})
		}
	}
}

// notifyStorageFull :
// Emits a rate limited notification when an accrual just
// saturated a storage.
func (w *World) notifyStorageFull(userID int, resource string, before float64, add float64, capacity float64, planetName string, ent Entity, now time.Time) {
	if before >= capacity || before+add < capacity {
		return
	}

	key := fmt.Sprintf("storage_full:%s:%s", resource, cooldownScope(planetName, ent))
	if !w.notifications.Allow(key, now, time.Duration(w.rules.DeficitCooldown*float64(time.Second))) {
		return
	}

	notif := w.notifications.Create(userID, "storage_full", map[string]interface{}{
		"resource": resource,
		"capacity": capacity,
	}, "info")
	if w.persister != nil {
		w.persister.SaveNotification(notif)
	}
}

// clampAccrual :
// Limits an accrual so that the stockpile never exceeds
// its capacity, and never removes resources.
func clampAccrual(raw float64, before float64, capacity float64) float64 {
	room := math.Max(0, capacity-before)
	return math.Max(0, math.Min(raw, room))
}

// cooldownScope :
// Returns the identifier used to scope a cooldown key to a
// planet, preferring its name when it has one.
func cooldownScope(planetName string, ent Entity) string {
	if len(planetName) > 0 {
		return planetName
	}
	return fmt.Sprintf("%d", ent)
}

// sizeMultiplier :
// Production modifier derived from the planet size: small
// worlds produce a bit less, large ones a bit more.
func sizeMultiplier(size int) float64 {
	switch {
	case size < 140:
		return 0.9
	case size <= 170:
		return 1.0
	default:
		return 1.1
	}
}

// temperatureMultiplier :
// Production modifier applied to deuterium only: cold
// worlds synthesize more, hot ones less.
func temperatureMultiplier(temperature int) float64 {
	switch {
	case temperature < -10:
		return 1.2
	case temperature <= 40:
		return 1.0
	default:
		return 0.8
	}
}

// EnergyBalanceOf :
// Returns the energy budget of the active planet of the
// input user, for the status route.
func (w *World) EnergyBalanceOf(userID int) (EnergyBalance, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	ent := w.entityOf(userID)
	if ent == 0 {
		return EnergyBalance{}, false
	}

	buildings := w.store.Buildings.Get(ent)
	research := w.store.Research.Get(ent)
	if buildings == nil {
		return EnergyBalance{}, false
	}

	return w.energyBalance(buildings, research), true
}

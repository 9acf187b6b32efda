package data

import (
	"fmt"
	"time"

	"stellar_server/internal/game"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
)

// PlanetProxy :
// Intended as a wrapper to access the persisted planets and
// their satellite rows (buildings, fleet, research, queues
// and mission). This helps hiding the precise layout of the
// tables from the rest of the application: the proxy talks
// in terms of the snapshots produced by the simulation.
//
// The `dbase` is the database that is wrapped by this
// object.
//
// The `proxy` provides the common query and insertion
// helpers built on top of the database.
//
// The `log` allows to notify errors and information.
type PlanetProxy struct {
	dbase *db.DB
	proxy db.Proxy
	log   logger.Logger
}

// NewPlanetProxy :
// Creates a new proxy on the input database.
//
// Returns the created proxy.
func NewPlanetProxy(dbase *db.DB, log logger.Logger) PlanetProxy {
	return PlanetProxy{
		dbase: dbase,
		proxy: db.NewProxy(dbase),
		log:   log,
	}
}

// planetDTO :
// Facet of a planet snapshot matching the payload expected
// by the `upsert_planet` function.
type planetDTO struct {
	ID            int                    `json:"id"`
	UserID        int                    `json:"user_id"`
	PlayerName    string                 `json:"player_name"`
	Name          string                 `json:"name"`
	Galaxy        int                    `json:"galaxy"`
	System        int                    `json:"system"`
	Position      int                    `json:"position"`
	Temperature   int                    `json:"temperature"`
	Size          int                    `json:"size"`
	Metal         float64                `json:"metal"`
	Crystal       float64                `json:"crystal"`
	Deuterium     float64                `json:"deuterium"`
	MetalRate     float64                `json:"metal_rate"`
	CrystalRate   float64                `json:"crystal_rate"`
	DeuteriumRate float64                `json:"deuterium_rate"`
	LastUpdate    string                 `json:"last_update"`
	UpdatedAt     string                 `json:"updated_at"`
	Buildings     map[string]int         `json:"buildings"`
	Research      map[string]int         `json:"research"`
	Fleet         map[string]int         `json:"fleet"`
	BuildQueue    []queueItemDTO         `json:"build_queue"`
	ResearchQueue []queueItemDTO         `json:"research_queue"`
	ShipQueue     []shipOrderDTO         `json:"ship_queue"`
	Mission       map[string]interface{} `json:"mission,omitempty"`
}

// queueItemDTO :
// Row level form of a pending construction or research.
type queueItemDTO struct {
	Type           string  `json:"type"`
	QueuedAt       string  `json:"queued_at"`
	CompletionTime string  `json:"completion_time"`
	Duration       float64 `json:"duration_s"`
	CostMetal      float64 `json:"cost_metal"`
	CostCrystal    float64 `json:"cost_crystal"`
	CostDeuterium  float64 `json:"cost_deuterium"`
}

// shipOrderDTO :
// Row level form of a pending ship batch.
type shipOrderDTO struct {
	Type           string  `json:"type"`
	Count          int     `json:"count"`
	QueuedAt       string  `json:"queued_at"`
	CompletionTime string  `json:"completion_time"`
	CostMetal      float64 `json:"cost_metal"`
	CostCrystal    float64 `json:"cost_crystal"`
	CostDeuterium  float64 `json:"cost_deuterium"`
}

// Convert :
// Implementation of the `db.Convertible` interface so that
// the DTO is marshalled as is.
func (p planetDTO) Convert() interface{} {
	return p
}

// toDTO :
// Builds the database facet of a planet snapshot.
func toDTO(snap game.PlanetSnapshot) planetDTO {
	dto := planetDTO{
		ID:            int(snap.Entity),
		UserID:        snap.UserID,
		PlayerName:    snap.PlayerName,
		Name:          snap.Name,
		Galaxy:        snap.Position.Galaxy,
		System:        snap.Position.System,
		Position:      snap.Position.Planet,
		Temperature:   snap.Temperature,
		Size:          snap.Size,
		Metal:         snap.Resources.Metal,
		Crystal:       snap.Resources.Crystal,
		Deuterium:     snap.Resources.Deuterium,
		MetalRate:     snap.Production.Metal,
		CrystalRate:   snap.Production.Crystal,
		DeuteriumRate: snap.Production.Deuterium,
		LastUpdate:    game.FormatTime(snap.Production.LastUpdate),
		UpdatedAt:     game.FormatTime(snap.UpdatedAt),
		Buildings:     snap.Buildings,
		Research:      snap.Research,
		Fleet:         snap.Fleet,
		BuildQueue:    make([]queueItemDTO, 0, len(snap.BuildQueue)),
		ResearchQueue: make([]queueItemDTO, 0, len(snap.ResearchQueue)),
		ShipQueue:     make([]shipOrderDTO, 0, len(snap.ShipQueue)),
	}

	for _, item := range snap.BuildQueue {
		dto.BuildQueue = append(dto.BuildQueue, queueItemDTO{
			Type:           item.Kind,
			QueuedAt:       game.FormatTime(item.QueuedAt),
			CompletionTime: game.FormatTime(item.CompletionTime),
			Duration:       item.Duration,
			CostMetal:      item.Cost.Metal,
			CostCrystal:    item.Cost.Crystal,
			CostDeuterium:  item.Cost.Deuterium,
		})
	}
	for _, item := range snap.ResearchQueue {
		dto.ResearchQueue = append(dto.ResearchQueue, queueItemDTO{
			Type:           item.Kind,
			QueuedAt:       game.FormatTime(item.QueuedAt),
			CompletionTime: game.FormatTime(item.CompletionTime),
			Duration:       item.Duration,
			CostMetal:      item.Cost.Metal,
			CostCrystal:    item.Cost.Crystal,
			CostDeuterium:  item.Cost.Deuterium,
		})
	}
	for _, item := range snap.ShipQueue {
		dto.ShipQueue = append(dto.ShipQueue, shipOrderDTO{
			Type:           item.Kind,
			Count:          item.Quantity,
			QueuedAt:       game.FormatTime(item.QueuedAt),
			CompletionTime: game.FormatTime(item.CompletionTime),
			CostMetal:      item.Cost.Metal,
			CostCrystal:    item.Cost.Crystal,
			CostDeuterium:  item.Cost.Deuterium,
		})
	}

	if snap.Movement != nil {
		mission := map[string]interface{}{
			"origin_galaxy":   snap.Movement.Origin.Galaxy,
			"origin_system":   snap.Movement.Origin.System,
			"origin_position": snap.Movement.Origin.Planet,
			"target_galaxy":   snap.Movement.Target.Galaxy,
			"target_system":   snap.Movement.Target.System,
			"target_position": snap.Movement.Target.Planet,
			"mission":         snap.Movement.Mission,
			"speed":           snap.Movement.Speed,
			"recalled":        snap.Movement.Recalled,
			"departure_time":  game.FormatTime(snap.Movement.DepartureTime),
			"arrival_time":    game.FormatTime(snap.Movement.ArrivalTime),
		}
		if snap.Movement.ColonizingUntil != nil {
			mission["colonizing_until"] = game.FormatTime(*snap.Movement.ColonizingUntil)
		}
		dto.Mission = mission
	}

	return dto
}

// Upsert :
// Stores the full state of a planet, rebuilding all its
// satellite rows.
//
// Returns any error.
func (p PlanetProxy) Upsert(snap game.PlanetSnapshot) error {
	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "upsert_planet",
		Args:       []interface{}{toDTO(snap)},
		SkipReturn: true,
	})
}

// Delete :
// Removes a planet and its satellite rows.
//
// Returns any error.
func (p PlanetProxy) Delete(ent game.Entity) error {
	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "delete_planet",
		Args:       []interface{}{int(ent)},
		SkipReturn: true,
	})
}

// DeleteMission :
// Removes the persisted mission of a planet.
//
// Returns any error.
func (p PlanetProxy) DeleteMission(ent game.Entity) error {
	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "delete_fleet_mission",
		Args:       []interface{}{int(ent)},
		SkipReturn: true,
	})
}

// FetchAll :
// Loads every persisted planet along with its satellite
// rows, producing the snapshots consumed by the startup
// hydration.
//
// Returns the snapshots along with any error.
func (p PlanetProxy) FetchAll() ([]game.PlanetSnapshot, error) {
	snaps := make(map[int]*game.PlanetSnapshot)
	order := make([]int, 0)

	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"id", "name", "owner_id", "player_name", "galaxy", "system", "position",
			"temperature", "size", "metal", "crystal", "deuterium",
			"metal_rate", "crystal_rate", "deuterium_rate", "last_update", "updated_at"},
		Table: "planets",
	})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if res.Err != nil {
		return nil, res.Err
	}

	for res.Next() {
		var snap game.PlanetSnapshot
		var id int

		err = res.Scan(&id, &snap.Name, &snap.UserID, &snap.PlayerName,
			&snap.Position.Galaxy, &snap.Position.System, &snap.Position.Planet,
			&snap.Temperature, &snap.Size,
			&snap.Resources.Metal, &snap.Resources.Crystal, &snap.Resources.Deuterium,
			&snap.Production.Metal, &snap.Production.Crystal, &snap.Production.Deuterium,
			&snap.Production.LastUpdate, &snap.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch planet: %v", err)
		}

		snap.Entity = game.Entity(id)
		snap.Buildings = make(map[string]int)
		snap.Research = make(map[string]int)
		snap.Fleet = make(map[string]int)

		snaps[id] = &snap
		order = append(order, id)
	}

	if err = p.fetchBuildings(snaps); err != nil {
		return nil, err
	}
	if err = p.fetchFleets(snaps); err != nil {
		return nil, err
	}
	if err = p.fetchResearch(snaps); err != nil {
		return nil, err
	}
	if err = p.fetchQueues(snaps); err != nil {
		return nil, err
	}
	if err = p.fetchMissions(snaps); err != nil {
		return nil, err
	}

	out := make([]game.PlanetSnapshot, 0, len(order))
	for _, id := range order {
		out = append(out, *snaps[id])
	}

	return out, nil
}

func (p PlanetProxy) fetchBuildings(snaps map[int]*game.PlanetSnapshot) error {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "type", "level"},
		Table: "buildings",
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Err != nil {
		return res.Err
	}

	for res.Next() {
		var pid, level int
		var kind string

		if err = res.Scan(&pid, &kind, &level); err != nil {
			return fmt.Errorf("unable to fetch building: %v", err)
		}
		if snap, ok := snaps[pid]; ok {
			snap.Buildings[kind] = level
		}
	}

	return nil
}

func (p PlanetProxy) fetchFleets(snaps map[int]*game.PlanetSnapshot) error {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "light_fighter", "heavy_fighter", "cruiser", "battleship", "bomber", "colony_ship"},
		Table: "fleets",
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Err != nil {
		return res.Err
	}

	for res.Next() {
		var pid, lf, hf, cruiser, battleship, bomber, colony int

		if err = res.Scan(&pid, &lf, &hf, &cruiser, &battleship, &bomber, &colony); err != nil {
			return fmt.Errorf("unable to fetch fleet: %v", err)
		}
		if snap, ok := snaps[pid]; ok {
			snap.Fleet["light_fighter"] = lf
			snap.Fleet["heavy_fighter"] = hf
			snap.Fleet["cruiser"] = cruiser
			snap.Fleet["battleship"] = battleship
			snap.Fleet["bomber"] = bomber
			snap.Fleet["colony_ship"] = colony
		}
	}

	return nil
}

func (p PlanetProxy) fetchResearch(snaps map[int]*game.PlanetSnapshot) error {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"user_id", "energy", "laser", "ion", "hyperspace", "plasma", "computer"},
		Table: "research",
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Err != nil {
		return res.Err
	}

	byUser := make(map[int]map[string]int)
	for res.Next() {
		var uid, energy, laser, ion, hyperspace, plasma, computer int

		if err = res.Scan(&uid, &energy, &laser, &ion, &hyperspace, &plasma, &computer); err != nil {
			return fmt.Errorf("unable to fetch research: %v", err)
		}
		byUser[uid] = map[string]int{
			"energy":     energy,
			"laser":      laser,
			"ion":        ion,
			"hyperspace": hyperspace,
			"plasma":     plasma,
			"computer":   computer,
		}
	}

	// The research levels belong to the user and are shared
	// by all its planets.
	for _, snap := range snaps {
		if levels, ok := byUser[snap.UserID]; ok {
			for kind, level := range levels {
				snap.Research[kind] = level
			}
		}
	}

	return nil
}

func (p PlanetProxy) fetchQueues(snaps map[int]*game.PlanetSnapshot) error {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "building_type", "enqueued_at", "complete_at", "duration_s",
			"cost_metal", "cost_crystal", "cost_deuterium"},
		Table: "building_queue",
	})
	if err != nil {
		return err
	}

	func() {
		defer res.Close()
		for res.Err == nil && res.Next() {
			var pid int
			var item game.BuildItem
			var cost game.Resources

			if err = res.Scan(&pid, &item.Kind, &item.QueuedAt, &item.CompletionTime, &item.Duration,
				&cost.Metal, &cost.Crystal, &cost.Deuterium); err != nil {
				err = fmt.Errorf("unable to fetch build queue item: %v", err)
				return
			}
			item.Cost = cost
			if snap, ok := snaps[pid]; ok {
				snap.BuildQueue = append(snap.BuildQueue, item)
			}
		}
	}()
	if err != nil {
		return err
	}

	res, err = p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "research_type", "enqueued_at", "complete_at", "duration_s",
			"cost_metal", "cost_crystal", "cost_deuterium"},
		Table: "research_queue",
	})
	if err != nil {
		return err
	}

	func() {
		defer res.Close()
		for res.Err == nil && res.Next() {
			var pid int
			var item game.ResearchItem
			var cost game.Resources

			if err = res.Scan(&pid, &item.Kind, &item.QueuedAt, &item.CompletionTime, &item.Duration,
				&cost.Metal, &cost.Crystal, &cost.Deuterium); err != nil {
				err = fmt.Errorf("unable to fetch research queue item: %v", err)
				return
			}
			item.Cost = cost
			if snap, ok := snaps[pid]; ok {
				snap.ResearchQueue = append(snap.ResearchQueue, item)
			}
		}
	}()
	if err != nil {
		return err
	}

	res, err = p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "ship_type", "count", "enqueued_at", "completion_time",
			"cost_metal", "cost_crystal", "cost_deuterium"},
		Table: "ship_build_queue",
	})
	if err != nil {
		return err
	}

	func() {
		defer res.Close()
		for res.Err == nil && res.Next() {
			var pid int
			var item game.ShipOrder
			var cost game.Resources

			if err = res.Scan(&pid, &item.Kind, &item.Quantity, &item.QueuedAt, &item.CompletionTime,
				&cost.Metal, &cost.Crystal, &cost.Deuterium); err != nil {
				err = fmt.Errorf("unable to fetch ship queue item: %v", err)
				return
			}
			item.Cost = cost
			if snap, ok := snaps[pid]; ok {
				snap.ShipQueue = append(snap.ShipQueue, item)
			}
		}
	}()

	return err
}

func (p PlanetProxy) fetchMissions(snaps map[int]*game.PlanetSnapshot) error {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"planet_id", "user_id",
			"origin_galaxy", "origin_system", "origin_position",
			"target_galaxy", "target_system", "target_position",
			"mission", "speed", "recalled", "departure_time", "arrival_time", "colonizing_until"},
		Table: "fleet_missions",
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Err != nil {
		return res.Err
	}

	for res.Next() {
		var pid int
		var movement game.FleetMovement
		var colonizing *time.Time

		if err = res.Scan(&pid, &movement.OwnerID,
			&movement.Origin.Galaxy, &movement.Origin.System, &movement.Origin.Planet,
			&movement.Target.Galaxy, &movement.Target.System, &movement.Target.Planet,
			&movement.Mission, &movement.Speed, &movement.Recalled,
			&movement.DepartureTime, &movement.ArrivalTime, &colonizing); err != nil {
			return fmt.Errorf("unable to fetch fleet mission: %v", err)
		}

		movement.ColonizingUntil = colonizing

		if snap, ok := snaps[pid]; ok {
			copied := movement
			snap.Movement = &copied
		}
	}

	return nil
}

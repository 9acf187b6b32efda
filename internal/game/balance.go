package game

import (
	"math"

	"github.com/spf13/viper"
)

// BuildingKinds :
// Canonical ordered list of the buildings handled by the
// simulation. The order is the one used when serializing
// levels for clients.
var BuildingKinds = []string{
	"metal_mine",
	"crystal_mine",
	"deuterium_synthesizer",
	"solar_plant",
	"fusion_reactor",
	"robot_factory",
	"shipyard",
	"research_lab",
	"metal_storage",
	"crystal_storage",
	"deuterium_tank",
}

// TechnologyKinds :
// Canonical ordered list of the researchable technologies.
var TechnologyKinds = []string{
	"energy",
	"laser",
	"ion",
	"hyperspace",
	"plasma",
	"computer",
}

// ShipKinds :
// Canonical ordered list of the buildable ships.
var ShipKinds = []string{
	"light_fighter",
	"heavy_fighter",
	"cruiser",
	"battleship",
	"bomber",
	"colony_ship",
}

// ShipStats :
// Combat and logistics characteristics of a ship kind.
type ShipStats struct {
	Attack float64 `json:"attack"`
	Shield float64 `json:"shield"`
	Speed  float64 `json:"speed"`
	Cargo  float64 `json:"cargo"`
}

// Rules :
// Regroups all the balance values driving the simulation.
// The defaults reproduce the tuning the server shipped with
// and every value can be overridden through the conf file
// or the environment.
//
// Costs are expressed in resources, durations in seconds
// and speeds in distance units per hour.
type Rules struct {
	// Buildings.
	BuildingCosts  map[string]Resources
	BuildingTimes  map[string]float64
	BuildingPrereq map[string]map[string]int
	CostGrowth     float64
	TimeGrowth     float64

	// Technologies.
	ResearchCosts      map[string]Resources
	ResearchTimes      map[string]float64
	ResearchPrereq     map[string]map[string]int
	ResearchCostGrowth float64
	ResearchTimeGrowth float64

	// Ships.
	ShipCosts map[string]Resources
	ShipTimes map[string]float64
	ShipBase  map[string]ShipStats

	// Research modifiers.
	LaserAttackPerLevel     float64
	IonShieldPerLevel       float64
	HyperSpeedPerLevel      float64
	HyperCargoPerLevel      float64
	PlasmaAttackPerLevel    float64
	PlasmaProductionBonus   Resources
	EnergyBonusPerTechLevel float64

	// Build time reductions.
	HyperspaceTimeFactor  float64
	RobotFactoryFactor    float64
	ResearchLabFactor     float64
	ShipyardTimeFactor    float64
	MinBuildTimeFactor    float64
	MinResearchTimeFactor float64

	// Production and energy.
	BaseProductionRates   ResourceProduction
	UseConfigRates        bool
	ProductionGrowth      float64
	EnergySolarBase       float64
	EnergySolarGrowth     float64
	EnergyFusionBase      float64
	EnergyFusionGrowth    float64
	FusionDeuteriumDraw   float64
	EnergyConsumption     map[string]float64
	EnergyConsumptionGrow float64
	DeficitFloor          float64
	DeficitNotifyBelow    float64
	DeficitCooldown       float64

	// Storage.
	StorageBase   float64
	StorageGrowth float64

	// Fleet.
	BaseMaxFleetSize  int
	FleetSizePerLevel int
	ColonizationTime  float64
	ShipQueueBase     int
	ShipQueuePerLevel int

	// Universe.
	GalaxyCount        int
	SystemsPerGalaxy   int
	PositionsPerSystem int
	MaxPlayers         int
	InitialPlanets     int

	// Starter flow.
	RequireStartChoice bool
	StarterPlanetName  string
	StarterResources   Resources
	PlanetSizeMin      int
	PlanetSizeMax      int
	PlanetTempMin      int
	PlanetTempMax      int

	// Marketplace.
	TradeFee       float64
	ExchangeRatios Resources
}

// DefaultRules :
// Returns the balance values the simulation ships with.
func DefaultRules() *Rules {
	return &Rules{
		BuildingCosts: map[string]Resources{
			"metal_mine":            {Metal: 60, Crystal: 15},
			"crystal_mine":          {Metal: 48, Crystal: 24},
			"deuterium_synthesizer": {Metal: 225, Crystal: 75},
			"solar_plant":           {Metal: 75, Crystal: 30},
			"fusion_reactor":        {Metal: 900, Crystal: 360, Deuterium: 180},
			"robot_factory":         {Metal: 400, Crystal: 120, Deuterium: 200},
			"shipyard":              {Metal: 400, Crystal: 200, Deuterium: 100},
			"research_lab":          {Metal: 200, Crystal: 400, Deuterium: 200},
			"metal_storage":         {Metal: 1000},
			"crystal_storage":       {Metal: 1000, Crystal: 500},
			"deuterium_tank":        {Metal: 1000, Crystal: 1000},
		},
		BuildingTimes: map[string]float64{
			"metal_mine":            60,
			"crystal_mine":          80,
			"deuterium_synthesizer": 100,
			"solar_plant":           50,
			"fusion_reactor":        500,
			"robot_factory":         300,
			"shipyard":              400,
			"research_lab":          240,
			"metal_storage":         120,
			"crystal_storage":       120,
			"deuterium_tank":        120,
		},
		BuildingPrereq: map[string]map[string]int{
			"shipyard": {"robot_factory": 2},
		},
		CostGrowth: 1.5,
		TimeGrowth: 1.2,

		ResearchCosts: map[string]Resources{
			"energy":     {Metal: 100, Crystal: 50},
			"laser":      {Metal: 200, Crystal: 100},
			"ion":        {Metal: 1000, Crystal: 300, Deuterium: 100},
			"hyperspace": {Metal: 2000, Crystal: 1500, Deuterium: 500},
			"plasma":     {Metal: 4000, Crystal: 2000, Deuterium: 1000},
			"computer":   {Metal: 500, Crystal: 250},
		},
		ResearchTimes: map[string]float64{
			"energy":     120,
			"laser":      180,
			"ion":        300,
			"hyperspace": 600,
			"plasma":     900,
			"computer":   240,
		},
		ResearchPrereq: map[string]map[string]int{
			"ion":        {"laser": 4},
			"hyperspace": {"energy": 6, "laser": 6},
			"plasma":     {"energy": 8, "ion": 5},
		},
		ResearchCostGrowth: 1.6,
		ResearchTimeGrowth: 1.25,

		ShipCosts: map[string]Resources{
			"light_fighter": {Metal: 300, Crystal: 150},
			"heavy_fighter": {Metal: 600, Crystal: 400},
			"cruiser":       {Metal: 2000, Crystal: 1500, Deuterium: 200},
			"battleship":    {Metal: 6000, Crystal: 4000},
			"bomber":        {Metal: 5000, Crystal: 3000, Deuterium: 1000},
			"colony_ship":   {Metal: 300, Crystal: 150},
		},
		ShipTimes: map[string]float64{
			"light_fighter": 60,
			"heavy_fighter": 120,
			"cruiser":       300,
			"battleship":    600,
			"bomber":        900,
			"colony_ship":   1,
		},
		// The colony ship has no combat value and does not
		// constrain the fleet speed, hence its absence here.
		ShipBase: map[string]ShipStats{
			"light_fighter": {Attack: 50, Shield: 10, Speed: 12500, Cargo: 50},
			"heavy_fighter": {Attack: 150, Shield: 25, Speed: 10000, Cargo: 100},
			"cruiser":       {Attack: 400, Shield: 50, Speed: 15000, Cargo: 800},
			"battleship":    {Attack: 1000, Shield: 200, Speed: 10000, Cargo: 1500},
			"bomber":        {Attack: 500, Shield: 500, Speed: 5000, Cargo: 500},
		},

		LaserAttackPerLevel:     0.01,
		IonShieldPerLevel:       0.01,
		HyperSpeedPerLevel:      0.02,
		HyperCargoPerLevel:      0.02,
		PlasmaAttackPerLevel:    0.005,
		PlasmaProductionBonus:   Resources{Metal: 0.01, Crystal: 0.006, Deuterium: 0.02},
		EnergyBonusPerTechLevel: 0.02,

		HyperspaceTimeFactor:  0.02,
		RobotFactoryFactor:    0.05,
		ResearchLabFactor:     0.05,
		ShipyardTimeFactor:    0.05,
		MinBuildTimeFactor:    0.5,
		MinResearchTimeFactor: 0.5,

		BaseProductionRates:   ResourceProduction{Metal: 30, Crystal: 20, Deuterium: 10},
		UseConfigRates:        false,
		ProductionGrowth:      1.1,
		EnergySolarBase:       20,
		EnergySolarGrowth:     1.0,
		EnergyFusionBase:      30,
		EnergyFusionGrowth:    1.05,
		FusionDeuteriumDraw:   10,
		EnergyConsumption: map[string]float64{
			"metal_mine":            3,
			"crystal_mine":          2,
			"deuterium_synthesizer": 2,
		},
		EnergyConsumptionGrow: 1.0,
		DeficitFloor:          0.0,
		DeficitNotifyBelow:    0.5,
		DeficitCooldown:       300,

		StorageBase:   10000,
		StorageGrowth: 2.0,

		BaseMaxFleetSize:  50,
		FleetSizePerLevel: 10,
		ColonizationTime:  1,
		ShipQueueBase:     5,
		ShipQueuePerLevel: 2,

		GalaxyCount:        9,
		SystemsPerGalaxy:   499,
		PositionsPerSystem: 15,
		MaxPlayers:         512,
		InitialPlanets:     1024,

		RequireStartChoice: true,
		StarterPlanetName:  "Homeworld",
		StarterResources:   Resources{Metal: 500, Crystal: 300, Deuterium: 100},
		PlanetSizeMin:      140,
		PlanetSizeMax:      200,
		PlanetTempMin:      -40,
		PlanetTempMax:      60,

		TradeFee:       0.0,
		ExchangeRatios: Resources{Metal: 1.0, Crystal: 1.5, Deuterium: 3.0},
	}
}

// ParseRules :
// Builds the balance values used by the server, overriding
// the defaults with anything set in the configuration file
// or the environment.
//
// Returns the parsed balance values.
func ParseRules() *Rules {
	rules := DefaultRules()

	overrideFloat := func(key string, out *float64) {
		if viper.IsSet(key) {
			*out = viper.GetFloat64(key)
		}
	}
	overrideInt := func(key string, out *int) {
		if viper.IsSet(key) {
			*out = viper.GetInt(key)
		}
	}
	overrideBool := func(key string, out *bool) {
		if viper.IsSet(key) {
			*out = viper.GetBool(key)
		}
	}
	overrideString := func(key string, out *string) {
		if viper.IsSet(key) {
			*out = viper.GetString(key)
		}
	}

	overrideFloat("Balance.CostGrowth", &rules.CostGrowth)
	overrideFloat("Balance.TimeGrowth", &rules.TimeGrowth)
	overrideFloat("Balance.ResearchCostGrowth", &rules.ResearchCostGrowth)
	overrideFloat("Balance.ResearchTimeGrowth", &rules.ResearchTimeGrowth)

	overrideFloat("Balance.HyperspaceTimeFactor", &rules.HyperspaceTimeFactor)
	overrideFloat("Balance.RobotFactoryFactor", &rules.RobotFactoryFactor)
	overrideFloat("Balance.ResearchLabFactor", &rules.ResearchLabFactor)
	overrideFloat("Balance.ShipyardTimeFactor", &rules.ShipyardTimeFactor)
	overrideFloat("Balance.MinBuildTimeFactor", &rules.MinBuildTimeFactor)
	overrideFloat("Balance.MinResearchTimeFactor", &rules.MinResearchTimeFactor)

	overrideBool("Balance.UseConfigProductionRates", &rules.UseConfigRates)
	overrideFloat("Balance.ProductionGrowth", &rules.ProductionGrowth)
	overrideFloat("Balance.MetalRate", &rules.BaseProductionRates.Metal)
	overrideFloat("Balance.CrystalRate", &rules.BaseProductionRates.Crystal)
	overrideFloat("Balance.DeuteriumRate", &rules.BaseProductionRates.Deuterium)

	overrideFloat("Balance.EnergySolarBase", &rules.EnergySolarBase)
	overrideFloat("Balance.EnergySolarGrowth", &rules.EnergySolarGrowth)
	overrideFloat("Balance.EnergyFusionBase", &rules.EnergyFusionBase)
	overrideFloat("Balance.EnergyFusionGrowth", &rules.EnergyFusionGrowth)
	overrideFloat("Balance.FusionDeuteriumDraw", &rules.FusionDeuteriumDraw)
	overrideFloat("Balance.EnergyConsumptionGrowth", &rules.EnergyConsumptionGrow)
	overrideFloat("Balance.EnergyTechBonus", &rules.EnergyBonusPerTechLevel)
	overrideFloat("Balance.DeficitFloor", &rules.DeficitFloor)
	overrideFloat("Balance.DeficitNotifyBelow", &rules.DeficitNotifyBelow)
	overrideFloat("Balance.DeficitCooldown", &rules.DeficitCooldown)

	overrideFloat("Balance.StorageBase", &rules.StorageBase)
	overrideFloat("Balance.StorageGrowth", &rules.StorageGrowth)

	overrideInt("Balance.BaseMaxFleetSize", &rules.BaseMaxFleetSize)
	overrideInt("Balance.FleetSizePerComputerLevel", &rules.FleetSizePerLevel)
	overrideFloat("Balance.ColonizationTime", &rules.ColonizationTime)
	overrideInt("Balance.ShipQueueBase", &rules.ShipQueueBase)
	overrideInt("Balance.ShipQueuePerLevel", &rules.ShipQueuePerLevel)

	overrideInt("Universe.GalaxyCount", &rules.GalaxyCount)
	overrideInt("Universe.SystemsPerGalaxy", &rules.SystemsPerGalaxy)
	overrideInt("Universe.PositionsPerSystem", &rules.PositionsPerSystem)
	overrideInt("Universe.MaxPlayers", &rules.MaxPlayers)
	rules.InitialPlanets = rules.MaxPlayers * 2
	overrideInt("Universe.InitialPlanets", &rules.InitialPlanets)

	overrideBool("Starter.RequireStartChoice", &rules.RequireStartChoice)
	overrideString("Starter.PlanetName", &rules.StarterPlanetName)
	overrideFloat("Starter.Metal", &rules.StarterResources.Metal)
	overrideFloat("Starter.Crystal", &rules.StarterResources.Crystal)
	overrideFloat("Starter.Deuterium", &rules.StarterResources.Deuterium)
	overrideInt("Starter.PlanetSizeMin", &rules.PlanetSizeMin)
	overrideInt("Starter.PlanetSizeMax", &rules.PlanetSizeMax)
	overrideInt("Starter.PlanetTempMin", &rules.PlanetTempMin)
	overrideInt("Starter.PlanetTempMax", &rules.PlanetTempMax)

	overrideFloat("Market.TradeFee", &rules.TradeFee)
	overrideFloat("Market.MetalRatio", &rules.ExchangeRatios.Metal)
	overrideFloat("Market.CrystalRatio", &rules.ExchangeRatios.Crystal)
	overrideFloat("Market.DeuteriumRatio", &rules.ExchangeRatios.Deuterium)

	return rules
}

// KnownBuilding :
// Returns `true` in case the input identifier matches one
// of the handled buildings.
func (r *Rules) KnownBuilding(kind string) bool {
	_, ok := r.BuildingCosts[kind]
	return ok
}

// KnownTechnology :
// Returns `true` in case the input identifier matches one
// of the handled technologies.
func (r *Rules) KnownTechnology(kind string) bool {
	_, ok := r.ResearchCosts[kind]
	return ok
}

// KnownShip :
// Returns `true` in case the input identifier matches one
// of the handled ships.
func (r *Rules) KnownShip(kind string) bool {
	_, ok := r.ShipCosts[kind]
	return ok
}

// BuildingCost :
// Computes the cost to upgrade a building from the input
// level to the next one.
func (r *Rules) BuildingCost(kind string, level int) Resources {
	base := r.BuildingCosts[kind]
	return base.Scale(math.Pow(r.CostGrowth, float64(level)))
}

// BuildingDuration :
// Computes the time in seconds needed to upgrade a building
// from the input level to the next one. The hyperspace
// technology and the robot factory both reduce the duration,
// down to a configured floor.
func (r *Rules) BuildingDuration(kind string, level int, hyperspace int, robotFactory int) float64 {
	base := r.BuildingTimes[kind] * math.Pow(r.TimeGrowth, float64(level))

	reduction := math.Max(0, 1.0-r.HyperspaceTimeFactor*float64(hyperspace)) *
		math.Max(0, 1.0-r.RobotFactoryFactor*float64(robotFactory))
	reduction = math.Max(r.MinBuildTimeFactor, reduction)

	return math.Max(1, base*reduction)
}

// BuildingAllowed :
// Checks the prerequisites to start the construction of
// the input building.
//
// Returns `true` when all prerequisites are met.
func (r *Rules) BuildingAllowed(kind string, buildings *Buildings) bool {
	for req, min := range r.BuildingPrereq[kind] {
		if buildings.Level(req) < min {
			return false
		}
	}
	return true
}

// BuildingRequiredBy :
// Returns the buildings whose prerequisites would no longer
// hold if the input building dropped to the input level.
// Used to forbid demolitions that would strand dependent
// infrastructure.
func (r *Rules) BuildingRequiredBy(kind string, newLevel int, buildings *Buildings) []string {
	out := make([]string, 0)

	for _, candidate := range BuildingKinds {
		if buildings.Level(candidate) <= 0 {
			continue
		}
		min, ok := r.BuildingPrereq[candidate][kind]
		if ok && newLevel < min {
			out = append(out, candidate)
		}
	}

	return out
}

// ResearchCost :
// Computes the cost to upgrade a technology from the input
// level to the next one.
func (r *Rules) ResearchCost(kind string, level int) Resources {
	base := r.ResearchCosts[kind]
	return base.Scale(math.Pow(r.ResearchCostGrowth, float64(level)))
}

// ResearchDuration :
// Computes the time in seconds needed to upgrade a tech
// from the input level to the next one. The research lab
// reduces the duration down to a configured floor.
func (r *Rules) ResearchDuration(kind string, level int, researchLab int) float64 {
	base := r.ResearchTimes[kind] * math.Pow(r.ResearchTimeGrowth, float64(level))

	reduction := math.Max(r.MinResearchTimeFactor, 1.0-r.ResearchLabFactor*float64(researchLab))

	return math.Max(1, base*reduction)
}

// ResearchAllowed :
// Checks the prerequisites to start the research of the
// input technology.
func (r *Rules) ResearchAllowed(kind string, research *Research) bool {
	for req, min := range r.ResearchPrereq[kind] {
		if research.Level(req) < min {
			return false
		}
	}
	return true
}

// ShipCost :
// Computes the cost of a batch of ships of the input kind.
func (r *Rules) ShipCost(kind string, quantity int) Resources {
	base := r.ShipCosts[kind]
	return base.Scale(float64(quantity))
}

// ShipBatchDuration :
// Computes the time in seconds needed to produce a batch
// of ships. The hyperspace technology, the shipyard and
// the robot factory all reduce the duration, down to a
// configured floor.
func (r *Rules) ShipBatchDuration(kind string, quantity int, hyperspace int, shipyard int, robotFactory int) float64 {
	base := r.ShipTimes[kind] * float64(quantity)

	reduction := math.Max(0, 1.0-r.HyperspaceTimeFactor*float64(hyperspace)) *
		math.Max(0, 1.0-r.ShipyardTimeFactor*float64(shipyard)) *
		math.Max(0, 1.0-r.RobotFactoryFactor*float64(robotFactory))
	reduction = math.Max(r.MinBuildTimeFactor, reduction)

	return math.Max(1, base*reduction)
}

// ShipQueueLimit :
// Returns the maximum number of batches the shipyard of
// the input level accepts.
func (r *Rules) ShipQueueLimit(shipyard int) int {
	if shipyard < 0 {
		shipyard = 0
	}
	return r.ShipQueueBase + r.ShipQueuePerLevel*shipyard
}

// FleetCap :
// Returns the maximum number of ships a player can own on
// a planet, queued batches included.
func (r *Rules) FleetCap(computer int) int {
	if computer < 0 {
		computer = 0
	}
	return r.BaseMaxFleetSize + r.FleetSizePerLevel*computer
}

// DerivedShipStats :
// Computes the effective stats of all ship kinds for the
// input technologies. Laser and plasma increase attack,
// ion increases shields and hyperspace increases speed and
// cargo capacity.
func (r *Rules) DerivedShipStats(research *Research) map[string]ShipStats {
	laser := float64(research.Level("laser"))
	ion := float64(research.Level("ion"))
	hyper := float64(research.Level("hyperspace"))
	plasma := float64(research.Level("plasma"))

	out := make(map[string]ShipStats, len(r.ShipBase))
	for kind, base := range r.ShipBase {
		out[kind] = ShipStats{
			Attack: base.Attack * (1.0 + r.LaserAttackPerLevel*laser + r.PlasmaAttackPerLevel*plasma),
			Shield: base.Shield * (1.0 + r.IonShieldPerLevel*ion),
			Speed:  base.Speed * (1.0 + r.HyperSpeedPerLevel*hyper),
			Cargo:  base.Cargo * (1.0 + r.HyperCargoPerLevel*hyper),
		}
	}

	return out
}

// StorageCapacity :
// Returns the maximum stockpile of one resource given the
// level of the matching storage building.
func (r *Rules) StorageCapacity(storageLevel int) float64 {
	if storageLevel < 0 {
		storageLevel = 0
	}
	return r.StorageBase * math.Pow(r.StorageGrowth, float64(storageLevel))
}

// Distance :
// Computes the distance in abstract units between the two
// input positions, linearized over galaxies and systems.
func (r *Rules) Distance(from Position, to Position) int {
	dg := abs(to.Galaxy - from.Galaxy)
	ds := abs(to.System - from.System)
	dp := abs(to.Planet - from.Planet)

	return dg*r.SystemsPerGalaxy*r.PositionsPerSystem + ds*r.PositionsPerSystem + dp
}

// ValidCoordinates :
// Returns `true` when the input position lies within the
// bounds of the universe.
func (r *Rules) ValidCoordinates(pos Position) bool {
	return pos.Galaxy >= 1 && pos.Galaxy <= r.GalaxyCount &&
		pos.System >= 1 && pos.System <= r.SystemsPerGalaxy &&
		pos.Planet >= 1 && pos.Planet <= r.PositionsPerSystem
}

// ExchangeRatio :
// Returns the relative value of the input resource on the
// marketplace, `0` for an unknown resource.
func (r *Rules) ExchangeRatio(resource string) float64 {
	switch resource {
	case "metal":
		return r.ExchangeRatios.Metal
	case "crystal":
		return r.ExchangeRatios.Crystal
	case "deuterium":
		return r.ExchangeRatios.Deuterium
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

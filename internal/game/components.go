package game

import (
	"time"
)

// Player :
// Identifies the owner of a planet entity. Several entities
// may reference the same user in case the player colonized
// additional worlds.
//
// The `UserID` defines the identifier of the account owning
// this entity.
//
// The `Name` defines the display name of the player.
//
// The `LastActive` tracks the last moment the player sent
// a mutating request; stale players are garbage collected
// by the cleanup job.
type Player struct {
	UserID     int       `json:"user_id"`
	Name       string    `json:"name"`
	LastActive time.Time `json:"last_active"`
}

// Position :
// Defines the location of an entity in the universe through
// its galaxy, system and planet slot.
type Position struct {
	Galaxy int `json:"galaxy"`
	System int `json:"system"`
	Planet int `json:"planet"`
}

// SameAs :
// Returns `true` in case both positions reference the exact
// same slot of the universe.
func (p Position) SameAs(rhs Position) bool {
	return p.Galaxy == rhs.Galaxy && p.System == rhs.System && p.Planet == rhs.Planet
}

// Resources :
// Defines the stockpile of a planet. The amounts are kept
// as floating point values so that the accrual of fractions
// of a unit over consecutive ticks is not lost; clients are
// given truncated values.
type Resources struct {
	Metal     float64 `json:"metal"`
	Crystal   float64 `json:"crystal"`
	Deuterium float64 `json:"deuterium"`
}

// Sub :
// Decrements the stockpile by the input amount. The caller
// is responsible for checking affordability beforehand.
func (r *Resources) Sub(cost Resources) {
	r.Metal -= cost.Metal
	r.Crystal -= cost.Crystal
	r.Deuterium -= cost.Deuterium
}

// Add :
// Increments the stockpile by the input amount.
func (r *Resources) Add(gain Resources) {
	r.Metal += gain.Metal
	r.Crystal += gain.Crystal
	r.Deuterium += gain.Deuterium
}

// CanAfford :
// Returns `true` in case the stockpile covers the input
// cost for all three resources.
func (r Resources) CanAfford(cost Resources) bool {
	return r.Metal >= cost.Metal && r.Crystal >= cost.Crystal && r.Deuterium >= cost.Deuterium
}

// Scale :
// Returns a copy of the amount multiplied by the input
// factor. Typically used to compute refunds.
func (r Resources) Scale(factor float64) Resources {
	return Resources{
		Metal:     r.Metal * factor,
		Crystal:   r.Crystal * factor,
		Deuterium: r.Deuterium * factor,
	}
}

// ResourceProduction :
// Defines the base hourly production rates of a planet
// before any building or technology modifier is applied,
// along with the moment of the last accrual. Absolute
// timestamps rather than countdowns make offline catch-up
// a single accrual over the elapsed interval.
type ResourceProduction struct {
	Metal      float64   `json:"metal"`
	Crystal    float64   `json:"crystal"`
	Deuterium  float64   `json:"deuterium"`
	LastUpdate time.Time `json:"last_update"`
}

// Buildings :
// Defines the infrastructure built on a planet as a map
// from the building identifier to its current level. Only
// identifiers listed in the balance rules are meaningful;
// a missing key is equivalent to level `0`.
type Buildings struct {
	Levels map[string]int `json:"levels"`
}

// NewBuildings :
// Creates an empty infrastructure description.
func NewBuildings() *Buildings {
	return &Buildings{
		Levels: make(map[string]int),
	}
}

// Level :
// Returns the level of the input building, with `0` for
// any building never constructed.
func (b *Buildings) Level(kind string) int {
	if b == nil || b.Levels == nil {
		return 0
	}
	return b.Levels[kind]
}

// BuildItem :
// Describes a single pending construction on a planet.
//
// The `Kind` defines the identifier of the building that
// is being upgraded.
//
// The `CompletionTime` defines the moment at which the
// upgrade finishes and the level is granted.
//
// The `Cost` keeps the resources that were deducted when
// the upgrade was enqueued, so that cancellation can give
// a refund proportional to it.
//
// The `QueuedAt` and `Duration` describe when the upgrade
// was requested and how long it was expected to take.
type BuildItem struct {
	Kind           string    `json:"type"`
	CompletionTime time.Time `json:"completion_time"`
	Cost           Resources `json:"cost"`
	QueuedAt       time.Time `json:"queued_at"`
	Duration       float64   `json:"duration"`
}

// BuildQueue :
// Holds the pending constructions of a planet, ordered by
// completion time.
type BuildQueue struct {
	Items []BuildItem `json:"items"`
}

// ShipOrder :
// Describes a batch of ships being built by the shipyard
// of a planet.
type ShipOrder struct {
	Kind           string    `json:"type"`
	Quantity       int       `json:"quantity"`
	CompletionTime time.Time `json:"completion_time"`
	Cost           Resources `json:"cost"`
	QueuedAt       time.Time `json:"queued_at"`
}

// ShipBuildQueue :
// Holds the pending ship batches of a planet, ordered by
// completion time.
type ShipBuildQueue struct {
	Items []ShipOrder `json:"items"`
}

// Fleet :
// Defines the ships stationed on a planet as a map from
// the ship identifier to the owned count.
type Fleet struct {
	Ships map[string]int `json:"ships"`
}

// NewFleet :
// Creates an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{
		Ships: make(map[string]int),
	}
}

// Count :
// Returns the number of ships of the input kind stationed
// in this fleet.
func (f *Fleet) Count(kind string) int {
	if f == nil || f.Ships == nil {
		return 0
	}
	return f.Ships[kind]
}

// Total :
// Returns the total number of ships stationed in this
// fleet, all kinds included.
func (f *Fleet) Total() int {
	if f == nil {
		return 0
	}

	total := 0
	for _, count := range f.Ships {
		total += count
	}

	return total
}

// FleetMovement :
// Describes an active mission of the fleet of a planet. A
// planet carries at most one such component at a time.
//
// The `Origin` and `Target` define the endpoints of the
// mission while `DepartureTime` and `ArrivalTime` bound
// its current phase.
//
// The `Speed` defines the effective travel speed used to
// compute the trip, in distance units per hour.
//
// The `Mission` defines the intent of the trip, one of
// `transport`, `attack`, `espionage`, `colonize`.
//
// The `OwnerID` defines the user owning the moving fleet.
//
// The `Recalled` marks a mission that was turned around
// before reaching its target.
//
// The `ColonizingUntil` is only set for colonization trips
// once the fleet reached its target: the mission completes
// when this second deadline passes.
type FleetMovement struct {
	Origin          Position   `json:"origin"`
	Target          Position   `json:"target"`
	DepartureTime   time.Time  `json:"departure_time"`
	ArrivalTime     time.Time  `json:"arrival_time"`
	Speed           float64    `json:"speed"`
	Mission         string     `json:"mission"`
	OwnerID         int        `json:"owner_id"`
	Recalled        bool       `json:"recalled"`
	ColonizingUntil *time.Time `json:"colonizing_until,omitempty"`
}

// Research :
// Defines the technologies of a player as a map from the
// technology identifier to its current level. The component
// is attached to the player's home planet entity but the
// levels apply account-wide.
type Research struct {
	Levels map[string]int `json:"levels"`
}

// NewResearch :
// Creates an empty technology description.
func NewResearch() *Research {
	return &Research{
		Levels: make(map[string]int),
	}
}

// Level :
// Returns the level of the input technology, with `0` for
// any technology never researched.
func (r *Research) Level(kind string) int {
	if r == nil || r.Levels == nil {
		return 0
	}
	return r.Levels[kind]
}

// ResearchItem :
// Describes a single pending technology upgrade.
type ResearchItem struct {
	Kind           string    `json:"type"`
	CompletionTime time.Time `json:"completion_time"`
	Cost           Resources `json:"cost"`
	QueuedAt       time.Time `json:"queued_at"`
	Duration       float64   `json:"duration"`
}

// ResearchQueue :
// Holds the pending technology upgrades of a player.
type ResearchQueue struct {
	Items []ResearchItem `json:"items"`
}

// Planet :
// Defines the physical characteristics of a planet. The
// size influences production while the temperature only
// affects deuterium synthesis.
type Planet struct {
	Name        string `json:"name"`
	Temperature int    `json:"temperature"`
	Size        int    `json:"size"`
}

// Battle :
// Describes a combat scheduled at a given location. The
// ship counts are snapshotted when the battle is created
// so that later fleet changes do not alter the engagement.
//
// The `Outcome` is populated by the resolution and kept
// on the component so that the full report can be sent to
// both parties.
type Battle struct {
	AttackerID    int                    `json:"attacker_id"`
	DefenderID    int                    `json:"defender_id"`
	AttackerShips map[string]int         `json:"attacker_ships"`
	DefenderShips map[string]int         `json:"defender_ships"`
	Location      Position               `json:"location"`
	ScheduledTime time.Time              `json:"scheduled_time"`
	Resolved      bool                   `json:"resolved"`
	Outcome       map[string]interface{} `json:"outcome,omitempty"`
}

// copyShips :
// Returns a copy of the input ship counts, skipping the
// entries with a non-positive count.
func copyShips(ships map[string]int) map[string]int {
	out := make(map[string]int, len(ships))
	for kind, count := range ships {
		if count > 0 {
			out[kind] = count
		}
	}
	return out
}

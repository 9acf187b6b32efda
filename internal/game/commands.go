package game

import (
	"strconv"
	"sync"
)

// Command types accepted by the simulation. Requests are
// converted to one of those by the HTTP layer and applied
// at the beginning of the next tick.
const (
	CmdBuildBuilding    = "build_building"
	CmdDemolishBuilding = "demolish_building"
	CmdCancelBuild      = "cancel_build_queue"
	CmdUpdateActivity   = "update_player_activity"
	CmdStartResearch    = "start_research"
	CmdBuildShips       = "build_ships"
	CmdColonize         = "colonize"
	CmdFleetDispatch    = "fleet_dispatch"
	CmdFleetRecall      = "fleet_recall"
	CmdTradeCreate      = "trade_create_offer"
	CmdTradeAccept      = "trade_accept_offer"
)

// Command :
// Normalized representation of a player request. A single
// structure covers all the command types: only the fields
// relevant to the `Type` are meaningful.
//
// The `Index`, `FleetID` and `Speed` use pointers so that
// an absent value can be told apart from a zero one.
type Command struct {
	Type   string `json:"type"`
	UserID int    `json:"user_id"`

	BuildingKind string `json:"building_type,omitempty"`
	Index        *int   `json:"index,omitempty"`

	ResearchKind string `json:"research_type,omitempty"`

	ShipKind string `json:"ship_type,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	Galaxy     int            `json:"galaxy,omitempty"`
	System     int            `json:"system,omitempty"`
	Planet     int            `json:"position,omitempty"`
	PlanetName string         `json:"planet_name,omitempty"`
	Mission    string         `json:"mission,omitempty"`
	Speed      *float64       `json:"speed,omitempty"`
	Ships      map[string]int `json:"ships,omitempty"`
	FleetID    *int           `json:"fleet_id,omitempty"`

	OfferedResource   string `json:"offered_resource,omitempty"`
	OfferedAmount     int    `json:"offered_amount,omitempty"`
	RequestedResource string `json:"requested_resource,omitempty"`
	RequestedAmount   int    `json:"requested_amount,omitempty"`
	OfferID           int    `json:"offer_id,omitempty"`
}

// CommandQueue :
// Thread safe FIFO buffering the commands received by the
// HTTP layer until the simulation drains them at the start
// of the next tick.
type CommandQueue struct {
	lock     sync.Mutex
	commands []Command
}

// NewCommandQueue :
// Creates an empty command queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		commands: make([]Command, 0),
	}
}

// Push :
// Appends a command at the end of the queue.
func (q *CommandQueue) Push(cmd Command) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.commands = append(q.commands, cmd)
}

// Drain :
// Removes and returns all the buffered commands in their
// arrival order.
func (q *CommandQueue) Drain() []Command {
	q.lock.Lock()
	defer q.lock.Unlock()

	out := q.commands
	q.commands = make([]Command, 0)

	return out
}

// Len :
// Returns the number of buffered commands.
func (q *CommandQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.commands)
}

// asInt :
// Best-effort conversion of a decoded JSON value to an
// integer. Invalid values yield the provided default.
func asInt(value interface{}, def int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return parsed
	}
	return def
}

// asCoord :
// Conversion of a decoded JSON value to a coordinate. A
// missing, invalid or zero value yields the default `1` so
// that partially specified coordinates stay within the
// universe.
func asCoord(value interface{}, def int) int {
	v := asInt(value, def)
	if v == 0 {
		return def
	}
	return v
}

// asString :
// Conversion of a decoded JSON value to a string, with a
// default for missing or empty values.
func asString(value interface{}, def string) string {
	if v, ok := value.(string); ok && len(v) > 0 {
		return v
	}
	return def
}

// asOptionalInt :
// Conversion of a decoded JSON value to an optional int,
// `nil` when missing or invalid.
func asOptionalInt(value interface{}) *int {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case int:
		return &v
	case int64:
		out := int(v)
		return &out
	case float64:
		out := int(v)
		return &out
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return &parsed
	}

	return nil
}

// ParseCommand :
// Normalizes a raw decoded payload into a command. Unknown
// fields are ignored and the values are consolidated the
// same way whichever route produced the payload: missing
// coordinates default to `1`, ship quantities to `1` and
// the mission to `transfer`.
func ParseCommand(raw map[string]interface{}) Command {
	cmd := Command{
		Type:   asString(raw["type"], ""),
		UserID: asInt(raw["user_id"], 0),
	}

	switch cmd.Type {
	case CmdBuildBuilding, CmdDemolishBuilding:
		cmd.BuildingKind = asString(raw["building_type"], "")
	case CmdCancelBuild:
		cmd.Index = asOptionalInt(raw["index"])
	case CmdStartResearch:
		cmd.ResearchKind = asString(raw["research_type"], "")
	case CmdBuildShips:
		cmd.ShipKind = asString(raw["ship_type"], "")
		cmd.Quantity = asInt(raw["quantity"], 1)
		if cmd.Quantity < 1 {
			cmd.Quantity = 1
		}
	case CmdColonize:
		cmd.Galaxy = asCoord(raw["galaxy"], 1)
		cmd.System = asCoord(raw["system"], 1)
		cmd.Planet = asCoord(raw["position"], 1)
		cmd.PlanetName = asString(raw["planet_name"], "Colony")
	case CmdFleetDispatch:
		cmd.Galaxy = asCoord(raw["galaxy"], 1)
		cmd.System = asCoord(raw["system"], 1)
		cmd.Planet = asCoord(raw["position"], 1)
		cmd.Mission = asString(raw["mission"], "transfer")

		if speed, ok := raw["speed"].(float64); ok {
			cmd.Speed = &speed
		}

		if ships, ok := raw["ships"].(map[string]interface{}); ok {
			cmd.Ships = make(map[string]int, len(ships))
			for kind, count := range ships {
				cmd.Ships[kind] = asInt(count, 0)
			}
		}
	case CmdFleetRecall:
		cmd.FleetID = asOptionalInt(raw["fleet_id"])
	case CmdTradeCreate:
		cmd.OfferedResource = asString(raw["offered_resource"], "")
		cmd.OfferedAmount = asInt(raw["offered_amount"], 0)
		cmd.RequestedResource = asString(raw["requested_resource"], "")
		cmd.RequestedAmount = asInt(raw["requested_amount"], 0)
	case CmdTradeAccept:
		cmd.OfferID = asInt(raw["offer_id"], -1)
	}

	return cmd
}

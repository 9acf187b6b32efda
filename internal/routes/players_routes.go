package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"stellar_server/internal/game"
	"stellar_server/pkg/logger"
)

// Fleet missions accepted by the dispatch route.
var knownMissions = map[string]bool{
	"transfer":  true,
	"attack":    true,
	"espionage": true,
	"colonize":  true,
}

// playerRoutes :
// Dispatches all the routes scoped to a single player. The
// player identifier is the first path element so a single
// handler covers the whole sub-tree; every route requires a
// token matching the targeted player.
//
// Returns the handler to execute for this route.
func (s *Server) playerRoutes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		elems, err := extractRouteElems(r, "/player/")
		if err != nil || len(elems) == 0 {
			answerFailure(w, http.StatusNotFound, "no such player resource")
			return
		}

		userID, err := strconv.Atoi(elems[0])
		if err != nil || userID <= 0 {
			answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid player identifier \"%s\"", elems[0]))
			return
		}

		if !s.auth.requireUser(w, r, userID) {
			return
		}

		rest := elems[1:]

		switch {
		case len(rest) == 0 && r.Method == "GET":
			s.servePlayerData(w, userID)
		case len(rest) == 1 && rest[0] == "build" && r.Method == "POST":
			s.serveBuild(w, r, userID)
		case len(rest) == 2 && rest[0] == "buildings" && r.Method == "DELETE":
			s.serveDemolish(w, userID, rest[1])
		case len(rest) == 2 && rest[0] == "build-queue" && r.Method == "DELETE":
			s.serveCancelBuild(w, userID, rest[1])
		case len(rest) == 1 && rest[0] == "research" && r.Method == "GET":
			s.serveResearch(w, userID)
		case len(rest) == 1 && rest[0] == "research" && r.Method == "POST":
			s.serveStartResearch(w, r, userID)
		case len(rest) == 1 && rest[0] == "fleet" && r.Method == "GET":
			s.serveFleet(w, userID)
		case len(rest) == 1 && rest[0] == "build-ships" && r.Method == "POST":
			s.serveBuildShips(w, r, userID)
		case len(rest) == 2 && rest[0] == "fleet" && rest[1] == "dispatch" && r.Method == "POST":
			s.serveFleetDispatch(w, r, userID)
		case len(rest) == 3 && rest[0] == "fleet" && rest[2] == "recall" && r.Method == "POST":
			s.serveFleetRecall(w, userID, rest[1])
		case len(rest) == 1 && rest[0] == "planets" && r.Method == "GET":
			s.servePlanets(w, userID)
		case len(rest) == 3 && rest[0] == "planets" && rest[2] == "select" && r.Method == "POST":
			s.serveSelectPlanet(w, userID, rest[1])
		case len(rest) == 1 && rest[0] == "choose-start" && r.Method == "POST":
			s.serveChooseStart(w, r, userID)
		case len(rest) >= 1 && rest[0] == "battle-reports" && r.Method == "GET":
			s.serveReports(w, r, userID, game.BattleReportKind, rest[1:])
		case len(rest) >= 1 && rest[0] == "espionage-reports" && r.Method == "GET":
			s.serveReports(w, r, userID, game.EspionageReportKind, rest[1:])
		case len(rest) == 2 && rest[0] == "trade" && rest[1] == "history" && r.Method == "GET":
			s.serveTradeHistory(w, r, userID)
		case len(rest) == 1 && rest[0] == "notifications" && r.Method == "GET":
			s.serveNotifications(w, r, userID)
		default:
			answerFailure(w, http.StatusNotFound, "no such player resource")
		}
	}
}

// enqueueFor :
// Converts the input payload into a command of the input
// user and buffers it for the next tick, together with an
// activity refresh so that acting players are never swept
// by the inactivity cleanup.
func (s *Server) enqueueFor(userID int, raw map[string]interface{}) {
	raw["user_id"] = userID
	s.world.Enqueue(game.ParseCommand(raw))
	s.world.Enqueue(game.Command{Type: game.CmdUpdateActivity, UserID: userID})
}

// servePlayerData :
// Answers the full snapshot of the active planet of the
// input user. The simulation is settled first so that any
// overdue completion is observed by the read.
func (s *Server) servePlayerData(w http.ResponseWriter, userID int) {
	s.world.Settle()

	payload := s.world.PlayerData(userID)
	if payload == nil {
		answerFailure(w, http.StatusNotFound, "player has no planet")
		return
	}

	if balance, ok := s.world.EnergyBalanceOf(userID); ok {
		payload["energy"] = balance
	}

	marshalAndSend(payload, w)
}

// serveBuild :
// Queues a building upgrade on the active planet.
func (s *Server) serveBuild(w http.ResponseWriter, r *http.Request, userID int) {
	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, _ := body["building_type"].(string)
	if !s.world.Rules().KnownBuilding(kind) {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown building type \"%s\"", kind))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":          game.CmdBuildBuilding,
		"building_type": kind,
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "building_type": kind}, w)
}

// serveDemolish :
// Queues the demolition of one level of a building.
func (s *Server) serveDemolish(w http.ResponseWriter, userID int, kind string) {
	if !s.world.Rules().KnownBuilding(kind) {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown building type \"%s\"", kind))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":          game.CmdDemolishBuilding,
		"building_type": kind,
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "building_type": kind}, w)
}

// serveCancelBuild :
// Queues the removal of an entry of the build queue, with a
// refund of its cost.
func (s *Server) serveCancelBuild(w http.ResponseWriter, userID int, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid queue index \"%s\"", rawIndex))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":  game.CmdCancelBuild,
		"index": index,
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "index": index}, w)
}

// serveResearch :
// Answers the research levels and queue of the input user.
func (s *Server) serveResearch(w http.ResponseWriter, userID int) {
	s.world.Settle()

	payload := s.world.PlayerData(userID)
	if payload == nil {
		answerFailure(w, http.StatusNotFound, "player has no planet")
		return
	}

	marshalAndSend(map[string]interface{}{
		"research":       payload["research"],
		"research_queue": payload["research_queue"],
		"ship_stats":     payload["ship_stats"],
	}, w)
}

// serveStartResearch :
// Queues a research upgrade.
func (s *Server) serveStartResearch(w http.ResponseWriter, r *http.Request, userID int) {
	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, _ := body["research_type"].(string)
	if !s.world.Rules().KnownTechnology(kind) {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown research type \"%s\"", kind))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":          game.CmdStartResearch,
		"research_type": kind,
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "research_type": kind}, w)
}

// serveFleet :
// Answers the stationed ships and the in-flight movement of
// the input user.
func (s *Server) serveFleet(w http.ResponseWriter, userID int) {
	s.world.Settle()

	payload := s.world.FleetData(userID)
	if payload == nil {
		answerFailure(w, http.StatusNotFound, "player has no planet")
		return
	}

	marshalAndSend(payload, w)
}

// serveBuildShips :
// Queues a batch of ships on the shipyard.
func (s *Server) serveBuildShips(w http.ResponseWriter, r *http.Request, userID int) {
	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, _ := body["ship_type"].(string)
	if !s.world.Rules().KnownShip(kind) {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown ship type \"%s\"", kind))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":      game.CmdBuildShips,
		"ship_type": kind,
		"quantity":  body["quantity"],
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "ship_type": kind}, w)
}

// serveFleetDispatch :
// Queues the departure of a fleet towards the requested
// coordinates.
func (s *Server) serveFleetDispatch(w http.ResponseWriter, r *http.Request, userID int) {
	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	mission, _ := body["mission"].(string)
	if len(mission) == 0 {
		mission = "transfer"
	}
	if !knownMissions[mission] {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown mission \"%s\"", mission))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":     game.CmdFleetDispatch,
		"galaxy":   body["galaxy"],
		"system":   body["system"],
		"position": body["position"],
		"mission":  mission,
		"speed":    body["speed"],
		"ships":    body["ships"],
	})

	marshalAndSend(map[string]interface{}{"status": "queued", "mission": mission}, w)
}

// serveFleetRecall :
// Queues the recall of the in-flight fleet of the user and
// settles the simulation so that the caller learns whether
// a fleet was actually turned around. A fleet that already
// arrived (or never departed) cannot be recalled.
func (s *Server) serveFleetRecall(w http.ResponseWriter, userID int, rawFleetID string) {
	fleetID, err := strconv.Atoi(rawFleetID)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid fleet identifier \"%s\"", rawFleetID))
		return
	}

	s.enqueueFor(userID, map[string]interface{}{
		"type":     game.CmdFleetRecall,
		"fleet_id": fleetID,
	})
	s.world.Settle()

	movement := s.world.MovementOf(userID)
	if movement == nil || !movement.Recalled {
		answerFailure(w, http.StatusBadRequest, "no in-flight fleet to recall or fleet already arrived")
		return
	}

	marshalAndSend(map[string]interface{}{
		"status":       "recalled",
		"fleet_id":     fleetID,
		"arrival_time": game.FormatTime(movement.ArrivalTime),
	}, w)
}

// servePlanets :
// Answers the planets owned by the input user.
func (s *Server) servePlanets(w http.ResponseWriter, userID int) {
	marshalAndSend(map[string]interface{}{
		"planets": s.world.PlanetsOf(userID),
	}, w)
}

// serveSelectPlanet :
// Switches the active planet of the input user.
func (s *Server) serveSelectPlanet(w http.ResponseWriter, userID int, rawPlanetID string) {
	planetID, err := strconv.Atoi(rawPlanetID)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid planet identifier \"%s\"", rawPlanetID))
		return
	}

	if err := s.world.SelectPlanet(userID, planetID); err != nil {
		answerFailure(w, http.StatusNotFound, "no such planet")
		return
	}

	marshalAndSend(map[string]interface{}{"status": "selected", "planet_id": planetID}, w)
}

// serveChooseStart :
// Creates the homeworld of the input user at the requested
// coordinates.
func (s *Server) serveChooseStart(w http.ResponseWriter, r *http.Request, userID int) {
	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	pos := game.Position{
		Galaxy: asBodyInt(body["galaxy"], 1),
		System: asBodyInt(body["system"], 1),
		Planet: asBodyInt(body["position"], 1),
	}

	playerName, _ := body["player_name"].(string)
	if len(playerName) == 0 {
		playerName = fmt.Sprintf("Commander %d", userID)
	}
	planetName, _ := body["planet_name"].(string)

	ent, err := s.world.CreateHomeworld(userID, playerName, pos, planetName)
	if err != nil {
		answerFailure(w, http.StatusConflict, err.Error())
		return
	}

	s.log.Trace(logger.Info, module, fmt.Sprintf("User %d starts at [%d:%d:%d]", userID, pos.Galaxy, pos.System, pos.Planet))

	marshalAndSend(map[string]interface{}{
		"status":    "created",
		"planet_id": int(ent),
		"position": map[string]interface{}{
			"galaxy": pos.Galaxy,
			"system": pos.System,
			"planet": pos.Planet,
		},
	}, w)
}

// serveReports :
// Answers the battle or espionage reports of the input user,
// either as a page or as a single report when an identifier
// trails the route.
func (s *Server) serveReports(w http.ResponseWriter, r *http.Request, userID int, kind string, extra []string) {
	if len(extra) > 1 {
		answerFailure(w, http.StatusNotFound, "no such report resource")
		return
	}

	if len(extra) == 1 {
		reportID, err := strconv.Atoi(extra[0])
		if err != nil {
			answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid report identifier \"%s\"", extra[0]))
			return
		}

		report := s.world.Reports().Get(kind, userID, reportID)
		if report == nil {
			answerFailure(w, http.StatusNotFound, "no such report")
			return
		}

		marshalAndSend(report, w)
		return
	}

	limit, offset := paging(r, 20, 100)
	marshalAndSend(map[string]interface{}{
		"reports": s.world.Reports().List(kind, userID, limit, offset),
	}, w)
}

// serveTradeHistory :
// Answers the trade events involving the input user, newest
// first.
func (s *Server) serveTradeHistory(w http.ResponseWriter, r *http.Request, userID int) {
	limit, offset := paging(r, 20, 100)

	marshalAndSend(map[string]interface{}{
		"history": s.world.Market().History(userID, limit, offset),
	}, w)
}

// serveNotifications :
// Answers the most recent notifications of the input user.
func (s *Server) serveNotifications(w http.ResponseWriter, r *http.Request, userID int) {
	limit, offset := paging(r, 50, 100)

	marshalAndSend(map[string]interface{}{
		"notifications": s.world.Notifications().List(userID, limit, offset),
	}, w)
}

// asBodyInt :
// Best-effort conversion of a decoded JSON value, falling
// back on the input default.
func asBodyInt(value interface{}, def int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		parsed, err := strconv.Atoi(v)
		if err == nil {
			return parsed
		}
	}
	return def
}

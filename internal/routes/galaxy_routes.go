package routes

import (
	"fmt"
	"net/http"
)

// buildingCosts :
// Answers the cost and base duration of a building upgrade.
// The level defaults to `1` and the duration ignores the
// speedups granted by the robot factory and the hyperspace
// technology since those depend on the asking player.
//
// Returns the handler to execute for this route.
func (s *Server) buildingCosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		elems, err := extractRouteElems(r, "/building-costs/")
		if err != nil || len(elems) != 1 {
			answerFailure(w, http.StatusNotFound, "no such building")
			return
		}

		kind := elems[0]
		rules := s.world.Rules()
		if !rules.KnownBuilding(kind) {
			answerFailure(w, http.StatusNotFound, fmt.Sprintf("unknown building type \"%s\"", kind))
			return
		}

		level := queryInt(r, "level", 1)
		if level < 1 {
			level = 1
		}

		cost := rules.BuildingCost(kind, level)

		marshalAndSend(map[string]interface{}{
			"building_type": kind,
			"level":         level,
			"cost": map[string]interface{}{
				"metal":     cost.Metal,
				"crystal":   cost.Crystal,
				"deuterium": cost.Deuterium,
			},
			"duration_s": rules.BuildingDuration(kind, level, 0, 0),
		}, w)
	}
}

// availablePlanets :
// Answers a page of the unoccupied seeded coordinates, to
// be used by the start choice flow. The `galaxy` and the
// `system` query parameters narrow the search.
//
// Returns the handler to execute for this route.
func (s *Server) availablePlanets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		galaxy := queryInt(r, "galaxy", 0)
		system := queryInt(r, "system", 0)
		limit, offset := paging(r, 50, 500)

		positions := s.world.Galaxy().Available(s.world.OccupiedPositions(), galaxy, system, limit, offset)

		marshalAndSend(map[string]interface{}{
			"positions": positions,
			"count":     len(positions),
		}, w)
	}
}

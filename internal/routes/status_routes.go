package routes

import (
	"net/http"
)

// gameStatus :
// Answers a combined view of the simulation: entity and
// queue counts plus the statistics of the loop and of the
// request layer.
//
// Returns the handler to execute for this route.
func (s *Server) gameStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"status": "running",
			"world":  s.world.StatusCounts(),
		}

		if s.collector != nil {
			payload["metrics"] = s.collector.Snapshot()
		}

		marshalAndSend(payload, w)
	}
}

// healthz :
// Liveness probe. The bare route always answers `200`; the
// `db` sub-route reflects the state of the database pool
// and degrades to `503` when the pool is unhealthy.
//
// Returns the handler to execute for this route.
func (s *Server) healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		elems, err := extractRouteElems(r, "/healthz")
		if err != nil || len(elems) > 1 {
			answerFailure(w, http.StatusNotFound, "no such health resource")
			return
		}

		if len(elems) == 0 {
			marshalAndSend(map[string]interface{}{"status": "ok"}, w)
			return
		}

		if elems[0] != "db" {
			answerFailure(w, http.StatusNotFound, "no such health resource")
			return
		}

		if s.dbase == nil || !s.dbase.Enabled() {
			marshalAndSend(map[string]interface{}{"status": "disabled"}, w)
			return
		}

		if !s.dbase.Healthy() {
			answerJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unhealthy"})
			return
		}

		marshalAndSend(map[string]interface{}{"status": "ok"}, w)
	}
}

// metricsSnapshot :
// Answers the raw statistics gathered by the collector.
//
// Returns the handler to execute for this route.
func (s *Server) metricsSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.collector == nil {
			answerFailure(w, http.StatusNotFound, "metrics are disabled")
			return
		}

		marshalAndSend(s.collector.Snapshot(), w)
	}
}

package game

import (
	"fmt"
	"time"

	"stellar_server/pkg/logger"
)

// runShipyard :
// Completes every due ship batch per planet in a single
// tick and emits one batched event per planet covering all
// the finished orders.
func (w *World) runShipyard(now time.Time) {
	for _, ent := range w.store.ShipQueues.Entities() {
		queue := w.store.ShipQueues.Get(ent)
		fleet := w.store.Fleets.Get(ent)
		if len(queue.Items) == 0 || fleet == nil {
			continue
		}

		completed := make([]map[string]interface{}, 0)

		remaining := queue.Items[:0]
		for _, item := range queue.Items {
			if item.CompletionTime.IsZero() {
				continue
			}
			if now.Before(item.CompletionTime) {
				remaining = append(remaining, item)
				continue
			}

			if item.Quantity > 0 {
				fleet.Ships[item.Kind] = fleet.Count(item.Kind) + item.Quantity
			}

			completed = append(completed, map[string]interface{}{
				"ship_type": item.Kind,
				"count":     item.Quantity,
			})

			w.log.Trace(logger.Info, module, fmt.Sprintf("Completed production of %d \"%s\" on entity %d", item.Quantity, item.Kind, ent))
		}
		queue.Items = remaining

		if len(completed) == 0 {
			continue
		}

		if player := w.store.Players.Get(ent); player != nil && player.UserID != 0 {
			sendEvent(w.sink, player.UserID, map[string]interface{}{
				"type":      "ship_build_complete_batch",
				"completed": completed,
				"ts":        FormatTime(now),
			})
		}

		w.persistPlanet(ent)
	}
}

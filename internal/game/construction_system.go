package game

import (
	"fmt"
	"time"

	"stellar_server/pkg/logger"
)

// runConstruction :
// Completes at most one pending construction per planet
// per tick: when the head of the queue is due, the level
// is granted, the item is popped and the owner is told.
func (w *World) runConstruction(now time.Time) {
	for _, ent := range w.store.BuildQueues.Entities() {
		queue := w.store.BuildQueues.Get(ent)
		buildings := w.store.Buildings.Get(ent)
		if len(queue.Items) == 0 || buildings == nil {
			continue
		}

		head := queue.Items[0]

		// A malformed item would block the queue forever.
		if head.CompletionTime.IsZero() {
			queue.Items = queue.Items[1:]
			continue
		}

		if now.Before(head.CompletionTime) {
			continue
		}

		newLevel := buildings.Level(head.Kind) + 1
		buildings.Levels[head.Kind] = newLevel
		queue.Items = queue.Items[1:]

		w.log.Trace(logger.Info, module, fmt.Sprintf("Completed construction of \"%s\" (level %d) on entity %d", head.Kind, newLevel, ent))

		if player := w.store.Players.Get(ent); player != nil && player.UserID != 0 {
			sendEvent(w.sink, player.UserID, map[string]interface{}{
				"type":          "building_complete",
				"building_type": head.Kind,
				"new_level":     newLevel,
				"ts":            FormatTime(now),
			})

			notif := w.notifications.Create(player.UserID, "building_complete", map[string]interface{}{
				"building_type": head.Kind,
				"new_level":     newLevel,
			}, "normal")
			if w.persister != nil {
				w.persister.SaveNotification(notif)
			}
		}

		w.persistPlanet(ent)
	}
}

package game

import (
	"fmt"
	"time"

	"stellar_server/pkg/logger"
)

// runResearch :
// Completes at most one pending technology per player per
// tick, mirroring the construction system.
func (w *World) runResearch(now time.Time) {
	for _, ent := range w.store.ResearchQs.Entities() {
		queue := w.store.ResearchQs.Get(ent)
		research := w.store.Research.Get(ent)
		if len(queue.Items) == 0 || research == nil {
			continue
		}

		head := queue.Items[0]

		if head.CompletionTime.IsZero() {
			queue.Items = queue.Items[1:]
			continue
		}

		if now.Before(head.CompletionTime) {
			continue
		}

		newLevel := research.Level(head.Kind) + 1
		research.Levels[head.Kind] = newLevel
		queue.Items = queue.Items[1:]

		w.log.Trace(logger.Info, module, fmt.Sprintf("Completed research of \"%s\" (level %d) on entity %d", head.Kind, newLevel, ent))

		if player := w.store.Players.Get(ent); player != nil && player.UserID != 0 {
			sendEvent(w.sink, player.UserID, map[string]interface{}{
				"type":          "research_complete",
				"research_type": head.Kind,
				"new_level":     newLevel,
				"ts":            FormatTime(now),
			})

			notif := w.notifications.Create(player.UserID, "research_complete", map[string]interface{}{
				"research_type": head.Kind,
				"new_level":     newLevel,
			}, "normal")
			if w.persister != nil {
				w.persister.SaveNotification(notif)
			}
		}

		w.persistPlanet(ent)
	}
}

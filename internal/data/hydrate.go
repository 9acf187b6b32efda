package data

import (
	"fmt"

	"stellar_server/internal/game"
	"stellar_server/pkg/logger"
)

// Hydrator :
// Rebuilds the in-memory world from the persisted rows at
// startup: planets and their satellite components, the
// marketplace, the reports and the notifications. The id
// counters of all the side stores are reconciled from the
// reloaded rows so that new allocations never collide with
// persisted ones.
type Hydrator struct {
	bridge *Bridge
	log    logger.Logger
}

// NewHydrator :
// Creates a hydrator on the input bridge.
//
// Returns the created hydrator.
func NewHydrator(bridge *Bridge, log logger.Logger) Hydrator {
	return Hydrator{
		bridge: bridge,
		log:    log,
	}
}

// Run :
// Performs the startup hydration of the input world, then
// settles it once so that the offline resource accrual and
// any overdue completion are applied before the simulation
// loop starts. The settle pass reuses the regular systems:
// the first tick after a long downtime therefore never
// double counts the elapsed time.
//
// Returns any error. Hydration errors leave the world in a
// partially loaded but consistent state.
func (h Hydrator) Run(world *game.World) error {
	if !h.bridge.Enabled() {
		h.log.Trace(logger.Info, module, "Skipping hydration (database disabled)")
		return nil
	}

	snaps, err := h.bridge.Planets().FetchAll()
	if err != nil {
		return fmt.Errorf("unable to hydrate planets: %v", err)
	}
	for _, snap := range snaps {
		world.LoadSnapshot(snap)
	}

	offers, err := h.bridge.Market().FetchOffers()
	if err != nil {
		return fmt.Errorf("unable to hydrate trade offers: %v", err)
	}
	for _, offer := range offers {
		world.Market().RestoreOffer(offer)
	}

	events, err := h.bridge.Market().FetchEvents()
	if err != nil {
		return fmt.Errorf("unable to hydrate trade events: %v", err)
	}
	for _, event := range events {
		world.Market().RestoreEvent(event)
	}

	battles, err := h.bridge.Reports().FetchAll(game.BattleReportKind)
	if err != nil {
		return fmt.Errorf("unable to hydrate battle reports: %v", err)
	}
	for _, report := range battles {
		world.Reports().Restore(report)
	}

	espionages, err := h.bridge.Reports().FetchAll(game.EspionageReportKind)
	if err != nil {
		return fmt.Errorf("unable to hydrate espionage reports: %v", err)
	}
	for _, report := range espionages {
		world.Reports().Restore(report)
	}

	notifs, err := h.bridge.Notifications().FetchAll()
	if err != nil {
		return fmt.Errorf("unable to hydrate notifications: %v", err)
	}
	for _, notif := range notifs {
		world.Notifications().Restore(notif)
	}

	// Offline catch-up: production accrues since each
	// planet's last update and overdue queue items, fleet
	// arrivals and battles are processed right away.
	world.Settle()

	h.log.Trace(logger.Info, module, fmt.Sprintf("Hydrated %d planet(s), %d offer(s), %d event(s), %d report(s), %d notification(s)",
		len(snaps), len(offers), len(events), len(battles)+len(espionages), len(notifs)))

	return nil
}

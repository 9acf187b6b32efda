package game

import (
	"time"
)

// EventSink :
// Destination for the real time events produced by the
// simulation, typically the websocket layer. The delivery
// is fire-and-forget: the simulation never waits for the
// sink and a missing recipient is silently dropped.
type EventSink interface {
	Send(userID int, event map[string]interface{})
}

// PlanetSnapshot :
// Consistent copy of all the components of a planet entity,
// built under the world lock and handed to the persistence
// layer. The persistence layer never touches live component
// pointers.
type PlanetSnapshot struct {
	Entity      Entity
	UserID      int
	PlayerName  string
	Name        string
	Position    Position
	Temperature int
	Size        int

	Resources     Resources
	Production    ResourceProduction
	Buildings     map[string]int
	BuildQueue    []BuildItem
	ShipQueue     []ShipOrder
	Fleet         map[string]int
	Movement      *FleetMovement
	Research      map[string]int
	ResearchQueue []ResearchItem

	UpdatedAt time.Time
}

// Persister :
// Destination for the durable side effects produced by the
// simulation. Implementations forward the writes to the
// database asynchronously; the simulation never blocks on
// them and a `nil` persister disables persistence entirely.
type Persister interface {
	// UpsertPlanet stores the full state of a planet.
	UpsertPlanet(snap PlanetSnapshot)

	// DeletePlanet removes a planet and its satellite rows.
	DeletePlanet(ent Entity)

	// DeleteMission removes the persisted mission of the
	// input entity once it completed or aborted.
	DeleteMission(ent Entity)

	// SaveOffer stores the state of a marketplace offer.
	SaveOffer(offer TradeOffer)

	// SaveTradeEvent appends a row to the trade history.
	SaveTradeEvent(event map[string]interface{})

	// SaveNotification stores a durable notification.
	SaveNotification(notif Notification)

	// SaveReport stores a battle or espionage report.
	SaveReport(report Report)
}

// sendEvent :
// Forwards an event to the configured sink, dealing with
// the case where no sink is plugged in.
func sendEvent(sink EventSink, userID int, event map[string]interface{}) {
	if sink == nil || userID == 0 {
		return
	}
	sink.Send(userID, event)
}

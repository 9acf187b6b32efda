package game

import (
	"sync"
	"time"
)

// TradeOffer :
// A marketplace offer. The offered amount is held in
// escrow: it is deducted from the seller's stockpile at
// creation time and only handed back through a completed
// trade.
type TradeOffer struct {
	ID                int        `json:"id"`
	SellerUserID      int        `json:"seller_user_id"`
	OfferedResource   string     `json:"offered_resource"`
	OfferedAmount     int        `json:"offered_amount"`
	RequestedResource string     `json:"requested_resource"`
	RequestedAmount   int        `json:"requested_amount"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	AcceptedBy        *int       `json:"accepted_by,omitempty"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
}

// Market :
// In-memory store of the marketplace offers and of the
// trade history. The store carries its own lock: listing
// routes read it without going through the world lock.
type Market struct {
	lock sync.Mutex

	offers      []*TradeOffer
	nextOfferID int

	history     []map[string]interface{}
	nextEventID int
}

// NewMarket :
// Creates an empty marketplace.
func NewMarket() *Market {
	return &Market{
		offers:      make([]*TradeOffer, 0),
		nextOfferID: 1,
		history:     make([]map[string]interface{}, 0),
		nextEventID: 1,
	}
}

// AddOffer :
// Registers a new offer, assigning its identifier.
//
// Returns the stored offer.
func (m *Market) AddOffer(offer TradeOffer) *TradeOffer {
	m.lock.Lock()
	defer m.lock.Unlock()

	offer.ID = m.nextOfferID
	m.nextOfferID++

	stored := offer
	m.offers = append(m.offers, &stored)

	return &stored
}

// RestoreOffer :
// Registers an offer with its identifier already assigned,
// typically when reloading persisted rows during startup.
// A duplicate identifier is ignored.
func (m *Market) RestoreOffer(offer TradeOffer) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, existing := range m.offers {
		if existing.ID == offer.ID {
			return
		}
	}

	stored := offer
	m.offers = append(m.offers, &stored)

	if offer.ID >= m.nextOfferID {
		m.nextOfferID = offer.ID + 1
	}
}

// Offer :
// Returns the offer with the input identifier, or `nil`.
func (m *Market) Offer(id int) *TradeOffer {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, offer := range m.offers {
		if offer.ID == id {
			return offer
		}
	}

	return nil
}

// ListOffers :
// Returns a page of the offers matching the input status,
// newest first. An empty status matches everything.
func (m *Market) ListOffers(status string, limit int, offset int) []TradeOffer {
	m.lock.Lock()
	defer m.lock.Unlock()

	matching := make([]TradeOffer, 0)
	for i := len(m.offers) - 1; i >= 0; i-- {
		offer := m.offers[i]
		if len(status) == 0 || offer.Status == status {
			matching = append(matching, *offer)
		}
	}

	return pageOffers(matching, limit, offset)
}

// Count :
// Returns the number of offers with the input status, all
// of them when the status is empty.
func (m *Market) Count(status string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	count := 0
	for _, offer := range m.offers {
		if len(status) == 0 || offer.Status == status {
			count++
		}
	}

	return count
}

// RecordEvent :
// Appends an event to the trade history, assigning its
// identifier and timestamp.
//
// Returns the stored event.
func (m *Market) RecordEvent(event map[string]interface{}) map[string]interface{} {
	m.lock.Lock()
	defer m.lock.Unlock()

	payload := make(map[string]interface{}, len(event)+2)
	for k, v := range event {
		payload[k] = v
	}

	payload["id"] = m.nextEventID
	m.nextEventID++

	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = FormatTime(Now())
	}

	m.history = append(m.history, payload)

	return payload
}

// RestoreEvent :
// Appends an already identified event to the history,
// typically when reloading persisted rows during startup.
func (m *Market) RestoreEvent(event map[string]interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()

	id, ok := event["id"].(int)
	if !ok {
		return
	}

	m.history = append(m.history, event)

	if id >= m.nextEventID {
		m.nextEventID = id + 1
	}
}

// History :
// Returns a page of the trade events in which the input
// user took part, newest first.
func (m *Market) History(userID int, limit int, offset int) []map[string]interface{} {
	m.lock.Lock()
	defer m.lock.Unlock()

	relevant := make([]map[string]interface{}, 0)
	for i := len(m.history) - 1; i >= 0; i-- {
		event := m.history[i]
		if eventInvolves(event, userID) {
			relevant = append(relevant, event)
		}
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(relevant) {
		return []map[string]interface{}{}
	}
	end := offset + limit
	if end > len(relevant) {
		end = len(relevant)
	}

	out := make([]map[string]interface{}, end-offset)
	copy(out, relevant[offset:end])

	return out
}

// eventInvolves :
// Returns `true` when the input user is the seller or the
// buyer of the event.
func eventInvolves(event map[string]interface{}, userID int) bool {
	if seller, ok := event["seller_user_id"].(int); ok && seller == userID {
		return true
	}
	if buyer, ok := event["buyer_user_id"].(int); ok && buyer == userID {
		return true
	}
	return false
}

func pageOffers(offers []TradeOffer, limit int, offset int) []TradeOffer {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(offers) {
		return []TradeOffer{}
	}
	end := offset + limit
	if end > len(offers) {
		end = len(offers)
	}

	return offers[offset:end]
}

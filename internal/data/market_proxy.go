package data

import (
	"fmt"
	"time"

	"stellar_server/internal/game"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
)

// MarketProxy :
// Intended as a wrapper to access the persisted trade
// offers and the trade history.
type MarketProxy struct {
	dbase *db.DB
	proxy db.Proxy
	log   logger.Logger
}

// NewMarketProxy :
// Creates a new proxy on the input database.
//
// Returns the created proxy.
func NewMarketProxy(dbase *db.DB, log logger.Logger) MarketProxy {
	return MarketProxy{
		dbase: dbase,
		proxy: db.NewProxy(dbase),
		log:   log,
	}
}

// offerDTO :
// Facet of a trade offer matching the payload expected by
// the `save_trade_offer` function.
type offerDTO struct {
	ID                int    `json:"id"`
	SellerUserID      int    `json:"seller_user_id"`
	OfferedResource   string `json:"offered_resource"`
	OfferedAmount     int    `json:"offered_amount"`
	RequestedResource string `json:"requested_resource"`
	RequestedAmount   int    `json:"requested_amount"`
	Status            string `json:"status"`
	AcceptedBy        *int   `json:"accepted_by,omitempty"`
	AcceptedAt        string `json:"accepted_at,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// Convert :
// Implementation of the `db.Convertible` interface.
func (o offerDTO) Convert() interface{} {
	return o
}

// SaveOffer :
// Stores the state of a marketplace offer, updating the
// status related columns when the row already exists.
//
// Returns any error.
func (p MarketProxy) SaveOffer(offer game.TradeOffer) error {
	dto := offerDTO{
		ID:                offer.ID,
		SellerUserID:      offer.SellerUserID,
		OfferedResource:   offer.OfferedResource,
		OfferedAmount:     offer.OfferedAmount,
		RequestedResource: offer.RequestedResource,
		RequestedAmount:   offer.RequestedAmount,
		Status:            offer.Status,
		AcceptedBy:        offer.AcceptedBy,
		CreatedAt:         game.FormatTime(offer.CreatedAt),
	}
	if offer.AcceptedAt != nil {
		dto.AcceptedAt = game.FormatTime(*offer.AcceptedAt)
	}

	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "save_trade_offer",
		Args:       []interface{}{dto},
		SkipReturn: true,
	})
}

// eventDTO :
// Facet of a trade event matching the payload expected by
// the `save_trade_event` function.
type eventDTO map[string]interface{}

// Convert :
// Implementation of the `db.Convertible` interface.
func (e eventDTO) Convert() interface{} {
	return map[string]interface{}(e)
}

// SaveEvent :
// Appends a row to the trade history.
//
// Returns any error.
func (p MarketProxy) SaveEvent(event map[string]interface{}) error {
	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "save_trade_event",
		Args:       []interface{}{eventDTO(event)},
		SkipReturn: true,
	})
}

// FetchOffers :
// Loads every persisted offer, used by the startup
// hydration to rebuild the in-memory list.
//
// Returns the offers along with any error.
func (p MarketProxy) FetchOffers() ([]game.TradeOffer, error) {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props: []string{"id", "seller_user_id", "offered_resource", "offered_amount",
			"requested_resource", "requested_amount", "status", "accepted_by", "accepted_at", "created_at"},
		Table: "trade_offers",
	})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if res.Err != nil {
		return nil, res.Err
	}

	out := make([]game.TradeOffer, 0)
	for res.Next() {
		var offer game.TradeOffer
		var acceptedBy *int
		var acceptedAt *time.Time

		err = res.Scan(&offer.ID, &offer.SellerUserID, &offer.OfferedResource, &offer.OfferedAmount,
			&offer.RequestedResource, &offer.RequestedAmount, &offer.Status, &acceptedBy, &acceptedAt, &offer.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch trade offer: %v", err)
		}

		offer.AcceptedBy = acceptedBy
		offer.AcceptedAt = acceptedAt
		out = append(out, offer)
	}

	return out, nil
}

// FetchEvents :
// Loads the full trade history in chronological order.
//
// Returns the events along with any error.
func (p MarketProxy) FetchEvents() ([]map[string]interface{}, error) {
	rows, err := p.dbase.DBQuery(
		"select id, type, offer_id, seller_user_id, buyer_user_id, offered_resource, offered_amount, requested_resource, requested_amount, status, created_at from trade_events order by id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, offerID, sellerID, offeredAmount, requestedAmount int
		var buyerID *int
		var kind, offeredResource, requestedResource, status string
		var createdAt time.Time

		err = rows.Scan(&id, &kind, &offerID, &sellerID, &buyerID,
			&offeredResource, &offeredAmount, &requestedResource, &requestedAmount, &status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch trade event: %v", err)
		}

		event := map[string]interface{}{
			"id":                 id,
			"type":               kind,
			"offer_id":           offerID,
			"seller_user_id":     sellerID,
			"offered_resource":   offeredResource,
			"offered_amount":     offeredAmount,
			"requested_resource": requestedResource,
			"requested_amount":   requestedAmount,
			"status":             status,
			"timestamp":          game.FormatTime(createdAt),
		}
		if buyerID != nil {
			event["buyer_user_id"] = *buyerID
		}

		out = append(out, event)
	}

	return out, nil
}

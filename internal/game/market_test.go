package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketOfferIdentifiers(t *testing.T) {
	m := NewMarket()

	first := m.AddOffer(TradeOffer{SellerUserID: 1, Status: "open"})
	second := m.AddOffer(TradeOffer{SellerUserID: 2, Status: "open"})

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)

	require.NotNil(t, m.Offer(1))
	assert.Equal(t, 1, m.Offer(1).SellerUserID)
	assert.Nil(t, m.Offer(99))
}

func TestMarketListFiltersByStatus(t *testing.T) {
	m := NewMarket()

	m.AddOffer(TradeOffer{SellerUserID: 1, Status: "open"})
	m.AddOffer(TradeOffer{SellerUserID: 1, Status: "accepted"})
	m.AddOffer(TradeOffer{SellerUserID: 2, Status: "open"})

	assert.Len(t, m.ListOffers("open", 10, 0), 2)
	assert.Len(t, m.ListOffers("accepted", 10, 0), 1)
	assert.Len(t, m.ListOffers("", 10, 0), 3)

	assert.Equal(t, 2, m.Count("open"))
	assert.Equal(t, 3, m.Count(""))

	// Paging slices the filtered set, newest first.
	page := m.ListOffers("open", 1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].SellerUserID)
}

func TestMarketListNewestFirst(t *testing.T) {
	m := NewMarket()

	m.AddOffer(TradeOffer{SellerUserID: 1, Status: "open"})
	m.AddOffer(TradeOffer{SellerUserID: 2, Status: "open"})
	m.AddOffer(TradeOffer{SellerUserID: 3, Status: "open"})

	offers := m.ListOffers("open", 10, 0)
	require.Len(t, offers, 3)
	assert.Equal(t, 3, offers[0].ID)
	assert.Equal(t, 2, offers[1].ID)
	assert.Equal(t, 1, offers[2].ID)
}

func TestMarketRestoreOfferReconcilesSequence(t *testing.T) {
	m := NewMarket()

	m.RestoreOffer(TradeOffer{ID: 8, SellerUserID: 1, Status: "open"})
	m.RestoreOffer(TradeOffer{ID: 8, SellerUserID: 1, Status: "open"})

	assert.Equal(t, 1, m.Count(""))

	// New offers resume past the restored identifiers.
	fresh := m.AddOffer(TradeOffer{SellerUserID: 2, Status: "open"})
	assert.Equal(t, 9, fresh.ID)
}

func TestMarketHistoryNewestFirstPerUser(t *testing.T) {
	m := NewMarket()

	m.RecordEvent(map[string]interface{}{"type": "offer_created", "seller_user_id": 1})
	m.RecordEvent(map[string]interface{}{"type": "offer_created", "seller_user_id": 2})
	m.RecordEvent(map[string]interface{}{"type": "trade_completed", "seller_user_id": 1, "buyer_user_id": 2})

	mine := m.History(1, 10, 0)
	require.Len(t, mine, 2)
	assert.Equal(t, "trade_completed", mine[0]["type"])
	assert.Equal(t, "offer_created", mine[1]["type"])

	// The buyer sees the completed trade too.
	theirs := m.History(2, 10, 0)
	require.Len(t, theirs, 2)
	assert.Equal(t, "trade_completed", theirs[0]["type"])

	assert.Empty(t, m.History(3, 10, 0))
	assert.Len(t, m.History(1, 1, 1), 1)
}

func TestMarketRestoreEventReconcilesSequence(t *testing.T) {
	m := NewMarket()

	m.RestoreEvent(map[string]interface{}{"id": 5, "type": "offer_created", "seller_user_id": 1})

	event := m.RecordEvent(map[string]interface{}{"type": "offer_created", "seller_user_id": 1})
	assert.Equal(t, 6, event["id"])
	assert.NotEmpty(t, event["timestamp"])
}

package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"stellar_server/internal/game"
)

// Resources accepted by the marketplace routes.
var tradableResources = map[string]bool{
	"metal":     true,
	"crystal":   true,
	"deuterium": true,
}

// tradeOffers :
// Lists the marketplace offers or creates a new one. The
// creation validates the payload synchronously, then runs
// through the command queue so that the escrow is taken
// under the same lock as every other mutation.
//
// Returns the handler to execute for this route.
func (s *Server) tradeOffers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			s.listTradeOffers(w, r)
			return
		}

		s.createTradeOffer(w, r)
	}
}

// listTradeOffers :
// Answers a page of the offers, filtered by status. The
// default only shows the open ones.
func (s *Server) listTradeOffers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if len(status) == 0 {
		status = "open"
	}

	limit, offset := paging(r, 50, 200)

	marshalAndSend(map[string]interface{}{
		"offers": s.world.Market().ListOffers(status, limit, offset),
	}, w)
}

// createTradeOffer :
// Validates and queues the creation of an offer, settling
// the simulation right away so that the caller observes the
// escrowed state.
func (s *Server) createTradeOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.userFromRequest(r)
	if err != nil {
		answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		answerFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	offered, _ := body["offered_resource"].(string)
	requested, _ := body["requested_resource"].(string)
	offeredAmount := asBodyInt(body["offered_amount"], 0)
	requestedAmount := asBodyInt(body["requested_amount"], 0)

	if !tradableResources[offered] || !tradableResources[requested] {
		answerFailure(w, http.StatusBadRequest, "unknown resource")
		return
	}
	if offered == requested {
		answerFailure(w, http.StatusBadRequest, "cannot trade a resource against itself")
		return
	}
	if offeredAmount <= 0 || requestedAmount <= 0 {
		answerFailure(w, http.StatusBadRequest, "amounts must be positive")
		return
	}

	before := s.latestOfferOf(userID)

	s.enqueueFor(userID, map[string]interface{}{
		"type":               game.CmdTradeCreate,
		"offered_resource":   offered,
		"offered_amount":     offeredAmount,
		"requested_resource": requested,
		"requested_amount":   requestedAmount,
	})
	s.world.Settle()

	offer := s.latestOfferOf(userID)
	if offer == nil || (before != nil && offer.ID == before.ID) {
		answerFailure(w, http.StatusConflict, "insufficient resources to escrow the offer")
		return
	}

	answerJSON(w, http.StatusCreated, offer)
}

// latestOfferOf :
// Returns the most recent offer of the input seller, `nil`
// when there is none.
func (s *Server) latestOfferOf(userID int) *game.TradeOffer {
	offers := s.world.Market().ListOffers("", 1000, 0)

	var latest *game.TradeOffer
	for i := range offers {
		if offers[i].SellerUserID != userID {
			continue
		}
		if latest == nil || offers[i].ID > latest.ID {
			latest = &offers[i]
		}
	}

	return latest
}

// acceptTradeOffer :
// Queues the acceptance of an offer and settles the
// simulation so that the caller learns whether the exchange
// went through.
//
// Returns the handler to execute for this route.
func (s *Server) acceptTradeOffer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.userFromRequest(r)
		if err != nil {
			answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		elems, err := extractRouteElems(r, "/trade/accept/")
		if err != nil || len(elems) != 1 {
			answerFailure(w, http.StatusNotFound, "no such offer")
			return
		}

		offerID, err := strconv.Atoi(elems[0])
		if err != nil {
			answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid offer identifier \"%s\"", elems[0]))
			return
		}

		offer := s.world.Market().Offer(offerID)
		if offer == nil {
			answerFailure(w, http.StatusNotFound, "no such offer")
			return
		}
		if offer.Status != "open" {
			answerFailure(w, http.StatusBadRequest, "offer is no longer open")
			return
		}
		if offer.SellerUserID == userID {
			answerFailure(w, http.StatusConflict, "cannot accept your own offer")
			return
		}

		s.enqueueFor(userID, map[string]interface{}{
			"type":     game.CmdTradeAccept,
			"offer_id": offerID,
		})
		s.world.Settle()

		offer = s.world.Market().Offer(offerID)
		if offer == nil || offer.Status != "accepted" || offer.AcceptedBy == nil || *offer.AcceptedBy != userID {
			answerFailure(w, http.StatusBadRequest, "unable to complete the trade")
			return
		}

		marshalAndSend(offer, w)
	}
}

// marketGuidance :
// Answers the exchange ratios and the transaction fee, to
// help clients price their offers.
//
// Returns the handler to execute for this route.
func (s *Server) marketGuidance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules := s.world.Rules()

		marshalAndSend(map[string]interface{}{
			"exchange_ratios": map[string]interface{}{
				"metal":     rules.ExchangeRatio("metal"),
				"crystal":   rules.ExchangeRatio("crystal"),
				"deuterium": rules.ExchangeRatio("deuterium"),
			},
			"transaction_fee_rate": rules.TradeFee,
		}, w)
	}
}

// deleteNotification :
// Removes a notification of the authenticated user, both
// from the in-memory ring and from the persisted rows.
//
// Returns the handler to execute for this route.
func (s *Server) deleteNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.userFromRequest(r)
		if err != nil {
			answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		elems, err := extractRouteElems(r, "/notifications/")
		if err != nil || len(elems) != 1 {
			answerFailure(w, http.StatusNotFound, "no such notification")
			return
		}

		notifID, err := strconv.Atoi(elems[0])
		if err != nil {
			answerFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid notification identifier \"%s\"", elems[0]))
			return
		}

		if !s.world.Notifications().Delete(userID, notifID) {
			answerFailure(w, http.StatusNotFound, "no such notification")
			return
		}

		if s.bridge.Enabled() {
			s.bridge.SubmitWait(func() error {
				return s.bridge.Notifications().Delete(notifID)
			})
		}

		marshalAndSend(map[string]interface{}{"status": "deleted", "id": notifID}, w)
	}
}

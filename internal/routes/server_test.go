package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stellar_server/internal/data"
	"stellar_server/internal/game"
	"stellar_server/pkg/logger"
	"stellar_server/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopLog :
// Logger discarding everything, used by the tests.
type noopLog struct{}

func (noopLog) Trace(level logger.Severity, module string, message string) {}

// newTestServer :
// Builds a server on top of a fresh world without any
// database: accounts live in the in-memory fallback of the
// authenticator.
func newTestServer() *Server {
	world := game.NewWorld(game.DefaultRules(), noopLog{})
	bridge := data.NewBridge(nil, nil, noopLog{})

	return NewServer(3000, world, bridge, nil, metrics.NewCollector(), noopLog{})
}

// doJSON :
// Performs a request against the input handler and decodes
// the JSON answer.
func doJSON(t *testing.T, router http.Handler, method string, path string, token string, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	if len(token) > 0 {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	out := make(map[string]interface{})
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &out)
	}

	return w.Code, out
}

// signUp :
// Registers and logs a user in.
//
// Returns the user identifier and an access token.
func signUp(t *testing.T, router http.Handler, username string) (int, string) {
	t.Helper()

	status, body := doJSON(t, router, "POST", "/auth/register", "", map[string]interface{}{
		"username": username,
		"password": "secret123",
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, status, "register answered %v", body)

	userID := int(body["id"].(float64))

	status, body = doJSON(t, router, "POST", "/auth/login", "", map[string]interface{}{
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, status, "login answered %v", body)

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	return userID, token
}

// settleIn :
// Creates the homeworld of the input user at the input slot.
func settleIn(t *testing.T, router http.Handler, userID int, token string, galaxy int, system int, position int) {
	t.Helper()

	status, body := doJSON(t, router, "POST", fmt.Sprintf("/player/%d/choose-start", userID), token, map[string]interface{}{
		"galaxy":   galaxy,
		"system":   system,
		"position": position,
	})
	require.Equal(t, http.StatusOK, status, "choose-start answered %v", body)
	assert.Equal(t, "created", body["status"])
}

func TestAuthFlow(t *testing.T) {
	router := newTestServer().routes()

	// Too short a username.
	status, _ := doJSON(t, router, "POST", "/auth/register", "", map[string]interface{}{
		"username": "ab",
		"password": "secret123",
		"email":    "ab@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	userID, token := signUp(t, router, "vasily")
	assert.Equal(t, 1, userID)

	// The username is taken now.
	status, _ = doJSON(t, router, "POST", "/auth/register", "", map[string]interface{}{
		"username": "vasily",
		"password": "secret123",
		"email":    "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, status)

	// Wrong password.
	status, _ = doJSON(t, router, "POST", "/auth/login", "", map[string]interface{}{
		"username": "vasily",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// The token identifies its owner.
	status, body := doJSON(t, router, "GET", "/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(userID), body["id"])

	status, _ = doJSON(t, router, "GET", "/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, router, "POST", "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestPlayerRoutesEnforceTokenOwnership(t *testing.T) {
	router := newTestServer().routes()

	userID, token := signUp(t, router, "vasily")

	status, _ := doJSON(t, router, "GET", fmt.Sprintf("/player/%d", userID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// A valid token does not open somebody else's data.
	status, _ = doJSON(t, router, "GET", fmt.Sprintf("/player/%d", userID+1), token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Authenticated but without a planet yet.
	status, _ = doJSON(t, router, "GET", fmt.Sprintf("/player/%d", userID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChooseStartAndPlayerData(t *testing.T) {
	router := newTestServer().routes()

	userID, token := signUp(t, router, "vasily")
	settleIn(t, router, userID, token, 1, 1, 1)

	// Starting twice is refused.
	status, _ := doJSON(t, router, "POST", fmt.Sprintf("/player/%d/choose-start", userID), token, map[string]interface{}{
		"galaxy":   1,
		"system":   2,
		"position": 1,
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body := doJSON(t, router, "GET", fmt.Sprintf("/player/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, status)

	resources, ok := body["resources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 500.0, resources["metal"])
	assert.Equal(t, 300.0, resources["crystal"])
	assert.Equal(t, 100.0, resources["deuterium"])

	assert.Contains(t, body, "energy")
	assert.Contains(t, body, "build_queue")
	assert.Contains(t, body, "ship_stats")
}

func TestBuildRouteQueuesAndSpends(t *testing.T) {
	router := newTestServer().routes()

	userID, token := signUp(t, router, "vasily")
	settleIn(t, router, userID, token, 1, 1, 1)

	status, _ := doJSON(t, router, "POST", fmt.Sprintf("/player/%d/build", userID), token, map[string]interface{}{
		"building_type": "unknown_thing",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, router, "POST", fmt.Sprintf("/player/%d/build", userID), token, map[string]interface{}{
		"building_type": "metal_mine",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "queued", body["status"])

	// The next read settles the world: the command ran and the
	// cost left the stockpile.
	status, body = doJSON(t, router, "GET", fmt.Sprintf("/player/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, status)

	resources := body["resources"].(map[string]interface{})
	assert.Equal(t, 440.0, resources["metal"])
	assert.Equal(t, 285.0, resources["crystal"])

	queue, ok := body["build_queue"].([]interface{})
	require.True(t, ok)
	require.Len(t, queue, 1)

	item := queue[0].(map[string]interface{})
	assert.Equal(t, "metal_mine", item["type"])
}

func TestFleetRecallWithoutFlightRejected(t *testing.T) {
	router := newTestServer().routes()

	userID, token := signUp(t, router, "vasily")
	settleIn(t, router, userID, token, 1, 1, 1)

	// No fleet ever departed: there is nothing to recall.
	status, body := doJSON(t, router, "POST", fmt.Sprintf("/player/%d/fleet/1/recall", userID), token, nil)
	assert.Equal(t, http.StatusBadRequest, status, "recall answered %v", body)

	status, _ = doJSON(t, router, "POST", fmt.Sprintf("/player/%d/fleet/oops/recall", userID), token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTradeRouteLifecycle(t *testing.T) {
	router := newTestServer().routes()

	sellerID, sellerToken := signUp(t, router, "seller")
	settleIn(t, router, sellerID, sellerToken, 1, 1, 1)
	buyerID, buyerToken := signUp(t, router, "buyer")
	settleIn(t, router, buyerID, buyerToken, 1, 2, 1)

	// An offer beyond the stockpile is refused.
	status, _ := doJSON(t, router, "POST", "/trade/offers", sellerToken, map[string]interface{}{
		"offered_resource":   "metal",
		"offered_amount":     1000000,
		"requested_resource": "crystal",
		"requested_amount":   10,
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body := doJSON(t, router, "POST", "/trade/offers", sellerToken, map[string]interface{}{
		"offered_resource":   "metal",
		"offered_amount":     100,
		"requested_resource": "crystal",
		"requested_amount":   50,
	})
	require.Equal(t, http.StatusCreated, status, "offer answered %v", body)

	offerID := int(body["id"].(float64))
	assert.Equal(t, "open", body["status"])

	status, body = doJSON(t, router, "GET", "/trade/offers", "", nil)
	require.Equal(t, http.StatusOK, status)
	offers, ok := body["offers"].([]interface{})
	require.True(t, ok)
	require.Len(t, offers, 1)

	// The seller may not accept its own offer.
	status, _ = doJSON(t, router, "POST", fmt.Sprintf("/trade/accept/%d", offerID), sellerToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, router, "POST", fmt.Sprintf("/trade/accept/%d", offerID), buyerToken, nil)
	require.Equal(t, http.StatusOK, status, "accept answered %v", body)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, float64(buyerID), body["accepted_by"])

	// Accepting twice fails since the offer is closed.
	status, _ = doJSON(t, router, "POST", fmt.Sprintf("/trade/accept/%d", offerID), buyerToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Both sides see the exchange in their history.
	status, body = doJSON(t, router, "GET", fmt.Sprintf("/player/%d/trade/history", buyerID), buyerToken, nil)
	require.Equal(t, http.StatusOK, status)
	history, ok := body["history"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, history)
	assert.Equal(t, "trade_completed", history[0].(map[string]interface{})["type"])
}

func TestMarketGuidance(t *testing.T) {
	router := newTestServer().routes()

	status, body := doJSON(t, router, "GET", "/market/guidance", "", nil)
	require.Equal(t, http.StatusOK, status)

	ratios, ok := body["exchange_ratios"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, ratios["metal"])
	assert.Equal(t, 1.5, ratios["crystal"])
	assert.Equal(t, 3.0, ratios["deuterium"])
	assert.Equal(t, 0.0, body["transaction_fee_rate"])
}

func TestBuildingCostsRoute(t *testing.T) {
	router := newTestServer().routes()

	status, body := doJSON(t, router, "GET", "/building-costs/metal_mine?level=3", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "metal_mine", body["building_type"])
	assert.Equal(t, 3.0, body["level"])

	cost, ok := body["cost"].(map[string]interface{})
	require.True(t, ok)
	assert.Greater(t, cost["metal"], 60.0)

	status, _ = doJSON(t, router, "GET", "/building-costs/unknown_thing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatusRoutes(t *testing.T) {
	router := newTestServer().routes()

	status, body := doJSON(t, router, "GET", "/game-status", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "running", body["status"])
	assert.Contains(t, body, "world")
	assert.Contains(t, body, "metrics")

	status, body = doJSON(t, router, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	// Without a database the probe reports it as disabled
	// rather than unhealthy.
	status, body = doJSON(t, router, "GET", "/healthz/db", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disabled", body["status"])

	status, body = doJSON(t, router, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "requests")
}

func TestRouterRejectsUnknownRoutesAndMethods(t *testing.T) {
	router := newTestServer().routes()

	status, _ := doJSON(t, router, "GET", "/no-such-route", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, router, "POST", "/game-status", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = doJSON(t, router, "DELETE", "/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

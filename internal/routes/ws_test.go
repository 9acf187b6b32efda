package routes

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsURL :
// Converts the input test server URL to its websocket form.
func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

// readEvent :
// Reads the next JSON frame with a deadline so that a broken
// hub cannot hang the test.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	event := make(map[string]interface{})
	require.NoError(t, conn.ReadJSON(&event))

	return event
}

func TestWebsocketWelcomeAndPing(t *testing.T) {
	server := newTestServer()
	srv := httptest.NewServer(server.routes())
	defer srv.Close()

	userID, token := signUp(t, server.routes(), "vasily")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readEvent(t, conn)
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, float64(userID), welcome["user_id"])

	// Both ping forms are answered.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "pong", readEvent(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readEvent(t, conn)["type"])

	// Anything else is acknowledged as an echo.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	info := readEvent(t, conn)
	assert.Equal(t, "info", info["type"])
	assert.Equal(t, "hello", info["message"])
}

func TestWebsocketRejectsInvalidToken(t *testing.T) {
	server := newTestServer()
	srv := httptest.NewServer(server.routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=not-a-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestHubDeliversEventsToConnectedUser(t *testing.T) {
	server := newTestServer()
	srv := httptest.NewServer(server.routes())
	defer srv.Close()

	userID, token := signUp(t, server.routes(), "vasily")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)

	server.Hub().Send(userID, map[string]interface{}{
		"type":      "building_complete",
		"building":  "metal_mine",
		"new_level": 2,
	})

	event := readEvent(t, conn)
	assert.Equal(t, "building_complete", event["type"])
	assert.Equal(t, "metal_mine", event["building"])

	// Events for other users never reach this connection.
	server.Hub().Send(userID+1, map[string]interface{}{"type": "noise"})
	server.Hub().Send(userID, map[string]interface{}{"type": "flush"})
	assert.Equal(t, "flush", readEvent(t, conn)["type"])
}

func TestHubShutdownClosesConnections(t *testing.T) {
	server := newTestServer()
	srv := httptest.NewServer(server.routes())
	defer srv.Close()

	_, token := signUp(t, server.routes(), "vasily")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)

	server.Hub().Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	// A late connection attempt is turned away the same way.
	late, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	defer late.Close()

	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
}

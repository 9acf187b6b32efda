package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"stellar_server/internal/game"
	"stellar_server/pkg/logger"

	"github.com/gorilla/websocket"
)

// writeTimeout :
// How long a single websocket write may block before the
// connection is considered broken.
const writeTimeout = 5 * time.Second

// socketClient :
// A single websocket connection. Writes are serialized by
// a dedicated lock since both the read loop and the event
// fan-out produce frames.
type socketClient struct {
	lock sync.Mutex
	conn *websocket.Conn
}

// send :
// Writes the input event as a JSON frame.
//
// Returns any error.
func (c *socketClient) send(event map[string]interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return c.conn.WriteJSON(event)
}

// close :
// Sends a close frame with the input code then tears the
// connection down.
func (c *socketClient) close(code int, reason string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.conn.Close()
}

// SocketHub :
// Fans the real time events produced by the simulation out
// to the connected websockets. A user may hold several
// connections at once; events addressed to a user reach all
// of them and a user without a connection is silently
// skipped.
type SocketHub struct {
	auth     *authenticator
	upgrader websocket.Upgrader
	log      logger.Logger

	lock    sync.Mutex
	conns   map[int]map[*socketClient]struct{}
	closing bool
}

// NewSocketHub :
// Creates an empty hub using the input authenticator to
// validate the connection tokens.
//
// Returns the created hub.
func NewSocketHub(auth *authenticator, log logger.Logger) *SocketHub {
	return &SocketHub{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[int]map[*socketClient]struct{}),
	}
}

// Send :
// Implementation of the `game.EventSink` interface. Events
// are delivered to every connection of the input user and
// broken connections are pruned along the way.
func (h *SocketHub) Send(userID int, event map[string]interface{}) {
	h.lock.Lock()
	clients := make([]*socketClient, 0, len(h.conns[userID]))
	for client := range h.conns[userID] {
		clients = append(clients, client)
	}
	h.lock.Unlock()

	for _, client := range clients {
		if err := client.send(event); err != nil {
			h.log.Trace(logger.Verbose, module, fmt.Sprintf("Dropping websocket of user %d (err: %v)", userID, err))
			h.unregister(userID, client)
			client.close(websocket.CloseAbnormalClosure, "")
		}
	}
}

// Shutdown :
// Closes every connection with a going away frame and
// refuses new ones.
func (h *SocketHub) Shutdown() {
	h.lock.Lock()
	h.closing = true
	all := make([]*socketClient, 0)
	for _, clients := range h.conns {
		for client := range clients {
			all = append(all, client)
		}
	}
	h.conns = make(map[int]map[*socketClient]struct{})
	h.lock.Unlock()

	for _, client := range all {
		client.close(websocket.CloseGoingAway, "server shutting down")
	}
}

// serveWS :
// Upgrades the request to a websocket. The token travels as
// a query parameter since browsers cannot set headers on a
// websocket handshake; an invalid token closes the fresh
// connection with a policy violation.
//
// Returns the handler to execute for this route.
func (h *SocketHub) serveWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to upgrade websocket (err: %v)", err))
			return
		}

		client := &socketClient{conn: conn}

		userID, err := h.auth.validateToken(r.URL.Query().Get("token"))
		if err != nil {
			client.close(websocket.ClosePolicyViolation, "invalid token")
			return
		}

		if !h.register(userID, client) {
			client.close(websocket.CloseGoingAway, "server shutting down")
			return
		}

		client.send(map[string]interface{}{
			"type":      "welcome",
			"user_id":   userID,
			"timestamp": game.FormatTime(game.Now()),
		})

		go h.readLoop(userID, client)
	}
}

// register :
// Adds the input connection to the user's set.
//
// Returns `false` when the hub is shutting down.
func (h *SocketHub) register(userID int, client *socketClient) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.closing {
		return false
	}

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*socketClient]struct{})
	}
	h.conns[userID][client] = struct{}{}

	return true
}

// unregister :
// Removes the input connection from the user's set.
func (h *SocketHub) unregister(userID int, client *socketClient) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if clients, ok := h.conns[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.conns, userID)
		}
	}
}

// readLoop :
// Consumes the frames sent by the client until the
// connection dies. A `ping` yields a `pong` and any other
// text is acknowledged with an `info` echo.
func (h *SocketHub) readLoop(userID int, client *socketClient) {
	defer func() {
		h.unregister(userID, client)
		client.conn.Close()
	}()

	for {
		kind, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		if isPing(raw) {
			client.send(map[string]interface{}{"type": "pong"})
			continue
		}

		client.send(map[string]interface{}{
			"type":    "info",
			"message": string(raw),
		})
	}
}

// isPing :
// Returns `true` for a bare `ping` text or a JSON object
// whose `type` is `ping`.
func isPing(raw []byte) bool {
	if string(raw) == "ping" {
		return true
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}

	kind, _ := payload["type"].(string)

	return kind == "ping"
}

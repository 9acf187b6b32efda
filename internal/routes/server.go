package routes

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"stellar_server/internal/data"
	"stellar_server/internal/game"
	"stellar_server/pkg/db"
	"stellar_server/pkg/dispatcher"
	"stellar_server/pkg/logger"
	"stellar_server/pkg/metrics"

	"github.com/gorilla/handlers"
)

// Server :
// Defines the request adapter sitting between the clients
// and the simulation. Read routes build snapshots directly
// from the world; mutating routes validate the request, then
// enqueue a command which the simulation applies at the
// start of the next tick.
//
// The `port` allows to determine which port should be used
// by the server to accept incoming requests. This is usually
// specified in the configuration so as not to conflict with
// any other API.
//
// The `world` represents the simulation this server adapts.
//
// The `bridge` gives access to the persistence layer, used
// by the account routes and to mirror deletions of durable
// rows.
//
// The `dbase` is only consulted by the health routes.
//
// The `collector` aggregates the request statistics exposed
// by the status routes.
//
// The `auth` issues and validates the access tokens.
//
// The `hub` fans the real time events out to the connected
// websockets.
//
// The `log` allows to perform most of the logging on any
// action done by the server such as logging clients'
// connections, errors and generally some elements useful
// to track the activity of the server.
type Server struct {
	port      int
	world     *game.World
	bridge    *data.Bridge
	dbase     *db.DB
	collector *metrics.Collector
	auth      *authenticator
	hub       *SocketHub
	log       logger.Logger

	srv *http.Server
}

// NewServer :
// Create a new server with the input elements to use
// internally to access data and perform logging.
//
// The `port` defines the port to listen to by the server.
//
// The `world` defines the simulation to adapt.
//
// The `bridge` defines the persistence access layer.
//
// The `dbase` represents a pointer to the database, only
// used for health reporting.
//
// The `collector` aggregates the server statistics.
//
// The `log` is used to notify from various processes in the
// server and keep track of the activity.
func NewServer(port int, world *game.World, bridge *data.Bridge, dbase *db.DB, collector *metrics.Collector, log logger.Logger) *Server {
	if world == nil {
		panic(fmt.Errorf("Cannot create server from empty world"))
	}

	auth := newAuthenticator(bridge, log)

	return &Server{
		port:      port,
		world:     world,
		bridge:    bridge,
		dbase:     dbase,
		collector: collector,
		auth:      auth,
		hub:       NewSocketHub(auth, log),
		log:       log,
	}
}

// Hub :
// Returns the websocket hub of this server, to be plugged
// into the world as its event sink.
func (s *Server) Hub() *SocketHub {
	return s.hub
}

// Serve :
// Used to start listening to the port associated to this
// server and handle incoming requests. This will return an
// error in case something went wrong while listening to the
// port. A graceful shutdown through the `Shutdown` method
// makes this return `http.ErrServerClosed`.
func (s *Server) Serve() error {
	router := s.routes()

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	chain := handlers.RecoveryHandler()(cors(s.observe(s.auth.throttle(router))))

	s.srv = &http.Server{
		Addr:    ":" + strconv.FormatInt(int64(s.port), 10),
		Handler: chain,
	}

	s.log.Trace(logger.Info, module, fmt.Sprintf("Serving on port %d", s.port))

	return s.srv.ListenAndServe()
}

// Shutdown :
// Stops accepting new requests, closes the websockets and
// waits for the in-flight requests to complete up to the
// input timeout.
//
// Returns any error.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.hub.Shutdown()

	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// routes :
// Used to setup all the routes able to be served by this
// server. All the routes are set up with the adequate
// handler. The dispatching favors the longest registered
// path so generic prefixes can coexist with more specific
// routes.
func (s *Server) routes() *dispatcher.Router {
	router := dispatcher.NewRouter(s.log)

	// Authentication.
	router.HandleFunc("/auth/register", dispatcher.WithSafetyNet(s.log, s.register())).Methods("POST")
	router.HandleFunc("/auth/login", dispatcher.WithSafetyNet(s.log, s.login())).Methods("POST")
	router.HandleFunc("/auth/me", dispatcher.WithSafetyNet(s.log, s.currentUser())).Methods("GET")
	router.HandleFunc("/auth/logout", dispatcher.WithSafetyNet(s.log, s.logout())).Methods("POST")

	// Player state and actions. The player identifier is
	// part of the path so a single prefix route dispatches
	// the sub-resources internally.
	router.HandleFunc("/player/", dispatcher.WithSafetyNet(s.log, s.playerRoutes())).Methods("GET", "POST", "DELETE")

	// Game data.
	router.HandleFunc("/building-costs/", dispatcher.WithSafetyNet(s.log, s.buildingCosts())).Methods("GET")
	router.HandleFunc("/planets/available", dispatcher.WithSafetyNet(s.log, s.availablePlanets())).Methods("GET")

	// Marketplace.
	router.HandleFunc("/trade/offers", dispatcher.WithSafetyNet(s.log, s.tradeOffers())).Methods("GET", "POST")
	router.HandleFunc("/trade/accept/", dispatcher.WithSafetyNet(s.log, s.acceptTradeOffer())).Methods("POST")
	router.HandleFunc("/market/guidance", dispatcher.WithSafetyNet(s.log, s.marketGuidance())).Methods("GET")

	// Notifications.
	router.HandleFunc("/notifications/", dispatcher.WithSafetyNet(s.log, s.deleteNotification())).Methods("DELETE")

	// Health and statistics.
	router.HandleFunc("/game-status", dispatcher.WithSafetyNet(s.log, s.gameStatus())).Methods("GET")
	router.HandleFunc("/healthz", dispatcher.WithSafetyNet(s.log, s.healthz())).Methods("GET")
	router.HandleFunc("/metrics", dispatcher.WithSafetyNet(s.log, s.metricsSnapshot())).Methods("GET")

	// Real time events.
	router.HandleFunc("/ws", s.hub.serveWS()).Methods("GET")

	return router
}

// observe :
// Middleware recording the status of every served request
// into the collector.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if s.collector != nil {
			s.collector.RecordRequest(recorder.status)
		}
	})
}

// statusRecorder :
// Response writer keeping track of the status answered to
// the client, used by the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack :
// Delegates to the wrapped writer so that the websocket
// upgrade keeps working behind the metrics middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}

	return hijacker.Hijack()
}

package dispatcher

import (
	"net/http"
	"stellar_server/pkg/logger"
)

// Router :
// Defines a generic router that can be used to simplify the
// handling of multiple routes for a server. It helps with
// the organization of the routes by providing some means to
// register routes with a specific path and method.
//
// The `notFoundHandler` defines the handler to use in case
// no route can be matched for a request.
//
// The `methodNotAllowedHandler` defines a handler that is
// called whenever a route is matched for a request but the
// method does not correspond to the defined route.
//
// The `routes` registers all the routes defined for this
// router so far. When a request is received it is routed
// towards the registered route with the longest matching
// path, so that `/player/` can coexist with more specific
// routes such as `/player/fleet/`.
//
// The `log` allows to notify the user of information and
// various errors produced by this element.
type Router struct {
	notFoundHandler         http.Handler
	methodNotAllowedHandler http.Handler
	routes                  []*Route
	log                     logger.Logger
}

// routeMatch :
// Stores the information about a matched route. Notably it
// indicates whether the route could be matched or not and
// some more info about how the route failed to match.
type routeMatch struct {
	handler http.Handler
	match   matching
	length  int
}

// NewRouter :
// Creates a new router with default handlers for not found
// and method not allowed and no route to match.
//
// Returns the created router.
func NewRouter(log logger.Logger) *Router {
	return &Router{
		notFoundHandler:         NotFound(log),
		methodNotAllowedHandler: NotAllowed(log),
		routes:                  make([]*Route, 0),
		log:                     log,
	}
}

// addRoute :
// Registers a new empty route in this router with the
// specified path. If the provided path is empty, the route
// will be associated to the '/' path.
//
// Returns the created route.
func (r *Router) addRoute(path string) *Route {
	if len(path) == 0 {
		path = "/"
	}

	route := NewRoute(path, r.log)

	r.routes = append(r.routes, route)

	return route
}

// HandleFunc :
// Registers a new route in the internal list of served routes
// with the provided path and associated handler. Note that
// the route will still be registered in case another route
// with a similar path is available: the most specific path
// wins when dispatching.
//
// Returns the created route.
func (r *Router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) *Route {
	return r.addRoute(path).HandlerFunc(f)
}

// ServeHTTP :
// Used to dispatch the input request to the best suited
// handler as registered in the internal routes. If none of
// the handlers is able to receive the request the `NotFound`
// handler is called.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var match routeMatch
	r.Match(req, &match)

	match.handler.ServeHTTP(w, req)
}

// Match :
// Attempts to match the given request against the router's
// registered routes. All the routes are traversed and the
// one defining the longest matching path is selected. In
// case no registered route can be matched, the `NotFound`
// handler is returned. In case the path could be matched
// but the method was not valid, the `NotAllowed` handler
// is returned.
//
// Returns `true` in case a route could be matched and
// `false` otherwise.
func (r *Router) Match(req *http.Request, m *routeMatch) bool {
	m.match = notFound
	m.length = -1

	for _, route := range r.routes {
		outcome := route.match(req)
		if outcome == notFound {
			continue
		}

		// Prefer the most specific of the matching routes.
		if len(route.name) <= m.length {
			continue
		}

		m.length = len(route.name)
		m.match = outcome
		if outcome == matched {
			m.handler = route.Handler()
		}
	}

	switch m.match {
	case matched:
		return true
	case methodNotAllowed:
		m.handler = r.methodNotAllowedHandler
		return false
	default:
		m.handler = r.notFoundHandler
		return false
	}
}

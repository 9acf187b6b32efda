package dispatcher

import (
	"net/http"
	"stellar_server/pkg/logger"
	"strings"
)

// matching :
// Convenience define allowing to reference the possible
// matching state for a route. It is used to precisely
// determine the best match for an input request.
type matching int

// Definition of the possible match states for a route.
const (
	notFound matching = iota
	methodNotAllowed
	matched
)

// Route :
// Defines a generic route which is a path that can be used
// to target a server. The route is composed of a path and a
// set of methods, which allows to only react to specific
// verbs on a dedicated route and to serve multiple request
// types on a single endpoint.
//
// The `methods` defines the HTTP verbs associated to this
// route. No request that doesn't match one of these verbs
// will be directed towards this route.
//
// The `name` of the route defines the actual endpoint to
// target to reach the route. Only absolute paths are
// considered.
//
// The `handler` defines the actual processing to call in
// case this route is triggered. It is initialized to a
// default `NoOp` handler.
//
// The `log` is used in case anything requires to notify
// the user of an error.
type Route struct {
	methods map[string]bool
	name    string
	handler http.Handler
	log     logger.Logger
}

// NewRoute :
// Used to create a new route with no associated methods and
// the specified path.
//
// Returns the created route.
func NewRoute(path string, log logger.Logger) *Route {
	return &Route{
		methods: make(map[string]bool),
		name:    path,
		handler: http.Handler(NoOp(log)),
		log:     log,
	}
}

// Handler :
// Returns the handler associated to this route. Should
// never be `nil`.
func (r *Route) Handler() http.Handler {
	return r.handler
}

// Methods :
// Registers the set of methods provided in input as valid
// methods to reach this route. Input methods are transformed
// into upper case verbs internally and invalid verbs are
// filtered out.
//
// Returns a reference to this route to allow chain calls.
func (r *Route) Methods(methods ...string) *Route {
	filtered := filterMethods(methods, r.log)

	for method := range filtered {
		r.methods[method] = true
	}

	return r
}

// HandlerFunc :
// Registers the provided handler func as the main processing
// function for this route.
//
// Returns this route, so that we can chain calls.
func (r *Route) HandlerFunc(f func(http.ResponseWriter, *http.Request)) *Route {
	r.handler = http.HandlerFunc(f)

	return r
}

// match :
// Used to verify whether this route can match the input
// request. It checks whether the path of the request is
// consistent with the path of the route and also performs
// a verification of the method.
//
// Returns the matching state for this route.
func (r *Route) match(req *http.Request) matching {
	path := req.URL.Path

	if !r.matchName(path) {
		return notFound
	}

	_, ok := r.methods[req.Method]
	if !ok {
		return methodNotAllowed
	}

	return matched
}

// matchName :
// Used to determine whether the input `uri` can be used to
// match the route name. This method makes sure that the `uri`
// not only shares a prefix with the route but that the prefix
// ends on a path boundary. Typically we will prevent matching
// of cases as described below:
//   - route: `/path/to/route`
//   - uri  : `/path/to/routeeeee`
//
// Returns `true` if the input uri can be matched with the
// route's name.
func (r *Route) matchName(uri string) bool {
	if !strings.HasPrefix(uri, r.name) {
		return false
	}

	// The prefix must stop at a path separator (or consume
	// the whole uri) to count as a match.
	rest := uri[len(r.name):]
	return len(rest) == 0 || strings.HasPrefix(rest, "/") || strings.HasSuffix(r.name, "/")
}

package dispatcher

import (
	"fmt"
	"net/http"
	"stellar_server/pkg/logger"
)

// module :
// Identifier used by this package when producing logs.
const module = "dispatcher"

// NotFound :
// Describes an `HTTP` handler which will only log a message
// through the provided logger whenever a request is received
// on the associated route.
//
// Returns a callable function that will log a message and
// return a `404` code in case of an incoming connection.
func NotFound(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, module, fmt.Sprintf("Handling request from \"%v\" in not found handler", r.URL))

		http.NotFound(w, r)
	}
}

// NotAllowed :
// Describes an `HTTP` handler indicating that the method
// used to contact this endpoint is not supported.
//
// Returns a callable function that will log a message and
// return a `405` code in case of an incoming connection.
func NotAllowed(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, module, fmt.Sprintf("Handling request from \"%v\" in not allowed handler", r.URL))

		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NoOp :
// Describes an empty `HTTP` handler which will only log a
// message whenever a request is received on the associated
// route. The return code indicates that the request was
// successful but nothing really happened.
//
// Returns a callable function that will log a message and
// return a `200` code in case of an incoming connection.
func NoOp(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, module, fmt.Sprintf("Handling request from \"%v\" in no op handler", r.URL))
	}
}

// WithSafetyNet :
// Wraps the call to the `HTTP` handler func in argument with
// an error handling mechanism which will recover from any
// panic issued by the handler. It will answer with an
// internal error code to the client and log a message to
// indicate the failure.
//
// Returns a callable function that will execute the `next`
// handler when called.
func WithSafetyNet(log logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()

			if err != nil {
				log.Trace(logger.Error, module, fmt.Sprintf("Recovering from unexpected panic (err: %v)", err))

				http.Error(w, "Unexpected error while processing request", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	}
}

package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// module :
// Identifier used by this package when producing logs.
const module = "routes"

// InternalServerErrorString :
// Used to provide a unique string that can be used in case an
// error occurs while serving a client request and we need to
// provide an answer.
//
// Returns a common string to indicate an error.
func InternalServerErrorString() string {
	return "Unexpected server error"
}

// extractRouteElems :
// Convenience method allowing to strip the input prefix from
// the route defined in an input request and split the rest on
// path boundaries. Typically a request on `/player/32/build`
// with the prefix `/player/` yields `["32", "build"]`.
//
// The `r` argument represents the request from which the route
// should be extracted.
//
// The `prefix` represents the prefix to be stripped from the
// input request.
//
// Returns the sanitized route elements or an error when the
// route is not consistent with the prefix.
func extractRouteElems(r *http.Request, prefix string) ([]string, error) {
	route := r.URL.Path

	if !strings.HasPrefix(route, prefix) {
		return nil, fmt.Errorf("cannot strip prefix \"%s\" from route \"%s\"", prefix, route)
	}

	route = strings.Trim(strings.TrimPrefix(route, prefix), "/")
	if len(route) == 0 {
		return []string{}, nil
	}

	return strings.Split(route, "/"), nil
}

// marshalAndSend :
// Used to send the input data after marshalling it to the
// provided response writer. In case the data cannot be
// marshalled a `500` error is returned.
//
// The `data` represents the data to send back to the client.
//
// The `w` represents the response writer to use to send data
// back.
//
// Returns any error encountered either when marshalling the
// data or when sending it.
func marshalAndSend(data interface{}, w http.ResponseWriter) error {
	return answerJSON(w, http.StatusOK, data)
}

// answerJSON :
// Similar to `marshalAndSend` but with an explicit status.
func answerJSON(w http.ResponseWriter, status int, data interface{}) error {
	out, err := json.Marshal(data)
	if err != nil {
		http.Error(w, InternalServerErrorString(), http.StatusInternalServerError)

		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(out)

	return err
}

// answerFailure :
// Answers the input status with a small JSON body carrying
// the textual reason of the failure.
func answerFailure(w http.ResponseWriter, status int, reason string) {
	out, _ := json.Marshal(map[string]string{"error": reason})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(out)
}

// decodeBody :
// Decodes the JSON body of the input request into a generic
// map. An empty body yields an empty map so that routes with
// optional payloads do not have to special case it.
//
// Returns the decoded payload or an error.
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	decoder := json.NewDecoder(r.Body)
	err := decoder.Decode(&out)
	if err != nil && err.Error() != "EOF" {
		return nil, fmt.Errorf("invalid request body (err: %v)", err)
	}

	return out, nil
}

// queryInt :
// Fetches an integer query parameter, falling back on the
// input default when missing or invalid.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if len(raw) == 0 {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return value
}

// paging :
// Fetches the common `limit` and `offset` query parameters,
// clamping them to sane values.
func paging(r *http.Request, defLimit int, maxLimit int) (int, int) {
	limit := queryInt(r, "limit", defLimit)
	offset := queryInt(r, "offset", 0)

	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

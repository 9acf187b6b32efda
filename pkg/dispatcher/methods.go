package dispatcher

import (
	"fmt"
	"stellar_server/pkg/logger"
	"strings"
)

// getSupportedMethods :
// Returns the list of `HTTP` verbs that can be used as valid
// filtering methods for a route.
func getSupportedMethods() map[string]bool {
	return map[string]bool{
		"GET":     true,
		"HEAD":    true,
		"POST":    true,
		"PUT":     true,
		"DELETE":  true,
		"CONNECT": true,
		"OPTIONS": true,
		"TRACE":   true,
		"PATCH":   true,
	}
}

// filterMethods :
// Consolidates the input methods to upper case verbs and
// filters out anything that is not a valid `HTTP` method.
func filterMethods(methods []string, log logger.Logger) map[string]bool {
	filtered := make(map[string]bool)
	supported := getSupportedMethods()

	for _, method := range methods {
		consolidated := strings.ToUpper(method)
		_, ok := supported[consolidated]

		if !ok {
			log.Trace(logger.Error, module, fmt.Sprintf("Filtering invalid HTTP method \"%s\"", method))
			continue
		}

		filtered[consolidated] = true
	}

	return filtered
}

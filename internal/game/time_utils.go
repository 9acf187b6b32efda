package game

import (
	"time"
)

// timeLayoutNaive :
// Fallback layout accepted when parsing timestamps coming
// from the database or from older save files which do not
// carry any timezone information. Such values are assumed
// to be expressed in the local timezone of the server.
const timeLayoutNaive = "2006-01-02T15:04:05"

// Now :
// Returns the current time normalized to UTC. All the
// simulation timestamps are kept in UTC so that values
// persisted to the database and values exchanged with
// clients agree with each other.
func Now() time.Time {
	return time.Now().UTC()
}

// FormatTime :
// Serializes a timestamp to the textual representation
// used on the wire and in the database.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime :
// Deserializes a timestamp from its textual representation.
// Timezone-aware values are converted to UTC while naive
// values are interpreted in the local timezone before the
// conversion.
//
// Returns the parsed time along with any parsing error.
func ParseTime(str string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, str)
	if err == nil {
		return t.UTC(), nil
	}

	t, err = time.ParseInLocation(timeLayoutNaive, str, time.Local)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

package duration

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration :
// A wrapper around the standard library duration to provide
// custom `JSON` marshalling so that it can support more than
// raw nanoseconds. Durations are serialized to their string
// representation (e.g. "1m30s") and can be unmarshalled from
// either a string or a number.
type Duration struct {
	time.Duration
}

// ErrInvalidInput :
// Indicates that the value provided as input cannot be
// unmarshalled into a valid duration.
var ErrInvalidInput = fmt.Errorf("could not unmarshal value to duration")

// NewDuration :
// Creates a new duration from a base time.Duration.
func NewDuration(t time.Duration) Duration {
	return Duration{
		t,
	}
}

// MarshalJSON :
// Implementation of the marshaller interface to be able to
// use this object out-of-the-box with the `encoding/json`
// package provided by the standard library.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON :
// Second facet of the marshaller interface which allows to
// extract the duration from raw bytes. Both numeric values
// (interpreted as nanoseconds) and strings are supported.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return ErrInvalidInput
	}
}

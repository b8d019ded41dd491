package common

import (
	"time"

	"github.com/invopop/jsonschema"
)

// Duration is a time.Duration that (un)marshals from strings such as "30s" or "1h30m".
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(data []byte) error {
	parsed, err := time.ParseDuration(string(data))
	if err != nil {
		return err
	}

	d.Duration = parsed

	return nil
}

// MarshalText renders the duration in Go duration syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// JSONSchema describes Duration as a string for the generated config schema.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: "Duration expressed in units: [ns, us, ms, s, m, h]",
		Examples: []interface{}{
			"1m",
			"300ms",
		},
	}
}

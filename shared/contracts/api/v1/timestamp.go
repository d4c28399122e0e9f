package v1

import (
	"bytes"
	"fmt"
	"time"
)

// naiveLayout is how the backend renders datetimes: no zone, microseconds.
const naiveLayout = "2006-01-02T15:04:05.000000"

// Timestamp is a backend datetime. Values without a zone offset are UTC.
type Timestamp struct {
	time.Time
}

// MarshalJSON writes the backend's naive UTC form, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(naiveLayout) + `"`), nil
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO 8601 datetimes.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timestamp: expected string, got %s", b)
	}
	s := string(b[1 : len(b)-1])

	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	// Fractional seconds of any precision parse against the bare layout.
	v, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp: %q: %w", s, err)
	}
	t.Time = v
	return nil
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ISO-8601 offset date-time layouts, most precise first. Seconds are optional.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// Time is a timestamp that travels as an ISO-8601 string with a zone offset.
// Decoding a value without an offset, or any other malformed value, is an error.
type Time struct {
	time.Time
}

// At wraps t for the wire.
func At(t time.Time) Time {
	return Time{Time: t}
}

// ParseTime parses an ISO-8601 offset date-time.
func ParseTime(s string) (Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Time{Time: t}, nil
		}
		lastErr = err
	}
	return Time{}, fmt.Errorf("invalid offset date-time %q: %w", s, lastErr)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("offset date-time must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

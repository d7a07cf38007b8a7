package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is an identifier the backend may send as either a JSON string or number
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// layouts tried after RFC 3339; none carries a zone, so they parse as UTC
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and ISO 8601 timestamps without a zone.
// The latter are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// timestamp decodes created_at; null and "" leave the zero time
type timestamp time.Time

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("created_at must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = timestamp(t)
	return nil
}

func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var raw struct {
		plain
		ID        ID        `json:"id"`
		CreatedAt timestamp `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session(raw.plain)
	s.ID = string(raw.ID)
	s.CreatedAt = time.Time(raw.CreatedAt)
	return nil
}

func (s *SessionSummary) UnmarshalJSON(data []byte) error {
	type plain SessionSummary
	var raw struct {
		plain
		ID        ID        `json:"id"`
		CreatedAt timestamp `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SessionSummary(raw.plain)
	s.ID = string(raw.ID)
	s.CreatedAt = time.Time(raw.CreatedAt)
	return nil
}

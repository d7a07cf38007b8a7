package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-19T08:15:30Z", time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)},
		{"2026-10-19T10:15:30+02:00", time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)},
		{"2026-10-19T08:15:30", time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)},
		{"2026-10-19T08:15:30.5", time.Date(2026, 10, 19, 8, 15, 30, 500000000, time.UTC)},
		{"2026-10-19 08:15:30", time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)},
		{"2026-10-19", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("ParseTimestamp(%q)=%v want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatal("free text should not parse")
	}
}

func TestSessionDecodeLenient(t *testing.T) {
	var sess Session
	data := `{"id":7,"created_at":"2026-10-19T08:15:30.123","title":"T","is_active":true,
		"messages":[{"role":"user","content":"hi"}]}`
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if sess.ID != "7" || sess.Title != "T" || !sess.IsActive || len(sess.Messages) != 1 {
		t.Fatalf("got %+v", sess)
	}
	if sess.CreatedAt.Location() != time.UTC || sess.CreatedAt.Nanosecond() != 123000000 {
		t.Fatalf("CreatedAt=%v", sess.CreatedAt)
	}

	if err := json.Unmarshal([]byte(`{"id":"x","created_at":"soon"}`), &sess); err == nil {
		t.Fatal("unparseable created_at should fail")
	}
}

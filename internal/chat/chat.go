package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Chat is a message thread scoped to an event, as returned by the chat listing.
type Chat struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	EventPK  int64     `json:"event_pk"`
	Warning  string    `json:"warning"`
	Messages []Message `json:"messages"`
}

// Message is one line of a chat. Messages have no identity beyond their position.
type Message struct {
	User      string    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt Timestamp `json:"created_at"`
}

// Snapshot is the body of one messages poll.
type Snapshot struct {
	Warning  string    `json:"warning"`
	Messages []Message `json:"messages"`
}

// Timestamp accepts either an epoch value in milliseconds or an ISO-8601 string.
type Timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05",
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		return ts.parseString(raw)
	}
	millis, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	if math.IsNaN(millis) || math.Abs(millis) >= math.MaxInt64 {
		return fmt.Errorf("timestamp %s: out of range", data)
	}
	ts.Time = time.UnixMilli(int64(millis))
	return nil
}

func (ts *Timestamp) parseString(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts.Time = time.UnixMilli(millis)
		return nil
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			ts.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// FormatTimestamp renders t as YYYY-MM-DD HH:mm in loc. A nil loc means local time.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

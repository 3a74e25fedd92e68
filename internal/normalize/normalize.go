// Package normalize turns raw chat-export records into canonical Events.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MalformedRecordError reports a record that failed validation. Callers skip
// and count these; they are never fatal to a batch.
type MalformedRecordError struct {
	SourceRef string
	Reason    string
}

func (e *MalformedRecordError) Error() string {
	if e.SourceRef == "" {
		return fmt.Sprintf("malformed record: %s", e.Reason)
	}
	return fmt.Sprintf("malformed record at %s: %s", e.SourceRef, e.Reason)
}

// Normalize validates a raw record and produces the canonical Event.
// seq is the arrival sequence number assigned by the caller; it orders
// events that share a timestamp.
func Normalize(rec RawRecord, seq int64) (Event, error) {
	if strings.TrimSpace(rec.Channel) == "" {
		return Event{}, &MalformedRecordError{SourceRef: rec.SourceRef, Reason: "missing channel"}
	}
	if strings.TrimSpace(rec.User) == "" {
		return Event{}, &MalformedRecordError{SourceRef: rec.SourceRef, Reason: "missing user"}
	}
	if strings.TrimSpace(rec.TS) == "" {
		return Event{}, &MalformedRecordError{SourceRef: rec.SourceRef, Reason: "missing timestamp"}
	}

	ts, err := ParseTimestamp(rec.TS)
	if err != nil {
		return Event{}, &MalformedRecordError{SourceRef: rec.SourceRef, Reason: fmt.Sprintf("unparsable timestamp %q", rec.TS)}
	}

	return Event{
		EntityKey: EntityKey(rec.Channel, rec.Thread),
		Timestamp: ts,
		Seq:       seq,
		Author:    rec.User,
		Text:      rec.Text,
		Reactors:  collectReactors(rec.Reactions),
	}, nil
}

// EntityKey partitions events into independent streams. Thread replies get
// their own stream so interleaved thread and channel messages never mix.
func EntityKey(channel, thread string) string {
	if thread == "" {
		return channel
	}
	return channel + "#" + thread
}

// ParseTimestamp accepts Slack epoch timestamps ("1700000000.123456") and
// RFC3339 with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	if isEpoch(s) {
		secs, frac, _ := strings.Cut(s, ".")
		sec, err := strconv.ParseInt(secs, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse epoch seconds: %w", err)
		}
		var nsec int64
		if frac != "" {
			f, err := strconv.ParseFloat("0."+frac, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse epoch fraction: %w", err)
			}
			nsec = int64(math.Round(f * float64(time.Second)))
		}
		return time.Unix(sec, nsec).UTC(), nil
	}

	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func isEpoch(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// collectReactors flattens reaction entries into a de-duplicated user list,
// preserving first-seen order.
func collectReactors(reactions []Reaction) []string {
	if len(reactions) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var users []string
	for _, r := range reactions {
		for _, u := range r.Users {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			users = append(users, u)
		}
	}
	return users
}

package normalize

import "time"

// RawRecord is a single row or line from a chat export, before validation.
// JSON tags match the Slack-style export shape; the CSV reader fills the
// same struct from named columns.
type RawRecord struct {
	Channel   string     `json:"channel"`
	Thread    string     `json:"thread_ts"`
	TS        string     `json:"ts"`
	User      string     `json:"user"`
	Text      string     `json:"text"`
	Reactions []Reaction `json:"reactions"`

	SourceRef string `json:"-"` // file + line/row, for error reporting
}

// Reaction is one emoji reaction entry on a message.
type Reaction struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

// Event is the canonical message event shared by the aggregator and encoder.
// Immutable once created.
type Event struct {
	EntityKey string
	Timestamp time.Time
	Seq       int64 // arrival sequence, breaks timestamp ties
	Author    string
	Text      string
	Reactors  []string // de-duplicated, insertion order
}

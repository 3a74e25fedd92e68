// Package window maintains per-entity trailing buffers and derives, for each
// appended event, a delayed history snapshot plus the set of users who
// engaged within the trailing window.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pythia/internal/normalize"
)

const (
	// DefaultShiftDelay and DefaultTrailingWindow mirror what the pipeline
	// has always run with. Both are configuration, not constants of the
	// problem: the delay controls how far before the triggering event the
	// snapshot is taken, the window controls how far back engagement is
	// attributed.
	DefaultShiftDelay     = time.Second
	DefaultTrailingWindow = time.Second
	DefaultMaxSnapshot    = 20
)

// Config holds the aggregator's windowing parameters.
type Config struct {
	ShiftDelay     time.Duration // Δ: snapshot cutoff = event time − Δ
	TrailingWindow time.Duration // W: engagement window = (event time − W, event time]
	MaxSnapshot    int           // K_max: snapshot length cap
}

func (c Config) withDefaults() Config {
	if c.ShiftDelay <= 0 {
		c.ShiftDelay = DefaultShiftDelay
	}
	if c.TrailingWindow <= 0 {
		c.TrailingWindow = DefaultTrailingWindow
	}
	if c.MaxSnapshot <= 0 {
		c.MaxSnapshot = DefaultMaxSnapshot
	}
	return c
}

// Emission is one candidate training example: the conversation as it looked
// before the shift cutoff, and everyone who engaged since.
type Emission struct {
	EntityKey string
	At        time.Time // timestamp of the triggering event
	Snapshot  []normalize.Event
	Engaged   []string // sorted for determinism; semantically a set
}

// Aggregator owns one mutable buffer per entity key. Buffers are independent:
// updates are serialized per key, with no cross-key coupling.
type Aggregator struct {
	cfg Config

	mu      sync.Mutex // guards buffers map only
	buffers map[string]*buffer
}

type buffer struct {
	mu     sync.Mutex
	events []normalize.Event // ordered by (timestamp, seq)
}

// New creates an aggregator, applying defaults for any unset parameter.
func New(cfg Config) *Aggregator {
	return &Aggregator{
		cfg:     cfg.withDefaults(),
		buffers: make(map[string]*buffer),
	}
}

// Append adds an event to its entity's buffer and derives the (snapshot,
// engagement) pair for that timestep. It returns false when the snapshot is
// empty, meaning no example should be emitted for this event.
//
// Events must arrive with non-decreasing timestamps per entity key; the
// batch builder sorts before feeding, the live processor drops regressions.
func (a *Aggregator) Append(ev normalize.Event) (Emission, bool) {
	buf := a.buffer(ev.EntityKey)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.events = append(buf.events, ev)

	cutoff := ev.Timestamp.Add(-a.cfg.ShiftDelay)
	windowStart := ev.Timestamp.Add(-a.cfg.TrailingWindow)

	// boundary = count of events at or before the snapshot cutoff.
	boundary := sort.Search(len(buf.events), func(i int) bool {
		return buf.events[i].Timestamp.After(cutoff)
	})

	snapshot := snapshotSlice(buf.events, boundary, a.cfg.MaxSnapshot)
	engaged := engagedSet(buf.events, windowStart)

	buf.evict(boundary, windowStart, a.cfg.MaxSnapshot)

	if len(snapshot) == 0 {
		return Emission{}, false
	}
	return Emission{
		EntityKey: ev.EntityKey,
		At:        ev.Timestamp,
		Snapshot:  snapshot,
		Engaged:   engaged,
	}, true
}

// Entities returns the number of distinct entity keys seen so far.
func (a *Aggregator) Entities() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

func (a *Aggregator) buffer(key string) *buffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[key]
	if !ok {
		buf = &buffer{}
		a.buffers[key] = buf
	}
	return buf
}

// snapshotSlice copies the last up-to-max events before the boundary.
func snapshotSlice(events []normalize.Event, boundary, max int) []normalize.Event {
	if boundary == 0 {
		return nil
	}
	start := boundary - max
	if start < 0 {
		start = 0
	}
	out := make([]normalize.Event, boundary-start)
	copy(out, events[start:boundary])
	return out
}

// engagedSet collects authors and reactors of events strictly after
// windowStart. The triggering event is always in range (its timestamp equals
// the window end), so the author of the newest message is always engaged.
func engagedSet(events []normalize.Event, windowStart time.Time) []string {
	seen := make(map[string]bool)
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if !ev.Timestamp.After(windowStart) {
			break
		}
		seen[ev.Author] = true
		for _, u := range ev.Reactors {
			seen[u] = true
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// evict drops events that can never again appear in a snapshot or engagement
// window: both boundaries only move forward, so anything older than the
// newest max events at-or-before the cutoff AND older than the trailing
// window start is dead. Bounds memory for live feeds.
func (b *buffer) evict(boundary int, windowStart time.Time, max int) {
	firstKeep := boundary - max
	if firstKeep <= 0 {
		return
	}
	// Keep anything still inside the trailing window.
	firstEngage := sort.Search(len(b.events), func(i int) bool {
		return b.events[i].Timestamp.After(windowStart)
	})
	if firstEngage < firstKeep {
		firstKeep = firstEngage
	}
	if firstKeep <= 0 {
		return
	}
	kept := make([]normalize.Event, len(b.events)-firstKeep)
	copy(kept, b.events[firstKeep:])
	b.events = kept
}

// Package processor feeds live chat messages from the bus into the window
// aggregator and publishes the resulting candidate examples.
package processor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pythia/internal/encode"
	"github.com/MikeSquared-Agency/pythia/internal/hermes"
	"github.com/MikeSquared-Agency/pythia/internal/normalize"
	"github.com/MikeSquared-Agency/pythia/internal/window"
)

// Publisher is the subset of the bus client the processor needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Stats is a point-in-time snapshot of live processing counters.
type Stats struct {
	Messages   int64 `json:"messages"`
	Malformed  int64 `json:"malformed"`
	OutOfOrder int64 `json:"out_of_order"`
	Examples   int64 `json:"examples"`
}

// Processor owns the live aggregator. Each entity's buffer is serialized
// inside the aggregator; the processor only guards its own counters.
type Processor struct {
	agg    *window.Aggregator
	bus    Publisher
	logger *slog.Logger

	mu     sync.Mutex
	seq    int64
	lastTS map[string]time.Time // per-entity regression guard
	stats  Stats
}

func New(agg *window.Aggregator, bus Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		agg:    agg,
		bus:    bus,
		logger: logger,
		lastTS: make(map[string]time.Time),
	}
}

// HandleMessageStored is the NATS handler for swarm.chronicle.message.stored.
func (p *Processor) HandleMessageStored(subject string, data []byte) {
	var evt hermes.MessageStoredEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse message event", "error", err)
		p.count(func(s *Stats) { s.Malformed++ })
		return
	}

	rec := normalize.RawRecord{
		Channel:   evt.Channel,
		Thread:    evt.Thread,
		TS:        evt.TS,
		User:      evt.User,
		Text:      evt.Text,
		SourceRef: subject,
	}
	for _, r := range evt.Reactions {
		rec.Reactions = append(rec.Reactions, normalize.Reaction{Name: r.Name, Users: r.Users})
	}

	ev, err := normalize.Normalize(rec, p.nextSeq())
	if err != nil {
		p.logger.Warn("skipping malformed message event", "error", err)
		p.count(func(s *Stats) { s.Malformed++ })
		return
	}

	// The aggregator requires non-decreasing timestamps per entity. NATS
	// preserves per-subject order, but a replayed or duplicated publisher
	// can still regress; drop those rather than corrupting the stream.
	if !p.admit(ev) {
		p.logger.Warn("dropping out-of-order message",
			"entity_key", ev.EntityKey,
			"ts", ev.Timestamp,
		)
		return
	}
	p.count(func(s *Stats) { s.Messages++ })

	em, ok := p.agg.Append(ev)
	if !ok {
		return // nothing before the shift cutoff yet
	}

	candidate := hermes.CandidateExample{
		EntityKey:    em.EntityKey,
		At:           em.At,
		Prompt:       encode.Prompt(em.Snapshot),
		EngagedUsers: em.Engaged,
	}
	if err := p.bus.Publish(hermes.SubjectExample, candidate); err != nil {
		p.logger.Error("failed to publish candidate example", "error", err)
		return
	}
	p.count(func(s *Stats) { s.Examples++ })
}

// Stats returns a copy of the live counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Processor) nextSeq() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return p.seq
}

func (p *Processor) admit(ev normalize.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastTS[ev.EntityKey]; ok && ev.Timestamp.Before(last) {
		p.stats.OutOfOrder++
		return false
	}
	p.lastTS[ev.EntityKey] = ev.Timestamp
	return true
}

func (p *Processor) count(fn func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

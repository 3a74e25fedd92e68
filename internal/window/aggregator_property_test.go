package window

import (
	"sort"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/MikeSquared-Agency/pythia/internal/normalize"
)

// drawEvents generates a globally ordered event stream over a handful of
// entity keys, with occasional equal timestamps and random reactors.
func drawEvents(rt *rapid.T) []normalize.Event {
	n := rapid.IntRange(1, 80).Draw(rt, "num_events")
	keys := []string{"ch1", "ch2", "ch1#thr"}
	users := []string{"A", "B", "C", "D", "E"}

	events := make([]normalize.Event, 0, n)
	at := base
	for i := 0; i < n; i++ {
		at = at.Add(time.Duration(rapid.IntRange(0, 3).Draw(rt, "gap_s")) * time.Second)
		var reactors []string
		for _, u := range users {
			if rapid.Bool().Draw(rt, "react") {
				reactors = append(reactors, u)
			}
		}
		events = append(events, normalize.Event{
			EntityKey: rapid.SampledFrom(keys).Draw(rt, "key"),
			Timestamp: at,
			Seq:       int64(i),
			Author:    rapid.SampledFrom(users).Draw(rt, "author"),
			Text:      rapid.StringMatching(`[a-z ]{1,12}`).Draw(rt, "text"),
			Reactors:  reactors,
		})
	}
	return events
}

func TestPropertyEmissionInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := Config{
			ShiftDelay:     time.Duration(rapid.IntRange(1, 5).Draw(rt, "shift_s")) * time.Second,
			TrailingWindow: time.Duration(rapid.IntRange(1, 5).Draw(rt, "window_s")) * time.Second,
			MaxSnapshot:    rapid.IntRange(1, 10).Draw(rt, "max_snapshot"),
		}
		agg := New(cfg)

		for _, ev := range drawEvents(rt) {
			em, ok := agg.Append(ev)
			if !ok {
				continue
			}

			if len(em.Snapshot) == 0 {
				rt.Fatal("emitted an empty snapshot")
			}
			if len(em.Snapshot) > cfg.MaxSnapshot {
				rt.Fatalf("snapshot length %d exceeds max %d", len(em.Snapshot), cfg.MaxSnapshot)
			}

			cutoff := ev.Timestamp.Add(-cfg.ShiftDelay)
			for i, sev := range em.Snapshot {
				if sev.EntityKey != ev.EntityKey {
					rt.Fatalf("snapshot event from foreign entity %q (want %q)", sev.EntityKey, ev.EntityKey)
				}
				if sev.Timestamp.After(cutoff) {
					rt.Fatalf("snapshot event at %v is after the cutoff %v", sev.Timestamp, cutoff)
				}
				if i > 0 && sev.Timestamp.Before(em.Snapshot[i-1].Timestamp) {
					rt.Fatalf("snapshot not chronological at %d", i)
				}
			}

			if !sort.StringsAreSorted(em.Engaged) {
				rt.Fatalf("engaged set not sorted: %v", em.Engaged)
			}
			seen := make(map[string]bool)
			for _, u := range em.Engaged {
				if seen[u] {
					rt.Fatalf("duplicate user %q in engaged set", u)
				}
				seen[u] = true
			}
			// The triggering author always engages.
			if !seen[ev.Author] {
				rt.Fatalf("trigger author %q missing from engaged set %v", ev.Author, em.Engaged)
			}
		}
	})
}

func TestPropertyReplayIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := Config{
			ShiftDelay:     time.Second,
			TrailingWindow: time.Duration(rapid.IntRange(1, 4).Draw(rt, "window_s")) * time.Second,
			MaxSnapshot:    rapid.IntRange(1, 8).Draw(rt, "max_snapshot"),
		}
		events := drawEvents(rt)

		run := func() []Emission {
			agg := New(cfg)
			var out []Emission
			for _, ev := range events {
				if em, ok := agg.Append(ev); ok {
					out = append(out, em)
				}
			}
			return out
		}

		a, b := run(), run()
		if len(a) != len(b) {
			rt.Fatalf("emission counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i].EntityKey != b[i].EntityKey || !a[i].At.Equal(b[i].At) {
				rt.Fatalf("emission %d differs between runs", i)
			}
			if len(a[i].Snapshot) != len(b[i].Snapshot) || len(a[i].Engaged) != len(b[i].Engaged) {
				rt.Fatalf("emission %d contents differ between runs", i)
			}
			for j := range a[i].Engaged {
				if a[i].Engaged[j] != b[i].Engaged[j] {
					rt.Fatalf("emission %d engaged[%d] differs", i, j)
				}
			}
		}
	})
}

package engine

import (
	"sort"
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

// SortEvents orders a unioned multi-source stream deterministically:
// timestamp, then source, then source sequence number, then id.
func SortEvents(events []event.RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.DedupKey() < b.DedupKey()
	})
}

// Dedup drops an event when the last kept event with the same dedup key
// happened no more than window earlier. events must be sorted.
// Kept events sharing a key are always more than window apart, so running
// Dedup on its own output removes nothing.
func Dedup(events []event.RawEvent, window time.Duration) (kept, removed []event.RawEvent) {
	last := make(map[string]time.Time)
	kept = make([]event.RawEvent, 0, len(events))

	for _, ev := range events {
		key := ev.DedupKey()
		if prev, ok := last[key]; ok && ev.Timestamp.Sub(prev) <= window {
			removed = append(removed, ev)
			continue
		}
		last[key] = ev.Timestamp
		kept = append(kept, ev)
	}
	return kept, removed
}

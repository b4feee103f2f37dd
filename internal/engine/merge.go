package engine

import (
	"sort"
	"strconv"
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

// MergeOptions controls how intervals coalesce into sessions.
type MergeOptions struct {
	// Threshold is the largest end-to-start gap that still merges.
	Threshold time.Duration

	// Barriers are idle-period starts; intervals starting on opposite
	// sides of a barrier never merge. Must be sorted.
	Barriers []time.Time

	// Context is the full sorted event stream, used to detect interruptions.
	Context []event.RawEvent
}

// Merge coalesces intervals sharing a kind and label into sessions.
// Two neighbours merge when the gap between them is within Threshold, no
// idle barrier separates their starts, and no event of another non-idle
// kind happened inside the gap. Intervals are sorted per label group first,
// so the result does not depend on input order.
func Merge(intervals []Interval, opts MergeOptions) []Session {
	groups := make(map[string][]Interval)
	for _, iv := range intervals {
		key := string(iv.Kind) + "\x1f" + event.Normalize(iv.Label)
		groups[key] = append(groups[key], iv)
	}

	var sessions []Session
	for _, group := range groups {
		sortIntervals(group)

		cur := newBuilder(group[0])
		for _, next := range group[1:] {
			if cur.accepts(next, opts) {
				cur.absorb(next)
				continue
			}
			sessions = append(sessions, cur.session())
			cur = newBuilder(next)
		}
		sessions = append(sessions, cur.session())
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return sessions
}

func sortIntervals(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Events[0].ID < b.Events[0].ID
	})
}

// sessionBuilder accumulates one session while walking a label group.
type sessionBuilder struct {
	first     Interval
	end       time.Time
	lastStart time.Time
	declared  time.Duration
	events    []event.RawEvent
}

func newBuilder(iv Interval) *sessionBuilder {
	return &sessionBuilder{
		first:     iv,
		end:       iv.End,
		lastStart: iv.Start,
		declared:  iv.Declared,
		events:    append([]event.RawEvent(nil), iv.Events...),
	}
}

func (b *sessionBuilder) accepts(next Interval, opts MergeOptions) bool {
	gap := next.Start.Sub(b.end)
	if gap > opts.Threshold {
		return false
	}
	if barrierBetween(opts.Barriers, b.lastStart, next.Start) {
		return false
	}
	if gap > 0 && interrupted(opts.Context, b.first.Kind, b.end, next.Start) {
		return false
	}
	return true
}

func (b *sessionBuilder) absorb(next Interval) {
	// Zero-length intervals join as proof without stretching the session.
	zero := !next.Instant && !next.End.After(next.Start)
	if !zero && next.End.After(b.end) {
		b.end = next.End
	}
	b.lastStart = next.Start
	b.declared += next.Declared
	b.events = append(b.events, next.Events...)
}

func (b *sessionBuilder) session() Session {
	SortEvents(b.events)
	s := Session{
		Kind:   b.first.Kind,
		Label:  b.first.Label,
		Start:  b.first.Start,
		End:    b.end,
		Events: b.events,
	}
	if b.first.Instant {
		s.Duration = b.declared
	} else {
		s.Duration = s.End.Sub(s.Start)
	}
	for _, ev := range s.Events {
		if s.Source == "" {
			s.Source = ev.Source
		}
		if s.Hint == "" {
			s.Hint = ev.Payload.CategoryHint
		}
	}
	s.ID = shortHash("s_",
		string(s.Kind),
		event.Normalize(s.Label),
		strconv.FormatInt(s.Start.UnixNano(), 10),
		strconv.FormatInt(s.End.UnixNano(), 10),
	)
	return s
}

// barrierBetween reports whether some barrier b satisfies from < b <= to.
func barrierBetween(barriers []time.Time, from, to time.Time) bool {
	i := sort.Search(len(barriers), func(i int) bool { return barriers[i].After(from) })
	return i < len(barriers) && !barriers[i].After(to)
}

// interrupted reports whether an event of a different, non-idle kind
// happened strictly between from and to.
func interrupted(events []event.RawEvent, kind event.Kind, from, to time.Time) bool {
	i := sort.Search(len(events), func(i int) bool { return events[i].Timestamp.After(from) })
	for ; i < len(events) && events[i].Timestamp.Before(to); i++ {
		k := events[i].Kind()
		if k != kind && k != event.KindIdle {
			return true
		}
	}
	return false
}

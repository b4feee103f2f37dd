package engine

import (
	"sort"
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

// Interval is a timed piece of activity before merging.
type Interval struct {
	Kind  event.Kind
	Label string
	Start time.Time
	End   time.Time

	// Instant marks duration-only entries; their time comes from Declared.
	Instant  bool
	Declared time.Duration

	Events []event.RawEvent
}

// length is the time this interval contributes on its own.
func (iv Interval) length() time.Duration {
	if iv.Instant {
		return iv.Declared
	}
	return iv.End.Sub(iv.Start)
}

// BuildIntervals converts sorted, deduplicated events into intervals.
// Focus, app, window and browser events span their declared duration.
// Meetings pair a start with the next end of the same name; an unpaired
// start or end uses its declared duration, or is zero-length without one.
// Manual entries are instants carrying a declared duration. Idle events
// produce no intervals; see IdlePeriods and ClipIdle.
func BuildIntervals(events []event.RawEvent) []Interval {
	var out []Interval
	open := make(map[string]event.RawEvent)

	for _, ev := range events {
		switch ev.Kind() {
		case event.KindActivity, event.KindBrowser:
			out = append(out, Interval{
				Kind:   ev.Kind(),
				Label:  ev.Label(),
				Start:  ev.Timestamp,
				End:    ev.Timestamp.Add(ev.Duration()),
				Events: []event.RawEvent{ev},
			})

		case event.KindManual:
			out = append(out, Interval{
				Kind:     event.KindManual,
				Label:    ev.Label(),
				Start:    ev.Timestamp,
				End:      ev.Timestamp,
				Instant:  true,
				Declared: ev.Duration(),
				Events:   []event.RawEvent{ev},
			})

		case event.KindMeeting:
			name := event.Normalize(ev.Payload.Meeting)
			if ev.Type == event.MeetingStart {
				if prev, ok := open[name]; ok {
					out = append(out, loneMeeting(prev))
				}
				open[name] = ev
				continue
			}
			start, ok := open[name]
			if !ok {
				out = append(out, loneMeeting(ev))
				continue
			}
			delete(open, name)
			out = append(out, Interval{
				Kind:   event.KindMeeting,
				Label:  start.Label(),
				Start:  start.Timestamp,
				End:    ev.Timestamp,
				Events: []event.RawEvent{start, ev},
			})
		}
	}

	// Flush starts that never saw an end, in chronological order.
	pending := make([]event.RawEvent, 0, len(open))
	for _, ev := range open {
		pending = append(pending, ev)
	}
	SortEvents(pending)
	for _, ev := range pending {
		out = append(out, loneMeeting(ev))
	}
	return out
}

// loneMeeting builds an interval from an unpaired meeting event.
func loneMeeting(ev event.RawEvent) Interval {
	iv := Interval{
		Kind:   event.KindMeeting,
		Label:  ev.Label(),
		Start:  ev.Timestamp,
		End:    ev.Timestamp,
		Events: []event.RawEvent{ev},
	}
	if d := ev.Duration(); d > 0 {
		if ev.Type == event.MeetingStart {
			iv.End = ev.Timestamp.Add(d)
		} else {
			iv.Start = ev.Timestamp.Add(-d)
		}
	}
	return iv
}

// IdlePeriod is an idle stretch longer than the idle threshold.
type IdlePeriod struct {
	Start time.Time
	End   time.Time
}

// IdlePeriods returns the idle periods longer than threshold, ordered by
// start. A period is an idle_start followed by the next idle_end, or a lone
// idle event that declares idle_seconds. events must be sorted.
func IdlePeriods(events []event.RawEvent, threshold time.Duration) []IdlePeriod {
	var periods []IdlePeriod
	var pending *event.RawEvent

	add := func(start, end time.Time) {
		if end.Sub(start) > threshold {
			periods = append(periods, IdlePeriod{Start: start, End: end})
		}
	}
	flush := func(ev event.RawEvent) {
		if d := ev.IdleDuration(); d > 0 {
			add(ev.Timestamp, ev.Timestamp.Add(d))
		}
	}

	for i := range events {
		ev := events[i]
		switch ev.Type {
		case event.IdleStart:
			if pending != nil {
				flush(*pending)
			}
			pending = &ev
		case event.IdleEnd:
			if pending != nil {
				add(pending.Timestamp, ev.Timestamp)
				pending = nil
				continue
			}
			if d := ev.IdleDuration(); d > 0 {
				add(ev.Timestamp.Add(-d), ev.Timestamp)
			}
		}
	}
	if pending != nil {
		flush(*pending)
	}

	sort.Slice(periods, func(i, j int) bool {
		if !periods[i].Start.Equal(periods[j].Start) {
			return periods[i].Start.Before(periods[j].Start)
		}
		return periods[i].End.Before(periods[j].End)
	})
	return periods
}

// IdleBarriers returns the start instants of the idle periods longer than
// threshold, in order.
func IdleBarriers(events []event.RawEvent, threshold time.Duration) []time.Time {
	return Barriers(IdlePeriods(events, threshold))
}

// Barriers returns the start instant of each period.
func Barriers(periods []IdlePeriod) []time.Time {
	if len(periods) == 0 {
		return nil
	}
	out := make([]time.Time, len(periods))
	for i, p := range periods {
		out[i] = p.Start
	}
	return out
}

// ClipIdle ends activity and browser intervals at the start of any idle
// period they overlap and resumes them at its end, so idle time is never
// counted. Parts that fall entirely inside idle time are dropped. Meetings,
// manual entries and zero-length intervals pass through. periods must be
// ordered by start.
func ClipIdle(intervals []Interval, periods []IdlePeriod) []Interval {
	if len(periods) == 0 {
		return intervals
	}
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Instant || !iv.End.After(iv.Start) ||
			(iv.Kind != event.KindActivity && iv.Kind != event.KindBrowser) {
			out = append(out, iv)
			continue
		}

		rest := iv
		for _, p := range periods {
			if !p.Start.Before(rest.End) {
				break
			}
			if !p.End.After(rest.Start) {
				continue
			}
			if p.Start.After(rest.Start) {
				head := rest
				head.End = p.Start
				out = append(out, head)
			}
			rest.Start = p.End
			if !rest.Start.Before(rest.End) {
				break
			}
		}
		if rest.Start.Before(rest.End) {
			out = append(out, rest)
		}
	}
	return out
}

package engine

import (
	"fmt"
	"time"

	"github.com/hpungsan/daylog/internal/errors"
)

// DateLayout is the ISO date format used for logical days.
const DateLayout = "2006-01-02"

// Partitioner assigns instants to logical work days.
// A day D runs from D at CutoffHour (local) to D+1 at CutoffHour.
type Partitioner struct {
	loc    *time.Location
	cutoff int
}

// Span is the part of an interval that falls inside one logical day.
type Span struct {
	Day   string
	Start time.Time
	End   time.Time
}

// NewPartitioner loads the timezone and checks the cutoff hour.
func NewPartitioner(timezone string, cutoffHour int) (*Partitioner, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.NewConfiguration("timezone", fmt.Sprintf("unknown time zone %q", timezone))
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		return nil, errors.NewConfiguration("cutoff_hour", "must be between 0 and 23")
	}
	return &Partitioner{loc: loc, cutoff: cutoffHour}, nil
}

// Location returns the configured timezone.
func (p *Partitioner) Location() *time.Location {
	return p.loc
}

// Day returns the logical day t belongs to.
func (p *Partitioner) Day(t time.Time) string {
	lt := t.In(p.loc)
	y, m, d := lt.Date()
	if lt.Hour() < p.cutoff {
		d--
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// Bounds returns the half-open instant range [start, end) of a logical day.
func (p *Partitioner) Bounds(day string) (time.Time, time.Time, error) {
	d, err := time.Parse(DateLayout, day)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("date must be YYYY-MM-DD: %q", day))
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), p.cutoff, 0, 0, 0, p.loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, p.cutoff, 0, 0, 0, p.loc)
	return start, end, nil
}

// Split cuts [start, end] at every logical-day boundary it crosses.
// A zero-length interval yields a single span on its own day. Each span's
// length is the wall-clock time on its side of the boundary.
func (p *Partitioner) Split(start, end time.Time) []Span {
	start, end = start.In(p.loc), end.In(p.loc)
	day := p.Day(start)
	if !end.After(start) {
		return []Span{{Day: day, Start: start, End: start}}
	}

	var spans []Span
	for start.Before(end) {
		_, dayEnd, _ := p.Bounds(day)
		pieceEnd := end
		if dayEnd.Before(end) {
			pieceEnd = dayEnd.In(p.loc)
		}
		if !pieceEnd.After(start) {
			break
		}
		spans = append(spans, Span{Day: day, Start: start, End: pieceEnd})
		start = pieceEnd
		day = p.Day(start)
	}
	return spans
}

// Clip keeps the part of each interval that falls inside day, splitting
// intervals that cross a day boundary. Times are converted to the
// configured timezone. Instants stay whole on the day of their timestamp.
func (p *Partitioner) Clip(intervals []Interval, day string) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Instant {
			if p.Day(iv.Start) == day {
				iv.Start, iv.End = iv.Start.In(p.loc), iv.End.In(p.loc)
				out = append(out, iv)
			}
			continue
		}
		for _, span := range p.Split(iv.Start, iv.End) {
			if span.Day != day {
				continue
			}
			piece := iv
			piece.Start, piece.End = span.Start, span.End
			out = append(out, piece)
		}
	}
	return out
}

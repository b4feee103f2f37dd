// Package engine turns a raw activity event log into a day report of
// proof-linked accomplishment bullets.
package engine

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/event"
)

// Engine runs the aggregation pipeline with one fixed set of settings.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	settings    Settings
	partitioner *Partitioner
	categorizer *Categorizer
	log         *zap.Logger
}

// New validates settings and prepares an engine.
func New(settings Settings, log *zap.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p, err := NewPartitioner(settings.Timezone, settings.CutoffHour)
	if err != nil {
		return nil, err
	}
	c, err := NewCategorizer(settings.Rules)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{settings: settings, partitioner: p, categorizer: c, log: log}, nil
}

// Partitioner exposes the engine's day partitioner.
func (e *Engine) Partitioner() *Partitioner {
	return e.partitioner
}

// Bounds returns the instant range of a logical day.
func (e *Engine) Bounds(day string) (time.Time, time.Time, error) {
	return e.partitioner.Bounds(day)
}

// Build computes the report for logical day from events. events may
// include neighbouring days; only activity inside day is reported.
// Malformed events are skipped and counted, never fatal.
func (e *Engine) Build(day string, events []event.RawEvent) (*Report, error) {
	dayStart, dayEnd, err := e.partitioner.Bounds(day)
	if err != nil {
		return nil, err
	}
	inDay := func(t time.Time) bool {
		return !t.Before(dayStart) && t.Before(dayEnd)
	}

	var meta Metadata
	valid := make([]event.RawEvent, 0, len(events))
	for _, ev := range events {
		if err := event.Validate(ev); err != nil {
			if ev.Timestamp.IsZero() || inDay(ev.Timestamp) {
				meta.SkippedCount++
				e.log.Warn("skipping malformed event",
					zap.String("day", day),
					zap.String("id", ev.ID),
					zap.String("type", string(ev.Type)),
					zap.Error(err))
			}
			continue
		}
		if ev.ID == "" {
			ev.ID = fallbackID(ev)
		}
		valid = append(valid, ev)
	}

	SortEvents(valid)
	kept, removed := Dedup(valid, e.settings.DedupWindow)
	for _, ev := range removed {
		if inDay(ev.Timestamp) {
			meta.DuplicateCount++
		}
	}
	for _, ev := range kept {
		if inDay(ev.Timestamp) {
			meta.EventCount++
		}
	}

	idlePeriods := IdlePeriods(kept, e.settings.IdleThreshold)
	intervals := e.partitioner.Clip(ClipIdle(BuildIntervals(kept), idlePeriods), day)
	sessions := Merge(intervals, MergeOptions{
		Threshold: e.settings.MergeThreshold,
		Barriers:  Barriers(idlePeriods),
		Context:   kept,
	})

	categorized := make([]CategorizedSession, len(sessions))
	var total time.Duration
	for i, s := range sessions {
		categorized[i] = e.categorizer.Categorize(s)
		total += s.Duration
	}

	bullets, omitted := Synthesize(categorized, e.settings.MinSignificance)
	meta.SessionCount = len(sessions)
	meta.OmittedCount = omitted.Count
	meta.OmittedSeconds = omitted.Duration.Seconds()
	meta.TotalSeconds = total.Seconds()

	report := Assemble(day, bullets, meta)
	report.Timezone = e.partitioner.Location().String()
	report.CutoffHour = e.settings.CutoffHour

	e.log.Debug("built report",
		zap.String("day", day),
		zap.Int("events", meta.EventCount),
		zap.Int("sessions", meta.SessionCount),
		zap.Int("bullets", len(report.Bullets)))
	return report, nil
}

// fallbackID names events that arrived without an id from their content,
// so the name does not depend on input order.
func fallbackID(ev event.RawEvent) string {
	return shortHash("ev_",
		string(ev.Type),
		strconv.FormatInt(ev.Timestamp.UnixNano(), 10),
		ev.Source,
		ev.DedupKey(),
		strconv.FormatFloat(ev.Payload.DurationSeconds, 'f', -1, 64),
		strconv.FormatFloat(ev.Payload.IdleSeconds, 'f', -1, 64),
		ev.Payload.CategoryHint,
	)
}

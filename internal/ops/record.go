package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
)

// RecordInput contains parameters for the Record operation.
type RecordInput struct {
	Type      event.Type
	Timestamp time.Time // default: now
	Source    string    // default: "manual"
	Seq       int64
	Payload   event.Payload
}

// RecordOutput contains the result of the Record operation.
type RecordOutput struct {
	ID        string     `json:"id"`
	Type      event.Type `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Day       string     `json:"day"`
}

// Record validates one event and appends it to the log.
// Malformed events are rejected with MALFORMED_EVENT and nothing is written.
func Record(ctx context.Context, env *Env, input RecordInput) (*RecordOutput, error) {
	now := env.Now()

	ev := event.RawEvent{
		Type:      event.Type(strings.TrimSpace(string(input.Type))),
		Timestamp: input.Timestamp,
		Source:    strings.TrimSpace(input.Source),
		Seq:       input.Seq,
		Payload:   input.Payload,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	if ev.Source == "" {
		ev.Source = DefaultSource
	}
	if input.Seq < 0 {
		return nil, errors.NewInvalidRequest("seq must not be negative")
	}

	if err := event.Validate(ev); err != nil {
		return nil, err
	}

	eng, err := env.Engine()
	if err != nil {
		return nil, err
	}

	id, err := newID(ev.Timestamp)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	ev.ID = id

	if err := db.InsertEvent(ctx, env.DB, ev, now.Unix()); err != nil {
		return nil, err
	}

	return &RecordOutput{
		ID:        ev.ID,
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Day:       eng.Partitioner().Day(ev.Timestamp),
	}, nil
}

package ops

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

// eventMargin widens the event query around a day so intervals that
// start the day before (or pair with an end the day after) are seen.
const eventMargin = 24 * time.Hour

// GenerateInput contains parameters for the Generate operation.
type GenerateInput struct {
	Date string // YYYY-MM-DD logical day; default: today
}

// GenerateOutput contains the result of the Generate operation.
type GenerateOutput struct {
	Date     string          `json:"date"`
	Path     string          `json:"path"`
	Bullets  int             `json:"bullets"`
	Metadata engine.Metadata `json:"metadata"`
}

// Generate builds the report for one logical day and writes it to
// reports/<date>.json. Generation for the same day is serialized; the
// artifact is replaced atomically, so a failed run leaves the previous
// artifact (or none) in place.
func Generate(ctx context.Context, env *Env, input GenerateInput) (*GenerateOutput, error) {
	eng, err := env.Engine()
	if err != nil {
		return nil, err
	}

	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = eng.Partitioner().Day(env.Now())
	}
	return generateDay(ctx, env, eng, date)
}

func generateDay(ctx context.Context, env *Env, eng *engine.Engine, date string) (*GenerateOutput, error) {
	start, end, err := eng.Bounds(date)
	if err != nil {
		return nil, err
	}

	unlock := env.locks.lock(date)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	events, err := db.ListEventsBetween(ctx, env.DB, start.Add(-eventMargin), end.Add(eventMargin))
	if err != nil {
		return nil, err
	}

	report, err := eng.Build(date, events)
	if err != nil {
		return nil, err
	}

	path := env.ReportPath(date)
	err = writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	env.Log.Info("report written",
		zap.String("date", date),
		zap.String("path", path),
		zap.Int("bullets", len(report.Bullets)),
		zap.Int("skipped", report.Metadata.SkippedCount))

	return &GenerateOutput{
		Date:     date,
		Path:     path,
		Bullets:  len(report.Bullets),
		Metadata: report.Metadata,
	}, nil
}

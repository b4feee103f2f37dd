package ops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

// BackfillInput contains parameters for the Backfill operation.
// With both dates empty the whole event log is covered.
type BackfillInput struct {
	From string // YYYY-MM-DD, inclusive
	To   string // YYYY-MM-DD, inclusive; default: From, or today
}

// BackfillOutput contains the result of the Backfill operation.
type BackfillOutput struct {
	Dates   []string `json:"dates"`
	Bullets int      `json:"bullets"`
	Empty   int      `json:"empty"`
}

// Backfill regenerates every logical day in a range. Days are independent,
// so they run in parallel up to backfill_concurrency; the first failure
// cancels the rest.
func Backfill(ctx context.Context, env *Env, input BackfillInput) (*BackfillOutput, error) {
	eng, err := env.Engine()
	if err != nil {
		return nil, err
	}

	dates, err := backfillDates(ctx, env, eng, input)
	if err != nil {
		return nil, err
	}

	limit := env.Config.BackfillConcurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	out := &BackfillOutput{Dates: dates}
	for _, date := range dates {
		g.Go(func() error {
			res, err := generateDay(gctx, env, eng, date)
			if err != nil {
				return fmt.Errorf("%s: %w", date, err)
			}
			mu.Lock()
			out.Bullets += res.Bullets
			if res.Bullets == 0 {
				out.Empty++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// backfillDates expands the input into an ascending list of days.
func backfillDates(ctx context.Context, env *Env, eng *engine.Engine, input BackfillInput) ([]string, error) {
	from := strings.TrimSpace(input.From)
	to := strings.TrimSpace(input.To)
	p := eng.Partitioner()

	if from == "" && to == "" {
		first, last, ok, err := db.EventSpan(ctx, env.DB)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []string{}, nil
		}
		from, to = p.Day(first), p.Day(last)
	}
	if from == "" {
		return nil, errors.NewInvalidRequest("from is required when to is set")
	}
	if to == "" {
		to = p.Day(env.Now())
		if to < from {
			to = from
		}
	}

	start, err := time.Parse(engine.DateLayout, from)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("from must be YYYY-MM-DD: %q", from))
	}
	end, err := time.Parse(engine.DateLayout, to)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("to must be YYYY-MM-DD: %q", to))
	}
	if end.Before(start) {
		return nil, errors.NewInvalidRequest("to must not be before from")
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(dates) == MaxBackfillDays {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("range exceeds %d days", MaxBackfillDays))
		}
		dates = append(dates, d.Format(engine.DateLayout))
	}
	return dates, nil
}

// Package scheduler regenerates reports on a cron schedule while
// `daylog serve` runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/ops"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs report generation for the current and previous logical
// day each time the configured schedule fires.
type Scheduler struct {
	env      *ops.Env
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
}

// New validates the configured schedule. It returns nil, nil when the
// schedule is empty (scheduling disabled).
func New(env *ops.Env) (*Scheduler, error) {
	spec := env.Config.Schedule
	if spec == "" {
		return nil, nil
	}

	eng, err := env.Engine()
	if err != nil {
		return nil, err
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, errors.NewConfiguration("schedule", fmt.Sprintf("invalid cron spec %q: %v", spec, err))
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(eng.Partitioner().Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{env: env, cron: c, schedule: schedule, spec: spec}
	c.Schedule(schedule, cron.FuncJob(s.fire))
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.env.Log.Info("scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next", s.Next(s.env.Now())))
	s.cron.Start()
}

// Stop stops the ticker and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the first firing time after t in the configured timezone.
func (s *Scheduler) Next(t time.Time) time.Time {
	loc := s.cron.Location()
	return s.schedule.Next(t.In(loc))
}

func (s *Scheduler) fire() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.env.Log.Error("scheduled generation failed", zap.Error(err))
	}
}

// RunOnce regenerates the previous logical day and then today. The
// previous day is refreshed so late events still land in its report.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*ops.GenerateOutput, error) {
	today, err := s.env.Today()
	if err != nil {
		return nil, err
	}
	day, err := time.Parse(engine.DateLayout, today)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	yesterday := day.AddDate(0, 0, -1).Format(engine.DateLayout)

	outputs := make([]*ops.GenerateOutput, 0, 2)
	for _, date := range []string{yesterday, today} {
		out, err := ops.Generate(ctx, s.env, ops.GenerateInput{Date: date})
		if err != nil {
			return outputs, fmt.Errorf("%s: %w", date, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

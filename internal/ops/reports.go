package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

// FetchReportInput contains parameters for the FetchReport operation.
type FetchReportInput struct {
	Date string // YYYY-MM-DD; default: today

	// Fallback returns the most recent earlier report when Date has none.
	Fallback bool
}

// FetchReport reads a report artifact. Reports are served exactly as
// generated; edits are layered on by the caller via ApplyEdits.
func FetchReport(ctx context.Context, env *Env, input FetchReportInput) (*engine.Report, error) {
	date, err := resolveDate(env, input.Date)
	if err != nil {
		return nil, err
	}
	if input.Fallback {
		return LatestReport(ctx, env, LatestReportInput{OnOrBefore: date})
	}
	return readReport(env, date)
}

// LatestReportInput contains parameters for the LatestReport operation.
type LatestReportInput struct {
	OnOrBefore string // YYYY-MM-DD; default: today
}

// LatestReport returns the newest report dated on or before the given day.
func LatestReport(ctx context.Context, env *Env, input LatestReportInput) (*engine.Report, error) {
	limit, err := resolveDate(env, input.OnOrBefore)
	if err != nil {
		return nil, err
	}
	dates, err := reportDates(env)
	if err != nil {
		return nil, err
	}
	for _, d := range dates {
		if d <= limit {
			return readReport(env, d)
		}
	}
	return nil, errors.NewNotFound("report", "on or before "+limit)
}

// ListReportsInput contains parameters for the ListReports operation.
type ListReportsInput struct {
	Limit int // default: 30, max: 366
}

// ListReportsOutput contains the result of the ListReports operation.
type ListReportsOutput struct {
	Dates   []string `json:"dates"`
	HasMore bool     `json:"has_more"`
	Total   int      `json:"total"`
}

// ListReports returns the dates that have a report artifact, newest first.
func ListReports(ctx context.Context, env *Env, input ListReportsInput) (*ListReportsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	dates, err := reportDates(env)
	if err != nil {
		return nil, err
	}
	out := &ListReportsOutput{Total: len(dates), Dates: dates}
	if len(dates) > limit {
		out.Dates = dates[:limit]
		out.HasMore = true
	}
	return out, nil
}

// resolveDate validates a YYYY-MM-DD day, defaulting to today.
func resolveDate(env *Env, date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return env.Today()
	}
	if _, err := time.Parse(engine.DateLayout, date); err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("date must be YYYY-MM-DD: %q", date))
	}
	return date, nil
}

func readReport(env *Env, date string) (*engine.Report, error) {
	data, err := os.ReadFile(env.ReportPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("report", date)
		}
		return nil, errors.NewInternal(err)
	}
	var report engine.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("corrupt report %s: %w", date, err))
	}
	return &report, nil
}

// reportDates lists artifact dates, newest first. Temp files and
// anything not named YYYY-MM-DD.json are ignored.
func reportDates(env *Env) ([]string, error) {
	entries, err := os.ReadDir(env.ReportsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok {
			continue
		}
		if _, err := time.Parse(engine.DateLayout, name); err != nil {
			continue
		}
		dates = append(dates, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

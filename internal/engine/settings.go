package engine

import (
	"fmt"
	"time"

	"github.com/hpungsan/daylog/internal/errors"
)

// Settings is the immutable configuration one engine invocation runs with.
type Settings struct {
	Timezone        string
	CutoffHour      int
	DedupWindow     time.Duration
	MergeThreshold  time.Duration
	IdleThreshold   time.Duration
	MinSignificance time.Duration
	Rules           []Rule
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Timezone:        "Local",
		CutoffHour:      0,
		DedupWindow:     2 * time.Second,
		MergeThreshold:  120 * time.Second,
		IdleThreshold:   300 * time.Second,
		MinSignificance: 60 * time.Second,
		Rules:           DefaultRules(),
	}
}

// Validate returns a CONFIGURATION error for the first unusable setting.
func (s Settings) Validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return errors.NewConfiguration("timezone", fmt.Sprintf("unknown time zone %q", s.Timezone))
	}
	if s.CutoffHour < 0 || s.CutoffHour > 23 {
		return errors.NewConfiguration("cutoff_hour", "must be between 0 and 23")
	}
	thresholds := []struct {
		field string
		value time.Duration
	}{
		{"dedup_window_seconds", s.DedupWindow},
		{"merge_threshold_seconds", s.MergeThreshold},
		{"idle_threshold_seconds", s.IdleThreshold},
		{"min_significance_seconds", s.MinSignificance},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			return errors.NewConfiguration(th.field, "must not be negative")
		}
	}
	return ValidateRules(s.Rules)
}

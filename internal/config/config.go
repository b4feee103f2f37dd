package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

// DirName is the per-user and per-repo configuration directory name.
const DirName = ".daylog"

// Config holds application configuration.
type Config struct {
	// Timezone is an IANA zone name, or "Local" for the system zone
	Timezone string `json:"timezone"`

	// CutoffHour is the local hour a logical work day starts at (0-23).
	// Activity before it belongs to the previous day.
	CutoffHour int `json:"cutoff_hour"`

	DedupWindowSeconds     int `json:"dedup_window_seconds"`
	MergeThresholdSeconds  int `json:"merge_threshold_seconds"`
	IdleThresholdSeconds   int `json:"idle_threshold_seconds"`
	MinSignificanceSeconds int `json:"min_significance_seconds"`

	// CategoryRules is the ordered rule list; position is priority.
	CategoryRules []engine.Rule `json:"category_rules"`

	// Schedule is the cron spec for automatic report generation under `daylog serve`.
	// Empty disables the scheduler.
	Schedule string `json:"schedule"`

	// BackfillConcurrency bounds how many days a backfill generates at once.
	BackfillConcurrency int `json:"backfill_concurrency"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.daylog/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "event", "report".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// Overlay is one configuration layer (a config file or the environment).
// Nil scalars leave the value below untouched, so an explicit 0 still
// overrides a non-zero default.
type Overlay struct {
	Timezone               *string       `json:"timezone,omitempty"`
	CutoffHour             *int          `json:"cutoff_hour,omitempty"`
	DedupWindowSeconds     *int          `json:"dedup_window_seconds,omitempty"`
	MergeThresholdSeconds  *int          `json:"merge_threshold_seconds,omitempty"`
	IdleThresholdSeconds   *int          `json:"idle_threshold_seconds,omitempty"`
	MinSignificanceSeconds *int          `json:"min_significance_seconds,omitempty"`
	CategoryRules          []engine.Rule `json:"category_rules,omitempty"`
	Schedule               *string       `json:"schedule,omitempty"`
	BackfillConcurrency    *int          `json:"backfill_concurrency,omitempty"`
	AllowedPaths           []string      `json:"allowed_paths,omitempty"`
	AllowUnsafePaths       *bool         `json:"allow_unsafe_paths,omitempty"`
	DBMaxOpenConns         *int          `json:"db_max_open_conns,omitempty"`
	DBMaxIdleConns         *int          `json:"db_max_idle_conns,omitempty"`
	DisabledTools          []string      `json:"disabled_tools,omitempty"`
	DisabledTypes          []string      `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:               "Local",
		CutoffHour:             0,
		DedupWindowSeconds:     2,
		MergeThresholdSeconds:  120,
		IdleThresholdSeconds:   300,
		MinSignificanceSeconds: 60,
		CategoryRules:          engine.DefaultRules(),
		Schedule:               "5 * * * *",
		BackfillConcurrency:    4,
	}
}

// Load loads configuration from baseDir/config.json plus environment
// overrides. Returns default config if neither is present.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.daylog.
func Load(baseDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	env, err := envOverlay(baseDir)
	if err != nil {
		return nil, err
	}
	return Merge(Merge(DefaultConfig(), global), env), nil
}

// LoadWithRepo loads configuration from both global (~/.daylog) and repo (.daylog) directories.
// Repo config is found by walking upward from startDir to find the nearest .daylog/config.json.
// Precedence is defaults < global < repo < environment.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	env, err := envOverlay(globalDir)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(Merge(DefaultConfig(), global), repo), env), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .daylog/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads one overlay from a file path.
// A missing file (or empty path) yields an empty overlay.
func loadFileRaw(configPath string) (*Overlay, error) {
	if configPath == "" {
		return &Overlay{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &Overlay{}, nil
		}
		return nil, err
	}

	o := &Overlay{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, errors.NewConfiguration(configPath, err.Error())
	}
	return o, nil
}

// envVars maps environment variable names to overlay fields.
var envVars = []struct {
	name string
	set  func(o *Overlay, v string) error
}{
	{"DAYLOG_TIMEZONE", func(o *Overlay, v string) error { o.Timezone = &v; return nil }},
	{"DAYLOG_CUTOFF_HOUR", intVar(func(o *Overlay) **int { return &o.CutoffHour })},
	{"DAYLOG_DEDUP_WINDOW_SECONDS", intVar(func(o *Overlay) **int { return &o.DedupWindowSeconds })},
	{"DAYLOG_MERGE_THRESHOLD_SECONDS", intVar(func(o *Overlay) **int { return &o.MergeThresholdSeconds })},
	{"DAYLOG_IDLE_THRESHOLD_SECONDS", intVar(func(o *Overlay) **int { return &o.IdleThresholdSeconds })},
	{"DAYLOG_MIN_SIGNIFICANCE_SECONDS", intVar(func(o *Overlay) **int { return &o.MinSignificanceSeconds })},
	{"DAYLOG_SCHEDULE", func(o *Overlay, v string) error { o.Schedule = &v; return nil }},
	{"DAYLOG_BACKFILL_CONCURRENCY", intVar(func(o *Overlay) **int { return &o.BackfillConcurrency })},
}

func intVar(field func(o *Overlay) **int) func(o *Overlay, v string) error {
	return func(o *Overlay, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(o) = &n
		return nil
	}
}

// envOverlay reads DAYLOG_* overrides from baseDir/.env and the process
// environment. Process variables win over the .env file.
func envOverlay(baseDir string) (*Overlay, error) {
	values := map[string]string{}
	if baseDir != "" {
		fileVals, err := godotenv.Read(filepath.Join(baseDir, ".env"))
		if err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewConfiguration(".env", err.Error())
		}
		for k, v := range fileVals {
			values[k] = v
		}
	}

	o := &Overlay{}
	for _, ev := range envVars {
		v, ok := os.LookupEnv(ev.name)
		if !ok {
			v, ok = values[ev.name]
		}
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := ev.set(o, v); err != nil {
			return nil, errors.NewConfiguration(ev.name, fmt.Sprintf("invalid value %q", v))
		}
	}
	return o, nil
}

// Merge applies overlay on top of base.
// Set scalars win; category rules replace wholesale because their order
// is their priority; other arrays are merged and deduplicated.
func Merge(base *Config, overlay *Overlay) *Config {
	result := *base

	setString(&result.Timezone, overlay.Timezone)
	setInt(&result.CutoffHour, overlay.CutoffHour)
	setInt(&result.DedupWindowSeconds, overlay.DedupWindowSeconds)
	setInt(&result.MergeThresholdSeconds, overlay.MergeThresholdSeconds)
	setInt(&result.IdleThresholdSeconds, overlay.IdleThresholdSeconds)
	setInt(&result.MinSignificanceSeconds, overlay.MinSignificanceSeconds)
	setString(&result.Schedule, overlay.Schedule)
	setInt(&result.BackfillConcurrency, overlay.BackfillConcurrency)
	setInt(&result.DBMaxOpenConns, overlay.DBMaxOpenConns)
	setInt(&result.DBMaxIdleConns, overlay.DBMaxIdleConns)

	if overlay.AllowUnsafePaths != nil {
		result.AllowUnsafePaths = *overlay.AllowUnsafePaths
	}

	result.CategoryRules = base.CategoryRules
	if len(overlay.CategoryRules) > 0 {
		result.CategoryRules = overlay.CategoryRules
	}

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return &result
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Settings converts the configuration into engine settings.
func (c *Config) Settings() engine.Settings {
	return engine.Settings{
		Timezone:        c.Timezone,
		CutoffHour:      c.CutoffHour,
		DedupWindow:     time.Duration(c.DedupWindowSeconds) * time.Second,
		MergeThreshold:  time.Duration(c.MergeThresholdSeconds) * time.Second,
		IdleThreshold:   time.Duration(c.IdleThresholdSeconds) * time.Second,
		MinSignificance: time.Duration(c.MinSignificanceSeconds) * time.Second,
		Rules:           c.CategoryRules,
	}
}

// Validate returns a CONFIGURATION error for the first unusable value.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if c.BackfillConcurrency < 0 {
		return errors.NewConfiguration("backfill_concurrency", "must not be negative")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return errors.NewConfiguration("db_max_open_conns", "connection limits must not be negative")
	}
	return nil
}

package ops

import (
	"crypto/rand"
	"database/sql"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/config"
	"github.com/hpungsan/daylog/internal/engine"
)

// Limits
const (
	// MaxBackfillDays caps how many days one backfill may regenerate.
	MaxBackfillDays = 366

	DefaultListLimit = 30
	MaxListLimit     = 366

	// DefaultSource tags events recorded without a source.
	DefaultSource = "manual"
)

// Env carries the shared resources every operation runs against.
// One Env is shared by the CLI, MCP server, web server and scheduler.
type Env struct {
	DB      *sql.DB
	Config  *config.Config
	BaseDir string
	Log     *zap.Logger

	// Now is the clock; tests pin it.
	Now func() time.Time

	locks *dayLocks
}

// NewEnv builds an Env. A nil logger discards output.
func NewEnv(database *sql.DB, cfg *config.Config, baseDir string, log *zap.Logger) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Env{
		DB:      database,
		Config:  cfg,
		BaseDir: baseDir,
		Log:     log,
		Now:     time.Now,
		locks:   newDayLocks(),
	}
}

// ReportsDir is where dated report artifacts are written.
func (e *Env) ReportsDir() string {
	return filepath.Join(e.BaseDir, "reports")
}

// ReportPath is the artifact path for one logical day.
func (e *Env) ReportPath(date string) string {
	return filepath.Join(e.ReportsDir(), date+".json")
}

// ExportsDir is the default directory for event log exports.
func (e *Env) ExportsDir() string {
	return filepath.Join(e.BaseDir, "exports")
}

// Engine builds an aggregation engine from the current configuration.
func (e *Env) Engine() (*engine.Engine, error) {
	return engine.New(e.Config.Settings(), e.Log)
}

// Today returns the logical day the current instant belongs to.
func (e *Env) Today() (string, error) {
	eng, err := e.Engine()
	if err != nil {
		return "", err
	}
	return eng.Partitioner().Day(e.Now()), nil
}

// newID returns a fresh ULID.
func newID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// dayLocks serializes work on the same logical day while letting
// different days proceed in parallel.
type dayLocks struct {
	mu    sync.Mutex
	locks map[string]*dayLock
}

type dayLock struct {
	sync.Mutex
	refs int
}

func newDayLocks() *dayLocks {
	return &dayLocks{locks: make(map[string]*dayLock)}
}

// lock blocks until day is free and returns its unlock func.
func (d *dayLocks) lock(day string) func() {
	d.mu.Lock()
	l, ok := d.locks[day]
	if !ok {
		l = &dayLock{}
		d.locks[day] = l
	}
	l.refs++
	d.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, day)
		}
		d.mu.Unlock()
	}
}

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

// Session is a merged, continuous block of activity sharing one label.
type Session struct {
	ID     string     `json:"id"`
	Kind   event.Kind `json:"kind"`
	Label  string     `json:"label"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Source string     `json:"source,omitempty"`
	Hint   string     `json:"hint,omitempty"`

	// Duration is End-Start, or the summed declared duration for
	// sessions built from instantaneous entries.
	Duration time.Duration `json:"-"`

	// Events are the contributing raw events in chronological order.
	Events []event.RawEvent `json:"-"`
}

// EventIDs returns the ids of the contributing events.
func (s Session) EventIDs() []string {
	ids := make([]string, len(s.Events))
	for i, ev := range s.Events {
		ids[i] = ev.ID
	}
	return ids
}

// App returns the app name of the first contributing event, if any.
func (s Session) App() string {
	for _, ev := range s.Events {
		if ev.Payload.App != "" {
			return strings.TrimSpace(ev.Payload.App)
		}
	}
	return ""
}

// Domain returns the browser domain of the first contributing event, if any.
func (s Session) Domain() string {
	for _, ev := range s.Events {
		if d := ev.Domain(); d != "" {
			return d
		}
	}
	return ""
}

// CategorizedSession is a Session with its resolved category.
type CategorizedSession struct {
	Session
	Category     string `json:"category"`
	PriorityRank int    `json:"priority_rank"`
}

// ProofEntry links a bullet back to one contributing session.
type ProofEntry struct {
	SessionID       string    `json:"session_id"`
	Label           string    `json:"label"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds float64   `json:"duration_seconds"`
	Source          string    `json:"source,omitempty"`
	EventIDs        []string  `json:"event_ids"`
}

// Bullet is one user-facing accomplishment line.
type Bullet struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Category        string       `json:"category"`
	PriorityRank    int          `json:"priority_rank"`
	DurationMinutes int64        `json:"duration_minutes"`
	DurationSeconds float64      `json:"duration_seconds"`
	Source          string       `json:"source,omitempty"`
	Proof           []ProofEntry `json:"proof"`
}

// Metadata carries the bookkeeping that makes a report auditable.
type Metadata struct {
	EventCount     int     `json:"event_count"`
	DuplicateCount int     `json:"duplicate_count"`
	SkippedCount   int     `json:"skipped_count"`
	SessionCount   int     `json:"session_count"`
	OmittedCount   int     `json:"omitted_count"`
	OmittedSeconds float64 `json:"omitted_seconds"`
	TotalSeconds   float64 `json:"total_seconds"`
}

// Report is the engine output for one logical day.
type Report struct {
	Date       string   `json:"date"`
	Timezone   string   `json:"timezone"`
	CutoffHour int      `json:"cutoff_hour"`
	Bullets    []Bullet `json:"bullets"`
	Metadata   Metadata `json:"metadata"`
}

// Empty reports whether the day produced no bullets.
func (r *Report) Empty() bool {
	return len(r.Bullets) == 0
}

// RoundMinutes rounds d to whole minutes, halves rounding up.
func RoundMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + 30*time.Second) / time.Minute)
}

// shortHash derives a stable identifier from its parts.
func shortHash(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return prefix + hex.EncodeToString(sum[:8])
}

package event

import (
	"net/url"
	"strings"
	"time"
)

// Type is the kind of raw activity record emitted by an integration.
type Type string

const (
	FocusChange  Type = "focus_change"
	AppSwitch    Type = "app_switch"
	WindowChange Type = "window_change"
	BrowserVisit Type = "browser_visit"
	MeetingStart Type = "meeting_start"
	MeetingEnd   Type = "meeting_end"
	IdleStart    Type = "idle_start"
	IdleEnd      Type = "idle_end"
	ManualEntry  Type = "manual_entry"
)

// AllTypes lists every event type in a stable order.
var AllTypes = []Type{
	FocusChange, AppSwitch, WindowChange,
	BrowserVisit,
	MeetingStart, MeetingEnd,
	IdleStart, IdleEnd,
	ManualEntry,
}

// Kind groups event types into families that merge with each other.
type Kind string

const (
	KindActivity Kind = "activity"
	KindBrowser  Kind = "browser"
	KindMeeting  Kind = "meeting"
	KindManual   Kind = "manual"
	KindIdle     Kind = "idle"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	return t.Kind() != ""
}

// Kind returns the family t belongs to, or "" for unknown types.
func (t Type) Kind() Kind {
	switch t {
	case FocusChange, AppSwitch, WindowChange:
		return KindActivity
	case BrowserVisit:
		return KindBrowser
	case MeetingStart, MeetingEnd:
		return KindMeeting
	case IdleStart, IdleEnd:
		return KindIdle
	case ManualEntry:
		return KindManual
	}
	return ""
}

// Payload holds the type-specific attributes of a RawEvent.
// Which fields are required depends on the event type (see Validate).
type Payload struct {
	App             string  `json:"app,omitempty"`
	Window          string  `json:"window,omitempty"`
	Domain          string  `json:"domain,omitempty"`
	URL             string  `json:"url,omitempty"`
	PageTitle       string  `json:"page_title,omitempty"`
	Meeting         string  `json:"meeting,omitempty"`
	Title           string  `json:"title,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	IdleSeconds     float64 `json:"idle_seconds,omitempty"`
	CategoryHint    string  `json:"category_hint,omitempty"`
}

// RawEvent is one immutable, timestamped record from the append-only log.
type RawEvent struct {
	// ID is a ULID assigned when the event is appended to the log
	ID string `json:"id,omitempty"`

	// Source is the integration tag that produced the event (e.g. "calendar")
	Source string `json:"source,omitempty"`

	// Seq is the source-declared sequence number, 0 if the source has none
	Seq int64 `json:"seq,omitempty"`

	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Kind is shorthand for e.Type.Kind().
func (e RawEvent) Kind() Kind {
	return e.Type.Kind()
}

// Duration returns the declared duration of the event.
func (e RawEvent) Duration() time.Duration {
	return seconds(e.Payload.DurationSeconds)
}

// IdleDuration returns the declared idle length carried by idle events.
func (e RawEvent) IdleDuration() time.Duration {
	return seconds(e.Payload.IdleSeconds)
}

// Domain returns the payload domain, falling back to the URL host.
func (e RawEvent) Domain() string {
	if d := strings.TrimSpace(e.Payload.Domain); d != "" {
		return strings.ToLower(d)
	}
	return hostOf(e.Payload.URL)
}

// Label returns the representative label used to group events into sessions.
func (e RawEvent) Label() string {
	p := e.Payload
	switch e.Kind() {
	case KindActivity:
		app := strings.TrimSpace(p.App)
		if w := strings.TrimSpace(p.Window); w != "" {
			return app + " — " + w
		}
		return app
	case KindBrowser:
		return e.Domain()
	case KindMeeting:
		return strings.TrimSpace(p.Meeting)
	case KindManual:
		return strings.TrimSpace(p.Title)
	case KindIdle:
		return "idle"
	}
	return ""
}

// DedupKey returns the type plus the discriminating payload fields.
// Two events with equal keys are duplicates when close enough in time.
func (e RawEvent) DedupKey() string {
	p := e.Payload
	parts := []string{string(e.Type)}
	switch e.Kind() {
	case KindActivity:
		parts = append(parts, Normalize(p.App), Normalize(p.Window))
	case KindBrowser:
		parts = append(parts, e.Domain(), strings.TrimSpace(p.URL))
	case KindMeeting:
		parts = append(parts, Normalize(p.Meeting))
	case KindManual:
		parts = append(parts, Normalize(p.Title))
	}
	return strings.Join(parts, "\x1f")
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func seconds(s float64) time.Duration {
	if !(s > 0) {
		return 0
	}
	if s > MaxDurationSeconds {
		s = MaxDurationSeconds
	}
	return time.Duration(s * float64(time.Second))
}

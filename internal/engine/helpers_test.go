package engine

import (
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

const testDay = "2024-03-11"

// at returns hh:mm:ss on testDay in UTC.
func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", testDay+" "+clock)
	if err != nil {
		panic(err)
	}
	return t
}

func focus(id, clock, app, window string, secs float64) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Source:    "desktop",
		Type:      event.FocusChange,
		Timestamp: at(clock),
		Payload:   event.Payload{App: app, Window: window, DurationSeconds: secs},
	}
}

func browse(id, clock, domain string, secs float64) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Source:    "browser",
		Type:      event.BrowserVisit,
		Timestamp: at(clock),
		Payload:   event.Payload{Domain: domain, DurationSeconds: secs},
	}
}

func manual(id, clock, title string, secs float64) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Source:    "manual",
		Type:      event.ManualEntry,
		Timestamp: at(clock),
		Payload:   event.Payload{Title: title, DurationSeconds: secs},
	}
}

func meeting(id, clock string, typ event.Type, name string) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Source:    "calendar",
		Type:      typ,
		Timestamp: at(clock),
		Payload:   event.Payload{Meeting: name},
	}
}

func idle(id, clock string, typ event.Type) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Source:    "desktop",
		Type:      typ,
		Timestamp: at(clock),
	}
}

func utcSettings() Settings {
	s := DefaultSettings()
	s.Timezone = "UTC"
	return s
}

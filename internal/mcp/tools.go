package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/daylog/internal/event"
	"github.com/hpungsan/daylog/internal/ops"
)

var eventDescriptions = map[event.Type]string{
	event.FocusChange:  "Record that an application gained focus.",
	event.AppSwitch:    "Record a switch to another application.",
	event.WindowChange: "Record a window change inside an application.",
	event.BrowserVisit: "Record a browser page visit. Needs domain or url.",
	event.MeetingStart: "Record the start of a meeting.",
	event.MeetingEnd:   "Record the end of a meeting.",
	event.IdleStart:    "Record that the user went idle.",
	event.IdleEnd:      "Record that the user came back from idle.",
	event.ManualEntry:  "Record a manual entry with a title and duration.",
}

// eventToolDef builds the record tool for one event type. Common fields
// are always present; payload fields depend on the type's kind.
func eventToolDef(t event.Type) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(eventDescriptions[t] + " Returns the assigned id and logical day."),
		mcp.WithString("timestamp", mcp.Description("RFC3339 instant of the event (default: now)")),
		mcp.WithString("source", mcp.Description(`Integration that produced the event (default: "manual")`)),
		mcp.WithNumber("seq", mcp.Description("Source-declared sequence number"), mcp.Min(0)),
		mcp.WithString("category_hint", mcp.Description("Category suggestion matched by hint rules")),
	}

	switch t.Kind() {
	case event.KindActivity:
		opts = append(opts,
			mcp.WithString("app", mcp.Required(), mcp.Description("Application name")),
			mcp.WithString("window", mcp.Description("Window or document title")),
			durationParam(),
		)
	case event.KindBrowser:
		opts = append(opts,
			mcp.WithString("domain", mcp.Description("Site domain (derived from url when omitted)")),
			mcp.WithString("url", mcp.Description("Absolute page URL")),
			mcp.WithString("page_title", mcp.Description("Page title")),
			durationParam(),
		)
	case event.KindMeeting:
		opts = append(opts,
			mcp.WithString("meeting", mcp.Required(), mcp.Description("Meeting title; start and end pair by title")),
		)
	case event.KindIdle:
		opts = append(opts,
			mcp.WithNumber("idle_seconds", mcp.Min(0),
				mcp.Description("Idle length when the matching start or end is not recorded")),
		)
	case event.KindManual:
		opts = append(opts,
			mcp.WithString("title", mcp.Required(), mcp.Description("What was done")),
			mcp.WithNumber("duration_seconds", mcp.Required(), mcp.Min(1), mcp.Description("Time spent in seconds")),
		)
	}

	return mcp.NewTool(eventToolName(t), opts...)
}

func durationParam() mcp.ToolOption {
	return mcp.WithNumber("duration_seconds", mcp.Min(0), mcp.Description("Declared activity length in seconds"))
}

var generateToolDef = mcp.NewTool("report_generate",
	mcp.WithDescription("Regenerate the report for a logical day from the event log and write its artifact."),
	mcp.WithString("date", mcp.Description("Logical day YYYY-MM-DD (default: today)")),
)

var fetchToolDef = mcp.NewTool("report_fetch",
	mcp.WithDescription("Fetch a generated report. Saved edits are applied unless raw is set."),
	mcp.WithString("date", mcp.Description("Logical day YYYY-MM-DD (default: today)")),
	mcp.WithBoolean("fallback", mcp.Description("Return the latest earlier report when the day has none")),
	mcp.WithBoolean("raw", mcp.Description("Return the report exactly as generated")),
)

var listToolDef = mcp.NewTool("report_list",
	mcp.WithDescription("List dates that have a generated report, newest first."),
	mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Max dates to return (default: %d, max: %d)", ops.DefaultListLimit, ops.MaxListLimit)), mcp.Min(1)),
)

package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
	"github.com/hpungsan/daylog/internal/mcp"
	"github.com/hpungsan/daylog/internal/ops"
	"github.com/hpungsan/daylog/internal/scheduler"
	"github.com/hpungsan/daylog/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "daylog",
		Usage:   "Turn a day of activity events into a few accomplishment bullets",
		Version: Version,
		Commands: []*cli.Command{
			recordCmd(env),
			generateCmd(env),
			backfillCmd(env),
			showCmd(env),
			listCmd(env),
			editsCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func eventTypeNames() string {
	names := make([]string, len(event.AllTypes))
	for i, t := range event.AllTypes {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}

// recordCmd creates the record command.
func recordCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Append one event to the log",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "Event type: " + eventTypeNames()},
			&cli.StringFlag{Name: "at", Usage: "RFC3339 timestamp (default: now)"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: `Producing integration (default: "manual")`},
			&cli.Int64Flag{Name: "seq", Usage: "Source sequence number"},
			&cli.StringFlag{Name: "app", Usage: "Application name"},
			&cli.StringFlag{Name: "window", Usage: "Window title"},
			&cli.StringFlag{Name: "domain", Usage: "Site domain"},
			&cli.StringFlag{Name: "url", Usage: "Page URL"},
			&cli.StringFlag{Name: "page-title", Usage: "Page title"},
			&cli.StringFlag{Name: "meeting", Usage: "Meeting title"},
			&cli.StringFlag{Name: "title", Usage: "Manual entry title"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Declared duration (e.g. 25m)"},
			&cli.DurationFlag{Name: "idle", Usage: "Idle length for idle events"},
			&cli.StringFlag{Name: "hint", Usage: "Category hint"},
		},
		Action: func(c *cli.Context) error {
			var ts time.Time
			if at := c.String("at"); at != "" {
				parsed, err := time.Parse(time.RFC3339Nano, at)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("--at must be RFC3339: %q", at)))
				}
				ts = parsed
			}

			output, err := ops.Record(c.Context, env, ops.RecordInput{
				Type:      event.Type(c.String("type")),
				Timestamp: ts,
				Source:    c.String("source"),
				Seq:       c.Int64("seq"),
				Payload: event.Payload{
					App:             c.String("app"),
					Window:          c.String("window"),
					Domain:          c.String("domain"),
					URL:             c.String("url"),
					PageTitle:       c.String("page-title"),
					Meeting:         c.String("meeting"),
					Title:           c.String("title"),
					DurationSeconds: c.Duration("duration").Seconds(),
					IdleSeconds:     c.Duration("idle").Seconds(),
					CategoryHint:    c.String("hint"),
				},
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// generateCmd creates the generate command.
func generateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Build the report for a logical day",
		ArgsUsage: "[date]",
		Action: func(c *cli.Context) error {
			output, err := ops.Generate(c.Context, env, ops.GenerateInput{Date: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// backfillCmd creates the backfill command.
func backfillCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Regenerate a range of days (default: every day in the log)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "First day YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "Last day YYYY-MM-DD (default: today)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Backfill(c.Context, env, ops.BackfillInput{
				From: c.String("from"),
				To:   c.String("to"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a report with its edits applied",
		ArgsUsage: "[date]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown"},
			&cli.BoolFlag{Name: "raw", Usage: "Ignore saved edits"},
			&cli.BoolFlag{Name: "fallback", Usage: "Show the latest earlier report when the day has none"},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != "json" && format != "markdown" && format != "md" {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q", format)))
			}

			report, err := ops.FetchReport(c.Context, env, ops.FetchReportInput{
				Date:     c.Args().First(),
				Fallback: c.Bool("fallback"),
			})
			if err != nil {
				return outputError(err)
			}

			if !c.Bool("raw") {
				edits, err := ops.FetchEdits(c.Context, env, report.Date)
				if err != nil && !errors.Is(err, errors.ErrNotFound) {
					return outputError(err)
				}
				report = ops.ApplyEdits(report, edits)
			}

			if format == "json" {
				return outputJSON(c, report)
			}
			_, err = io.WriteString(c.App.Writer, report.Markdown())
			return err
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List dates that have a report, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum dates to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListReports(c.Context, env, ops.ListReportsInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// editsCmd creates the edits command group.
func editsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "edits",
		Usage: "Read or replace the edit layer of a report",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the saved edits for a day",
				ArgsUsage: "[date]",
				Action: func(c *cli.Context) error {
					output, err := ops.FetchEdits(c.Context, env, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "set",
				Usage:     "Replace the edits for a day (reads the edit set JSON from stdin)",
				ArgsUsage: "[date]",
				Action: func(c *cli.Context) error {
					var input ops.EditSet
					dec := json.NewDecoder(c.App.Reader)
					dec.DisallowUnknownFields()
					if err := dec.Decode(&input); err != nil {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid edits JSON on stdin: %v", err)))
					}
					if date := c.Args().First(); date != "" {
						input.Date = date
					}

					output, err := ops.SaveEdits(c.Context, env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the event log to JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default: exports dir)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportEvents(c.Context, env, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Append events from a JSONL file",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			output, err := ops.ImportEvents(c.Context, env, ops.ImportInput{Path: path})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard and the generation schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8377, Usage: "Port to listen on"},
			&cli.BoolFlag{Name: "no-schedule", Usage: "Do not generate reports on the schedule"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !c.Bool("no-schedule") {
				sched, err := scheduler.New(env)
				if err != nil {
					return outputError(err)
				}
				if sched != nil {
					sched.Start()
					defer sched.Stop()
				}
			}

			srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(ctx, srv, env.Log); err != nil {
				env.Log.Error("dashboard stopped", zap.Error(err))
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(env, Version); err != nil && !stderrors.Is(err, context.Canceled) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to the app's writer (stdout) as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var dErr *errors.DaylogError
	if stderrors.As(err, &dErr) {
		// Keep context added by wrapping (e.g. the failing date).
		prefix := strings.TrimSuffix(err.Error(), dErr.Error())
		return cli.Exit(fmt.Sprintf("[%s] %s%s", dErr.Code, prefix, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

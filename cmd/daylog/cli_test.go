package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/daylog/internal/config"
	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/ops"
)

// setupTestEnv creates a temporary database and an Env pinned to
// 2024-03-11 18:00 UTC.
func setupTestEnv(t *testing.T) *ops.Env {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	env := ops.NewEnv(database, cfg, tmpDir, nil)
	env.Now = func() time.Time { return time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC) }
	return env
}

// run executes the CLI with args and optional stdin, returning stdout.
func run(t *testing.T, env *ops.Env, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(env)
	var out bytes.Buffer
	app.Writer = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"daylog"}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, env *ops.Env, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, env, stdin, args...)
	if err != nil {
		t.Fatalf("daylog %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func seedEditor(t *testing.T, env *ops.Env) {
	t.Helper()
	for _, at := range []string{"2024-03-11T09:00:00Z", "2024-03-11T09:05:10Z", "2024-03-11T09:11:00Z"} {
		mustRun(t, env, "", "record", "--type", "focus_change", "--at", at,
			"--app", "Editor", "--window", "main", "--duration", "5m")
	}
}

func TestCLIRecord(t *testing.T) {
	env := setupTestEnv(t)

	out := mustRun(t, env, "", "record", "-t", "manual_entry", "--title", "Planning", "-d", "15m", "--hint", "meetings")

	var output ops.RecordOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.ID == "" {
		t.Error("expected non-empty ID")
	}
	if output.Day != "2024-03-11" {
		t.Errorf("day = %s, want 2024-03-11", output.Day)
	}
}

func TestCLIRecord_Errors(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing app", []string{"record", "--type", "focus_change"}, "[MALFORMED_EVENT]"},
		{"unknown type", []string{"record", "--type", "keystroke"}, "[MALFORMED_EVENT]"},
		{"bad timestamp", []string{"record", "--type", "idle_start", "--at", "noon"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, env, "", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("error = %q, want prefix %q", err.Error(), tt.want)
			}
			if exit, ok := err.(cli.ExitCoder); !ok || exit.ExitCode() != 1 {
				t.Errorf("expected exit code 1, got %v", err)
			}
		})
	}
}

func TestCLIGenerateShowList(t *testing.T) {
	env := setupTestEnv(t)
	seedEditor(t, env)

	var gen ops.GenerateOutput
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "generate")), &gen); err != nil {
		t.Fatalf("failed to parse generate output: %v", err)
	}
	if gen.Date != "2024-03-11" || gen.Bullets != 1 {
		t.Errorf("generate = %+v", gen)
	}

	var report map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "show", "2024-03-11")), &report); err != nil {
		t.Fatalf("failed to parse show output: %v", err)
	}
	bullets := report["bullets"].([]any)
	if len(bullets) != 1 || bullets[0].(map[string]any)["duration_minutes"] != float64(16) {
		t.Errorf("bullets = %v", bullets)
	}

	md := mustRun(t, env, "", "show", "--format", "markdown")
	if !strings.Contains(md, "- **Editor — main** (16m)") {
		t.Errorf("markdown output:\n%s", md)
	}

	var list ops.ListReportsOutput
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "list")), &list); err != nil {
		t.Fatalf("failed to parse list output: %v", err)
	}
	if list.Total != 1 || list.Dates[0] != "2024-03-11" {
		t.Errorf("list = %+v", list)
	}
}

func TestCLIShow_Errors(t *testing.T) {
	env := setupTestEnv(t)

	_, err := run(t, env, "", "show", "2024-03-01")
	if err == nil || !strings.HasPrefix(err.Error(), "[NOT_FOUND]") {
		t.Errorf("missing report error = %v", err)
	}

	_, err = run(t, env, "", "show", "--format", "yaml")
	if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("bad format error = %v", err)
	}
}

func TestCLIEdits(t *testing.T) {
	env := setupTestEnv(t)
	seedEditor(t, env)
	mustRun(t, env, "", "generate", "2024-03-11")

	var report map[string]any
	_ = json.Unmarshal([]byte(mustRun(t, env, "", "show", "2024-03-11")), &report)
	id := report["bullets"].([]any)[0].(map[string]any)["id"].(string)

	stdin := fmt.Sprintf(`{"renames":{%q:"Parser refactor"}}`, id)
	mustRun(t, env, stdin, "edits", "set", "2024-03-11")

	var edits ops.EditSet
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "edits", "get", "2024-03-11")), &edits); err != nil {
		t.Fatalf("failed to parse edits: %v", err)
	}
	if edits.Renames[id] != "Parser refactor" || edits.SchemaVersion != ops.EditSchemaVersion {
		t.Errorf("edits = %+v", edits)
	}

	if md := mustRun(t, env, "", "show", "-f", "md", "2024-03-11"); !strings.Contains(md, "Parser refactor") {
		t.Errorf("show should apply edits:\n%s", md)
	}
	if md := mustRun(t, env, "", "show", "-f", "md", "--raw", "2024-03-11"); !strings.Contains(md, "Editor — main") {
		t.Errorf("show --raw should ignore edits:\n%s", md)
	}

	_, err := run(t, env, "{not json", "edits", "set", "2024-03-11")
	if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("invalid stdin error = %v", err)
	}
}

func TestCLIBackfill(t *testing.T) {
	env := setupTestEnv(t)
	seedEditor(t, env)

	var output ops.BackfillOutput
	out := mustRun(t, env, "", "backfill", "--from", "2024-03-09", "--to", "2024-03-11")
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Dates) != 3 || output.Bullets != 1 || output.Empty != 2 {
		t.Errorf("backfill = %+v", output)
	}
}

func TestCLIExportImport(t *testing.T) {
	env := setupTestEnv(t)
	seedEditor(t, env)

	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "export")), &exported); err != nil {
		t.Fatalf("failed to parse export output: %v", err)
	}
	if exported.Count != 3 {
		t.Errorf("exported %d events, want 3", exported.Count)
	}

	var imported ops.ImportOutput
	if err := json.Unmarshal([]byte(mustRun(t, env, "", "import", exported.Path)), &imported); err != nil {
		t.Fatalf("failed to parse import output: %v", err)
	}
	if imported.Imported != 0 || imported.Duplicates != 3 {
		t.Errorf("re-import = %+v, want all duplicates", imported)
	}

	_, err := run(t, env, "", "import")
	if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("missing path error = %v", err)
	}
}

func TestCLIHelpWithoutEnv(t *testing.T) {
	app := newCLIApp(nil)
	var out bytes.Buffer
	app.Writer = &out
	if err := app.Run([]string{"daylog", "--help"}); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"record", "generate", "backfill", "show", "edits", "serve"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(fmt.Errorf("2024-03-10: %w", errors.NewNotFound("report", "2024-03-10")))
	if !strings.HasPrefix(err.Error(), "[NOT_FOUND] 2024-03-10: ") {
		t.Errorf("wrapped error = %q", err.Error())
	}

	err = outputError(fmt.Errorf("disk on fire"))
	if err.Error() != "disk on fire" {
		t.Errorf("plain error = %q", err.Error())
	}
}

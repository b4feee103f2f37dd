package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/daylog/internal/config"
	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/event"
	"github.com/hpungsan/daylog/internal/ops"
)

var testNow = time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC)

func setupTest(t *testing.T) (*ops.Env, http.Handler) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	env := ops.NewEnv(database, cfg, tmpDir, nil)
	env.Now = func() time.Time { return testNow }

	handler, err := NewHandler(env, "test")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return env, handler
}

// seedDay records a short editing session and a meeting, then generates.
func seedDay(t *testing.T, env *ops.Env, date string) {
	t.Helper()
	ctx := context.Background()
	base, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []ops.RecordInput{
		{Type: event.FocusChange, Timestamp: base.Add(9 * time.Hour),
			Payload: event.Payload{App: "Editor", Window: "main", DurationSeconds: 1200}},
		{Type: event.ManualEntry, Timestamp: base.Add(11 * time.Hour),
			Payload: event.Payload{Title: "Daily Standup", DurationSeconds: 900}},
	}
	for _, in := range inputs {
		if _, err := ops.Record(ctx, env, in); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if _, err := ops.Generate(ctx, env, ops.GenerateInput{Date: date}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestRootRedirects(t *testing.T) {
	_, h := setupTest(t)
	w := do(t, h, "GET", "/", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/reports" {
		t.Errorf("GET / = %d %q, want 302 /reports", w.Code, w.Header().Get("Location"))
	}
}

func TestHandleList(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-10")
	seedDay(t, env, "2024-03-11")

	w := do(t, h, "GET", "/reports", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`href="/reports/2024-03-11"`, `href="/reports/2024-03-10"`} {
		if !strings.Contains(body, want) {
			t.Errorf("list page missing %s", want)
		}
	}
	if strings.Index(body, "2024-03-11") > strings.Index(body, "2024-03-10") {
		t.Error("dates should be newest first")
	}

	w = do(t, h, "GET", "/reports?limit=1", "", map[string]string{"Accept": "application/json"})
	out := decodeJSON(t, w)
	if out["has_more"] != true || len(out["dates"].([]any)) != 1 {
		t.Errorf("json list = %v", out)
	}
}

func TestHandleList_Empty(t *testing.T) {
	_, h := setupTest(t)
	w := do(t, h, "GET", "/reports", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "No reports yet") {
		t.Errorf("empty list = %d\n%s", w.Code, w.Body.String())
	}
}

func TestHandleReport(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-11")

	w := do(t, h, "GET", "/reports/2024-03-11", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"<h1>2024-03-11</h1>",
		"<h2>Meetings</h2>",
		"<strong>Daily Standup</strong> (15m)",
		"<strong>Editor — main</strong> (20m)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("report page missing %q", want)
		}
	}
	if strings.Index(body, "Daily Standup") > strings.Index(body, "Editor — main") {
		t.Error("meetings should come before coding")
	}

	// today maps to the current logical day
	w = do(t, h, "GET", "/reports/today", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<h1>2024-03-11</h1>") {
		t.Errorf("GET /reports/today = %d", w.Code)
	}
}

func TestHandleReport_HTMXRendersContentOnly(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-11")

	w := do(t, h, "GET", "/reports/2024-03-11", "", map[string]string{"HX-Request": "true"})
	if strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("htmx request should not include the layout")
	}
}

func TestHandleReport_NotFound(t *testing.T) {
	_, h := setupTest(t)

	w := do(t, h, "GET", "/reports/2024-01-01", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error-message") {
		t.Error("expected the error page")
	}

	w = do(t, h, "GET", "/reports/not-a-date", "", map[string]string{"Accept": "application/json"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	errObj := decodeJSON(t, w)["error"].(map[string]any)
	if errObj["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %v", errObj["code"])
	}
}

func TestHandleReport_Fallback(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-08")

	w := do(t, h, "GET", "/reports/2024-03-11?fallback=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No report for 2024-03-11") || !strings.Contains(body, "<h1>2024-03-08</h1>") {
		t.Errorf("fallback page:\n%s", body)
	}
}

func TestHandleReportJSON(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-11")

	w := do(t, h, "GET", "/api/reports/2024-03-11", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	out := decodeJSON(t, w)
	if out["date"] != "2024-03-11" || len(out["bullets"].([]any)) != 2 {
		t.Errorf("report = %v", out)
	}

	w = do(t, h, "GET", "/api/reports/2024-03-12", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if decodeJSON(t, w)["error"] == nil {
		t.Error("api errors are always JSON")
	}
}

func TestEditsRoundTrip(t *testing.T) {
	env, h := setupTest(t)
	seedDay(t, env, "2024-03-11")

	raw := decodeJSON(t, do(t, h, "GET", "/api/reports/2024-03-11", "", nil))
	var editorID, standupID string
	for _, b := range raw["bullets"].([]any) {
		bullet := b.(map[string]any)
		switch bullet["title"] {
		case "Editor — main":
			editorID = bullet["id"].(string)
		case "Daily Standup":
			standupID = bullet["id"].(string)
		}
	}

	// Render once so a cached body exists.
	do(t, h, "GET", "/reports/2024-03-11", "", nil)

	w := do(t, h, "GET", "/api/reports/2024-03-11/edits", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("edits before save = %d, want 404", w.Code)
	}

	body := `{"renames":{"` + editorID + `":"Parser refactor"},"hidden":["` + standupID + `"]}`
	w = do(t, h, "PUT", "/api/reports/2024-03-11/edits", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT edits = %d\n%s", w.Code, w.Body.String())
	}

	w = do(t, h, "GET", "/api/reports/2024-03-11/edits", "", nil)
	saved := decodeJSON(t, w)
	if saved["renames"].(map[string]any)[editorID] != "Parser refactor" {
		t.Errorf("saved edits = %v", saved)
	}

	page := do(t, h, "GET", "/reports/2024-03-11", "", nil).Body.String()
	if !strings.Contains(page, "Parser refactor") {
		t.Error("edited title should be rendered")
	}
	if strings.Contains(page, "<strong>Daily Standup</strong>") {
		t.Error("hidden bullet should not be rendered")
	}

	// The raw artifact is untouched.
	raw = decodeJSON(t, do(t, h, "GET", "/api/reports/2024-03-11", "", nil))
	if len(raw["bullets"].([]any)) != 2 {
		t.Error("edits must not change the generated artifact")
	}
}

func TestHandlePutEdits_Invalid(t *testing.T) {
	_, h := setupTest(t)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"not json", "/api/reports/2024-03-11/edits", `{`, http.StatusBadRequest},
		{"unknown field", "/api/reports/2024-03-11/edits", `{"rename":{}}`, http.StatusBadRequest},
		{"date mismatch", "/api/reports/2024-03-11/edits", `{"date":"2024-03-10"}`, http.StatusBadRequest},
		{"empty title", "/api/reports/2024-03-11/edits", `{"renames":{"b_1":""}}`, http.StatusBadRequest},
		{"future schema", "/api/reports/2024-03-11/edits", `{"schema_version":2}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "PUT", tt.path, tt.body, nil)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d\n%s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

func TestHandlePutEdits_Today(t *testing.T) {
	_, h := setupTest(t)

	w := do(t, h, "PUT", "/api/reports/today/edits", `{"date":"2024-03-11","hidden":["b_1"]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT today edits = %d\n%s", w.Code, w.Body.String())
	}
	if got := decodeJSON(t, w)["date"]; got != "2024-03-11" {
		t.Errorf("saved date = %v, want 2024-03-11", got)
	}

	w = do(t, h, "GET", "/api/reports/2024-03-11/edits", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET edits by date = %d, want 200", w.Code)
	}

	w = do(t, h, "PUT", "/api/reports/today/edits", `{"date":"2024-03-10"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("mismatched date = %d, want 400", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, h := setupTest(t)
	w := do(t, h, "GET", "/reports", "", nil)
	for _, header := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if w.Header().Get(header) == "" {
			t.Errorf("missing %s header", header)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	_, h := setupTest(t)
	w := do(t, h, "GET", "/static/style.css", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /static/style.css = %d", w.Code)
	}
}

func TestTemplatesParse(t *testing.T) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(sub, "test", nil)
	for _, name := range []string{"list", "report", "error"} {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %q not parsed", name)
		}
	}
}

package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/ops"
)

// maxEditsBody bounds a PUT edits request body.
const maxEditsBody = 1 << 20

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer

	// pages caches rendered report bodies keyed by date, artifact mtime
	// and edit time.
	pages *cache.Cache
}

// HandleList handles GET /reports: dates that have a report.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", ops.DefaultListLimit)

	result, err := ops.ListReports(r.Context(), h.env, ops.ListReportsInput{Limit: limit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:  h.renderer.page("Reports", "reports"),
		Dates:     result.Dates,
		HasMore:   result.HasMore,
		Total:     result.Total,
		NextLimit: min(len(result.Dates)*2, ops.MaxListLimit),
	})
}

// HandleReport handles GET /reports/{date}: one report with edits applied.
// "today" names the current logical day; ?fallback=1 serves the latest
// earlier report when the day has none.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	date := pathDate(r)
	fallback := parseBoolParam(r, "fallback")

	report, err := ops.FetchReport(r.Context(), h.env, ops.FetchReportInput{Date: date, Fallback: fallback})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	edits, err := ops.FetchEdits(r.Context(), h.env, report.Date)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		h.renderer.renderError(w, r, err)
		return
	}
	edited := ops.ApplyEdits(report, edits)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, edited)
		return
	}

	nav := ""
	if date == "" {
		nav = "today"
	}
	data := ReportPageData{
		PageData: h.renderer.page(report.Date, nav),
		Report:   edited,
		Body:     h.reportBody(edited, edits),
		Edited:   edits != nil,
	}
	if date != "" && report.Date != date {
		data.Requested = date
	}
	h.renderer.renderPage(w, r, "report", data)
}

// reportBody renders the report's markdown, reusing a cached rendering
// while neither the artifact nor its edits have changed.
func (h *Handlers) reportBody(report *engine.Report, edits *ops.EditSet) template.HTML {
	var mtime int64
	if info, err := os.Stat(h.env.ReportPath(report.Date)); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	var editedAt int64
	if edits != nil {
		editedAt = edits.UpdatedAt
	}
	key := fmt.Sprintf("%s|%d|%d", report.Date, mtime, editedAt)

	if body, ok := h.pages.Get(key); ok {
		return body.(template.HTML)
	}
	body := renderMarkdown(report.Markdown())
	h.pages.Set(key, body, cache.DefaultExpiration)
	return body
}

// forget drops every cached rendering of date.
func (h *Handlers) forget(date string) {
	for key := range h.pages.Items() {
		if strings.HasPrefix(key, date+"|") {
			h.pages.Delete(key)
		}
	}
}

// HandleReportJSON handles GET /api/reports/{date}: the artifact exactly
// as generated.
func (h *Handlers) HandleReportJSON(w http.ResponseWriter, r *http.Request) {
	report, err := ops.FetchReport(r.Context(), h.env, ops.FetchReportInput{
		Date:     pathDate(r),
		Fallback: parseBoolParam(r, "fallback"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, report)
}

// HandleGetEdits handles GET /api/reports/{date}/edits.
func (h *Handlers) HandleGetEdits(w http.ResponseWriter, r *http.Request) {
	edits, err := ops.FetchEdits(r.Context(), h.env, pathDate(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, edits)
}

// HandlePutEdits handles PUT /api/reports/{date}/edits: replaces the
// edit layer for the date in the path.
func (h *Handlers) HandlePutEdits(w http.ResponseWriter, r *http.Request) {
	date := pathDate(r)
	if date == "" {
		today, err := h.env.Today()
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		date = today
	}

	var input ops.EditSet
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEditsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("invalid edits body: %v", err)))
		return
	}
	if input.Date != "" && input.Date != date {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("body date does not match path"))
		return
	}
	input.Date = date

	saved, err := ops.SaveEdits(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.forget(saved.Date)
	renderJSON(w, http.StatusOK, saved)
}

// pathDate returns the {date} path value, with "today" mapped to "".
func pathDate(r *http.Request) string {
	date := r.PathValue("date")
	if date == "today" {
		return ""
	}
	return date
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
	"github.com/hpungsan/daylog/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// RecordRequest represents the arguments for every event_* tool.
// Payload fields that do not apply to the tool's type are ignored by
// validation but still stored.
type RecordRequest struct {
	Timestamp       string  `json:"timestamp,omitempty"`
	Source          string  `json:"source,omitempty"`
	Seq             int64   `json:"seq,omitempty"`
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

// GenerateRequest represents the arguments for report_generate.
type GenerateRequest struct {
	Date string `json:"date,omitempty"`
}

// FetchRequest represents the arguments for report_fetch.
type FetchRequest struct {
	Date     string `json:"date,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Raw      bool   `json:"raw,omitempty"`
}

// ListRequest represents the arguments for report_list.
type ListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Handler implementations

// recordHandler returns the handler for the event_<t> tool.
func (h *Handlers) recordHandler(t event.Type) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := decode[RecordRequest](req)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}

		var ts time.Time
		if s := strings.TrimSpace(input.Timestamp); s != "" {
			ts, err = time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return errorResult(errors.NewInvalidRequest(fmt.Sprintf("timestamp must be RFC3339: %q", s))), nil
			}
		}

		result, err := ops.Record(ctx, h.env, ops.RecordInput{
			Type:      t,
			Timestamp: ts,
			Source:    input.Source,
			Seq:       input.Seq,
			Payload: event.Payload{
				App:             input.App,
				Window:          input.Window,
				Domain:          input.Domain,
				URL:             input.URL,
				PageTitle:       input.PageTitle,
				Meeting:         input.Meeting,
				Title:           input.Title,
				DurationSeconds: input.DurationSeconds,
				IdleSeconds:     input.IdleSeconds,
				CategoryHint:    input.CategoryHint,
			},
		})
		if err != nil {
			return errorResult(err), nil
		}

		return successResult(result)
	}
}

// HandleGenerate handles the report_generate tool call.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Generate(ctx, h.env, ops.GenerateInput{Date: input.Date})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the report_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	report, err := ops.FetchReport(ctx, h.env, ops.FetchReportInput{
		Date:     input.Date,
		Fallback: input.Fallback,
	})
	if err != nil {
		return errorResult(err), nil
	}
	if input.Raw {
		return successResult(report)
	}

	edits, err := ops.FetchEdits(ctx, h.env, report.Date)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errorResult(err), nil
	}

	return successResult(ops.ApplyEdits(report, edits))
}

// HandleList handles the report_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListReports(ctx, h.env, ops.ListReportsInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DaylogError
	if stderrors.As(err, &dErr) {
		// Keep context added by wrapping (e.g. "2024-03-11: ").
		message := strings.TrimSuffix(err.Error(), dErr.Error()) + dErr.Message
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": message,
			"status":  dErr.Status,
		}
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

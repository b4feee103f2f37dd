package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
)

// maxImportLine bounds a single JSONL line.
const maxImportLine = 1 << 20

// ImportInput contains parameters for the ImportEvents operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the ImportEvents operation.
type ImportOutput struct {
	Imported   int           `json:"imported"`
	Duplicates int           `json:"duplicates"`
	Malformed  int           `json:"malformed"`
	Errors     []ImportError `json:"errors"`
}

// ImportError describes one line that was not imported.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportEvents appends events from a JSONL file to the log. The log is
// append-only, so ids already present are counted as duplicates and left
// alone. Malformed lines are reported per line and never abort the import.
func ImportEvents(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, env.Config, env.ExportsDir()); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.DaylogError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	out := &ImportOutput{Errors: []ImportError{}}
	now := env.Now()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(line, &header); err == nil && header.DaylogExport {
			continue
		}

		var ev event.RawEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			out.Malformed++
			out.Errors = append(out.Errors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if err := event.Validate(ev); err != nil {
			out.Malformed++
			out.Errors = append(out.Errors, ImportError{
				Line:    lineNum,
				ID:      ev.ID,
				Code:    string(errors.ErrMalformedEvent),
				Message: err.Error(),
			})
			continue
		}

		if ev.Source == "" {
			ev.Source = DefaultSource
		}
		if ev.ID == "" {
			if ev.ID, err = newID(ev.Timestamp); err != nil {
				return nil, errors.NewInternal(err)
			}
		}

		if err := db.InsertEvent(ctx, env.DB, ev, now.Unix()); err != nil {
			if err == db.ErrUniqueConstraint {
				out.Duplicates++
				continue
			}
			return nil, err
		}
		out.Imported++
	}
	if err := scanner.Err(); err != nil {
		out.Errors = append(out.Errors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return out, nil
}

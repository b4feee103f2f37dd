package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the ExportEvents operation.
type ExportInput struct {
	Path string // default: <exports>/events-<timestamp>.jsonl
}

// ExportOutput contains the result of the ExportEvents operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	DaylogExport  bool   `json:"_daylog_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportEvents writes the whole event log to a JSONL file: a header line
// followed by one event per line, oldest first. The file is written to a
// temp name and renamed, so an existing export survives a failed run.
func ExportEvents(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := env.Now()

	path := input.Path
	if path == "" {
		path = filepath.Join(env.ExportsDir(), fmt.Sprintf("events-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(path, PathCheckWrite, env.Config, env.ExportsDir()); err != nil {
		return nil, err
	}

	count := 0
	err := writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(ExportHeader{
			DaylogExport:  true,
			SchemaVersion: ExportSchemaVersion,
			ExportedAt:    now.Unix(),
		}); err != nil {
			return errors.NewInternal(err)
		}
		return db.StreamEvents(ctx, env.DB, func(ev event.RawEvent) error {
			if err := ctx.Err(); err != nil {
				return errors.NewInternal(err)
			}
			if err := enc.Encode(ev); err != nil {
				return errors.NewInternal(err)
			}
			count++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: path, Count: count, ExportedAt: now.Unix()}, nil
}

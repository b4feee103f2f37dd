package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

// EditSchemaVersion is the edit-layer format this build understands.
const EditSchemaVersion = 1

// EditSet is the client-side edit layer for one report date. It never
// feeds back into generation; it is applied on top of a report when read.
type EditSet struct {
	Date          string            `json:"date"`
	SchemaVersion int               `json:"schema_version"`
	Renames       map[string]string `json:"renames,omitempty"` // bullet id -> title
	Hidden        []string          `json:"hidden,omitempty"`  // bullet ids
	Merges        []Merge           `json:"merges,omitempty"`
	UpdatedAt     int64             `json:"updated_at,omitempty"`
}

// Merge folds the From bullets into Into.
type Merge struct {
	Into string   `json:"into"`
	From []string `json:"from"`
}

// SaveEdits stores the edit layer for a date, replacing any previous one.
// A missing schema version means the current one; any other version is
// rejected with INCOMPATIBLE_SCHEMA.
func SaveEdits(ctx context.Context, env *Env, input EditSet) (*EditSet, error) {
	date, err := resolveDate(env, input.Date)
	if err != nil {
		return nil, err
	}
	input.Date = date

	if input.SchemaVersion == 0 {
		input.SchemaVersion = EditSchemaVersion
	}
	if input.SchemaVersion != EditSchemaVersion {
		return nil, errors.NewIncompatibleSchema(EditSchemaVersion, input.SchemaVersion)
	}
	if err := validateEdits(input); err != nil {
		return nil, err
	}

	input.UpdatedAt = env.Now().Unix()
	data, err := json.Marshal(input)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	row := db.EditRow{
		Date:          date,
		SchemaVersion: input.SchemaVersion,
		EditsJSON:     string(data),
		UpdatedAt:     input.UpdatedAt,
	}
	if err := db.UpsertEdits(ctx, env.DB, row); err != nil {
		return nil, err
	}
	return &input, nil
}

func validateEdits(e EditSet) error {
	for id, title := range e.Renames {
		if strings.TrimSpace(id) == "" {
			return errors.NewInvalidRequest("renames: bullet id must not be empty")
		}
		if strings.TrimSpace(title) == "" {
			return errors.NewInvalidRequest(fmt.Sprintf("renames: title for %s must not be empty", id))
		}
	}
	targets := make(map[string]bool, len(e.Merges))
	for _, m := range e.Merges {
		targets[m.Into] = true
	}
	seen := make(map[string]bool)
	for i, m := range e.Merges {
		if strings.TrimSpace(m.Into) == "" || len(m.From) == 0 {
			return errors.NewInvalidRequest(fmt.Sprintf("merges[%d]: into and from are required", i))
		}
		for _, id := range m.From {
			if id == m.Into {
				return errors.NewInvalidRequest(fmt.Sprintf("merges[%d]: bullet cannot merge into itself", i))
			}
			if seen[id] {
				return errors.NewInvalidRequest(fmt.Sprintf("merges[%d]: bullet %s merged twice", i, id))
			}
			if targets[id] {
				return errors.NewInvalidRequest(fmt.Sprintf("merges[%d]: bullet %s is itself a merge target", i, id))
			}
			seen[id] = true
		}
	}
	return nil
}

// FetchEdits returns the stored edit layer for a date. A layer written
// with another schema version is discarded and reported as NOT_FOUND.
func FetchEdits(ctx context.Context, env *Env, date string) (*EditSet, error) {
	date, err := resolveDate(env, date)
	if err != nil {
		return nil, err
	}

	row, err := db.GetEdits(ctx, env.DB, date)
	if err != nil {
		return nil, err
	}

	if row.SchemaVersion != EditSchemaVersion {
		env.Log.Warn("discarding incompatible edits",
			zap.String("date", date),
			zap.Int("schema_version", row.SchemaVersion),
			zap.Int("want", EditSchemaVersion))
		if err := db.DeleteEdits(ctx, env.DB, date); err != nil {
			return nil, err
		}
		return nil, errors.NewNotFound("edits", date)
	}

	var edits EditSet
	if err := json.Unmarshal([]byte(row.EditsJSON), &edits); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("corrupt edits for %s: %w", date, err))
	}
	return &edits, nil
}

// ApplyEdits returns a copy of report with edits layered on: merges first,
// then renames, then hidden bullets removed. Unknown bullet ids are
// ignored, and so is a source that is also a merge target, which would
// otherwise drop the time folded into it. The input report is not
// modified. Nil or incompatible edits leave the report as it is.
func ApplyEdits(report *engine.Report, edits *EditSet) *engine.Report {
	out := *report
	out.Bullets = make([]engine.Bullet, len(report.Bullets))
	copy(out.Bullets, report.Bullets)
	if edits == nil || edits.SchemaVersion != EditSchemaVersion {
		return &out
	}

	index := make(map[string]int, len(out.Bullets))
	for i, b := range out.Bullets {
		index[b.ID] = i
	}

	targets := make(map[string]bool, len(edits.Merges))
	for _, m := range edits.Merges {
		targets[m.Into] = true
	}

	absorbed := make(map[string]bool)
	for _, m := range edits.Merges {
		into, ok := index[m.Into]
		if !ok {
			continue
		}
		target := out.Bullets[into]
		target.Proof = append([]engine.ProofEntry(nil), target.Proof...)
		for _, id := range m.From {
			i, ok := index[id]
			if !ok || absorbed[id] || targets[id] {
				continue
			}
			src := out.Bullets[i]
			target.Proof = append(target.Proof, src.Proof...)
			target.DurationSeconds += src.DurationSeconds
			absorbed[id] = true
		}
		sortProof(target.Proof)
		target.DurationMinutes = engine.RoundMinutes(time.Duration(target.DurationSeconds * float64(time.Second)))
		out.Bullets[into] = target
	}

	hidden := make(map[string]bool, len(edits.Hidden))
	for _, id := range edits.Hidden {
		hidden[id] = true
	}

	kept := out.Bullets[:0]
	for _, b := range out.Bullets {
		if absorbed[b.ID] || hidden[b.ID] {
			continue
		}
		if title, ok := edits.Renames[b.ID]; ok {
			b.Title = strings.TrimSpace(title)
		}
		kept = append(kept, b)
	}
	out.Bullets = kept
	return &out
}

func sortProof(proof []engine.ProofEntry) {
	sort.SliceStable(proof, func(i, j int) bool {
		return proof[i].Start.Before(proof[j].Start)
	})
}

package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/engine"
	"github.com/hpungsan/daylog/internal/errors"
)

func sampleReport() *engine.Report {
	at := func(h int) time.Time { return time.Date(2024, 3, 11, h, 0, 0, 0, time.UTC) }
	return &engine.Report{
		Date: "2024-03-11",
		Bullets: []engine.Bullet{
			{ID: "b_a", Title: "Editor — main", Category: "Coding", DurationMinutes: 30, DurationSeconds: 1800,
				Proof: []engine.ProofEntry{{SessionID: "s_a", Start: at(11)}}},
			{ID: "b_b", Title: "Terminal", Category: "Coding", DurationMinutes: 20, DurationSeconds: 1200,
				Proof: []engine.ProofEntry{{SessionID: "s_b", Start: at(9)}}},
			{ID: "b_c", Title: "Slack", Category: "Communication", DurationMinutes: 10, DurationSeconds: 600,
				Proof: []engine.ProofEntry{{SessionID: "s_c", Start: at(10)}}},
		},
	}
}

func TestSaveAndFetchEdits(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	saved, err := SaveEdits(ctx, env, EditSet{
		Date:    "2024-03-11",
		Renames: map[string]string{"b_a": "Shipped parser"},
		Hidden:  []string{"b_c"},
	})
	require.NoError(t, err)
	assert.Equal(t, EditSchemaVersion, saved.SchemaVersion)
	assert.Equal(t, fixedNow.Unix(), saved.UpdatedAt)

	got, err := FetchEdits(ctx, env, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, "Shipped parser", got.Renames["b_a"])
	assert.Equal(t, []string{"b_c"}, got.Hidden)

	_, err = FetchEdits(ctx, env, "2024-03-12")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSaveEdits_RejectsIncompatibleSchema(t *testing.T) {
	env := setupEnv(t)
	_, err := SaveEdits(context.Background(), env, EditSet{Date: "2024-03-11", SchemaVersion: 99})
	assert.True(t, errors.Is(err, errors.ErrIncompatibleSchema), "err = %v", err)
}

func TestSaveEdits_Validation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	tests := []EditSet{
		{Date: "2024-03-11", Renames: map[string]string{"b_a": "  "}},
		{Date: "2024-03-11", Merges: []Merge{{Into: "b_a"}}},
		{Date: "2024-03-11", Merges: []Merge{{Into: "b_a", From: []string{"b_a"}}}},
		{Date: "2024-03-11", Merges: []Merge{{Into: "b_a", From: []string{"b_b"}}, {Into: "b_c", From: []string{"b_b"}}}},
		{Date: "2024-03-11", Merges: []Merge{{Into: "b_a", From: []string{"b_b"}}, {Into: "b_b", From: []string{"b_c"}}}},
		{Date: "2024-03-11", Merges: []Merge{{Into: "b_b", From: []string{"b_c"}}, {Into: "b_a", From: []string{"b_b"}}}},
		{Date: "11-03-2024"},
	}
	for i, in := range tests {
		_, err := SaveEdits(ctx, env, in)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "case %d: err = %v", i, err)
	}
}

func TestFetchEdits_DiscardsIncompatibleStoredVersion(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertEdits(ctx, env.DB, db.EditRow{
		Date:          "2024-03-11",
		SchemaVersion: 0,
		EditsJSON:     `{"renamed":{"x":"y"}}`,
		UpdatedAt:     1,
	}))

	_, err := FetchEdits(ctx, env, "2024-03-11")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = db.GetEdits(ctx, env.DB, "2024-03-11")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "incompatible row must be deleted")
}

func TestApplyEdits(t *testing.T) {
	report := sampleReport()
	edits := &EditSet{
		SchemaVersion: EditSchemaVersion,
		Renames:       map[string]string{"b_a": "Shipped parser", "b_missing": "ignored"},
		Merges:        []Merge{{Into: "b_a", From: []string{"b_b", "b_unknown"}}},
		Hidden:        []string{"b_c"},
	}

	got := ApplyEdits(report, edits)
	require.Len(t, got.Bullets, 1)
	b := got.Bullets[0]
	assert.Equal(t, "Shipped parser", b.Title)
	assert.Equal(t, 3000.0, b.DurationSeconds)
	assert.Equal(t, int64(50), b.DurationMinutes)
	require.Len(t, b.Proof, 2)
	assert.Equal(t, "s_b", b.Proof[0].SessionID, "proof stays chronological")

	// The emitted report is never mutated.
	assert.Len(t, report.Bullets, 3)
	assert.Equal(t, "Editor — main", report.Bullets[0].Title)
	assert.Len(t, report.Bullets[0].Proof, 1)
}

func TestApplyEdits_ChainedMergeKeepsTime(t *testing.T) {
	report := sampleReport()
	edits := &EditSet{
		SchemaVersion: EditSchemaVersion,
		Merges: []Merge{
			{Into: "b_a", From: []string{"b_b"}},
			{Into: "b_b", From: []string{"b_c"}},
		},
	}

	got := ApplyEdits(report, edits)
	var total float64
	for _, b := range got.Bullets {
		total += b.DurationSeconds
	}
	assert.Equal(t, 3600.0, total, "no time may be lost to a merge chain")
	require.Len(t, got.Bullets, 2)
	assert.Equal(t, "b_a", got.Bullets[0].ID)
	assert.Equal(t, 1800.0, got.Bullets[0].DurationSeconds)
	assert.Equal(t, "b_b", got.Bullets[1].ID)
	assert.Equal(t, 1800.0, got.Bullets[1].DurationSeconds)
}

func TestApplyEdits_NilAndIncompatible(t *testing.T) {
	report := sampleReport()
	assert.Len(t, ApplyEdits(report, nil).Bullets, 3)

	stale := &EditSet{SchemaVersion: 7, Hidden: []string{"b_a", "b_b", "b_c"}}
	assert.Len(t, ApplyEdits(report, stale).Bullets, 3)
}

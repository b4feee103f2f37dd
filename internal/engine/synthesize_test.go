package engine

import (
	"testing"
	"time"
)

func categorized(id, label, category string, rank int, start time.Time, d time.Duration) CategorizedSession {
	return CategorizedSession{
		Session: Session{
			ID:       id,
			Label:    label,
			Start:    start,
			End:      start.Add(d),
			Duration: d,
			Source:   "src-" + id,
		},
		Category:     category,
		PriorityRank: rank,
	}
}

func TestRoundMinutes(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{29 * time.Second, 0},
		{30 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
		{150 * time.Second, 3},
		{960 * time.Second, 16},
	}
	for _, tt := range tests {
		if got := RoundMinutes(tt.d); got != tt.want {
			t.Errorf("RoundMinutes(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestSynthesize_GroupsByNormalizedTitle(t *testing.T) {
	sessions := []CategorizedSession{
		categorized("s2", "fix bug", "Coding", 1, at("11:00:00"), 20*time.Minute),
		categorized("s1", "Fix bug!", "Coding", 1, at("09:00:00"), 10*time.Minute),
		categorized("s3", "Fix bug", "Research", 2, at("10:00:00"), 5*time.Minute),
	}

	bullets, omitted := Synthesize(sessions, time.Minute)
	if omitted.Count != 0 {
		t.Errorf("omitted = %+v", omitted)
	}
	if len(bullets) != 2 {
		t.Fatalf("len(bullets) = %d, want 2", len(bullets))
	}

	b := bullets[0]
	if b.Category != "Coding" || b.DurationMinutes != 30 || len(b.Proof) != 2 {
		t.Errorf("bullet = %+v", b)
	}
	if b.Title != "Fix bug!" {
		t.Errorf("Title = %q, want earliest session's label", b.Title)
	}
	if b.Proof[0].SessionID != "s1" || b.Proof[1].SessionID != "s2" {
		t.Errorf("proof not chronological: %s, %s", b.Proof[0].SessionID, b.Proof[1].SessionID)
	}
	if b.Source != "src-s2" {
		t.Errorf("Source = %q, want dominant session's source", b.Source)
	}
	if b.ID != BulletID("Coding", "fix bug") {
		t.Errorf("ID = %s, not derived from category and normalized title", b.ID)
	}
	if bullets[1].ID == b.ID {
		t.Error("different categories must not share an id")
	}
}

func TestSynthesize_OmitsShortSessions(t *testing.T) {
	sessions := []CategorizedSession{
		categorized("s1", "Editor", "Coding", 1, at("09:00:00"), 59*time.Second),
		categorized("s2", "Editor", "Coding", 1, at("09:10:00"), 0),
		categorized("s3", "Slack", "Communication", 3, at("09:20:00"), 2*time.Minute),
	}
	bullets, omitted := Synthesize(sessions, time.Minute)
	if len(bullets) != 1 || bullets[0].Title != "Slack" {
		t.Fatalf("bullets = %+v", bullets)
	}
	if omitted.Count != 2 || omitted.Duration != 59*time.Second {
		t.Errorf("omitted = %+v, want 2 sessions / 59s", omitted)
	}
}

func TestAssemble_Ordering(t *testing.T) {
	bullets, _ := Synthesize([]CategorizedSession{
		categorized("a", "Editor", "Coding", 1, at("09:00:00"), 30*time.Minute),
		categorized("b", "Terminal", "Coding", 1, at("08:00:00"), 45*time.Minute),
		categorized("c", "Standup", "Meetings", 0, at("10:00:00"), 5*time.Minute),
		categorized("d", "Vim", "Coding", 1, at("07:00:00"), 30*time.Minute),
		categorized("e", "Misc", "Other", 4, at("06:00:00"), 3*time.Hour),
	}, time.Minute)

	report := Assemble(testDay, bullets, Metadata{})
	var got []string
	for _, b := range report.Bullets {
		got = append(got, b.Title)
	}
	want := []string{"Standup", "Terminal", "Vim", "Editor", "Misc"}
	if len(got) != len(want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("titles = %v, want %v", got, want)
		}
	}
}

func TestAssemble_EmptyIsNotNil(t *testing.T) {
	report := Assemble(testDay, nil, Metadata{})
	if report.Bullets == nil || !report.Empty() {
		t.Errorf("Bullets = %#v, want empty non-nil", report.Bullets)
	}
}

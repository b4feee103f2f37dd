package engine

import (
	"sort"
	"time"

	"github.com/hpungsan/daylog/internal/event"
)

// Omitted accounts for sessions too short to become bullets.
type Omitted struct {
	Count    int
	Duration time.Duration
}

// Synthesize groups categorized sessions by (category, normalized title)
// and builds one bullet per group. Sessions shorter than minSignificance
// are left out of bullets and reported in Omitted instead.
func Synthesize(sessions []CategorizedSession, minSignificance time.Duration) ([]Bullet, Omitted) {
	var omitted Omitted
	groups := make(map[string][]CategorizedSession)
	var order []string

	for _, s := range sessions {
		if s.Duration < minSignificance {
			omitted.Count++
			omitted.Duration += s.Duration
			continue
		}
		key := s.Category + "\x1f" + event.NormalizeTitle(s.Label)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}

	bullets := make([]Bullet, 0, len(groups))
	for _, key := range order {
		bullets = append(bullets, buildBullet(groups[key]))
	}
	return bullets, omitted
}

func buildBullet(group []CategorizedSession) Bullet {
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].Start.Equal(group[j].Start) {
			return group[i].Start.Before(group[j].Start)
		}
		return group[i].ID < group[j].ID
	})

	first := group[0]
	b := Bullet{
		ID:           BulletID(first.Category, first.Label),
		Title:        first.Label,
		Category:     first.Category,
		PriorityRank: first.PriorityRank,
		Proof:        make([]ProofEntry, 0, len(group)),
	}

	var total time.Duration
	dominant := first
	for _, s := range group {
		total += s.Duration
		if s.Duration > dominant.Duration {
			dominant = s
		}
		b.Proof = append(b.Proof, ProofEntry{
			SessionID:       s.ID,
			Label:           s.Label,
			Start:           s.Start,
			End:             s.End,
			DurationSeconds: s.Duration.Seconds(),
			Source:          s.Source,
			EventIDs:        s.EventIDs(),
		})
	}

	b.DurationSeconds = total.Seconds()
	b.DurationMinutes = RoundMinutes(total)
	b.Source = dominant.Source
	return b
}

// BulletID is the stable id of the bullet for (category, title).
func BulletID(category, title string) string {
	return shortHash("b_", category, event.NormalizeTitle(title))
}

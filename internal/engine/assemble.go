package engine

import "sort"

// Assemble orders bullets and wraps them in a report for day.
// Bullets sort by priority rank, then longest first, then earliest proof,
// then id. A day without bullets yields an empty, non-nil list.
func Assemble(day string, bullets []Bullet, meta Metadata) *Report {
	out := make([]Bullet, len(bullets))
	copy(out, bullets)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PriorityRank != b.PriorityRank {
			return a.PriorityRank < b.PriorityRank
		}
		if a.DurationMinutes != b.DurationMinutes {
			return a.DurationMinutes > b.DurationMinutes
		}
		as, bs := a.Proof[0].Start, b.Proof[0].Start
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		return a.ID < b.ID
	})

	return &Report{
		Date:     day,
		Bullets:  out,
		Metadata: meta,
	}
}

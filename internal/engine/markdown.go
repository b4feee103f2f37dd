package engine

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders the report as a markdown document: one section per
// category in bullet order, each bullet followed by its proof sessions
// in the report's timezone.
func (r *Report) Markdown() string {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil || r.Timezone == "" {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", r.Date)
	if len(r.Bullets) == 0 {
		b.WriteString("\nNo activity recorded.\n")
		return b.String()
	}

	category := ""
	for _, bullet := range r.Bullets {
		if bullet.Category != category {
			category = bullet.Category
			fmt.Fprintf(&b, "\n## %s\n\n", escapeMarkdown(category))
		}
		fmt.Fprintf(&b, "- **%s** (%s)\n", escapeMarkdown(bullet.Title), FormatMinutes(bullet.DurationMinutes))
		for _, p := range bullet.Proof {
			fmt.Fprintf(&b, "  - %s–%s %s\n",
				p.Start.In(loc).Format("15:04"),
				p.End.In(loc).Format("15:04"),
				escapeMarkdown(p.Label))
		}
	}
	return b.String()
}

// FormatMinutes renders a minute count as "45m" or "1h 05m".
func FormatMinutes(m int64) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`,
	`[`, `\[`, `]`, `\]`, `#`, `\#`, `<`, `\<`, `>`, `\>`, `|`, `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

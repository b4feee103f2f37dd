package engine

import (
	"fmt"
	"strings"

	"github.com/hpungsan/daylog/internal/errors"
)

// OtherCategory is assigned to sessions no rule matches.
const OtherCategory = "Other"

// MatchField selects which session attribute a matcher inspects.
type MatchField string

const (
	FieldLabel  MatchField = "label"
	FieldApp    MatchField = "app"
	FieldDomain MatchField = "domain"
	FieldHint   MatchField = "hint"
	FieldKind   MatchField = "kind"
	FieldAny    MatchField = "*"
)

// MatchOp is how patterns are compared against the field.
type MatchOp string

const (
	OpContains MatchOp = "contains"
	OpEquals   MatchOp = "equals"
)

// Matcher tests one session attribute against a list of patterns.
// Matching is case-insensitive; any pattern matching is enough.
type Matcher struct {
	Field    MatchField `json:"field"`
	Op       MatchOp    `json:"op,omitempty"`
	Patterns []string   `json:"patterns,omitempty"`
}

// Rule maps sessions matching Match to Category.
type Rule struct {
	Category string  `json:"category"`
	Match    Matcher `json:"match"`
}

// DefaultRules is the built-in rule list in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "Meetings", Match: Matcher{Field: FieldHint, Op: OpEquals, Patterns: []string{"meetings", "meeting"}}},
		{Category: "Meetings", Match: Matcher{Field: FieldKind, Op: OpEquals, Patterns: []string{"meeting"}}},
		{Category: "Meetings", Match: Matcher{Field: FieldLabel, Patterns: []string{"standup", "sync", "1:1", "meeting"}}},
		{Category: "Coding", Match: Matcher{Field: FieldHint, Op: OpEquals, Patterns: []string{"coding"}}},
		{Category: "Coding", Match: Matcher{Field: FieldApp, Patterns: []string{"code", "vim", "goland", "intellij", "xcode", "terminal", "iterm", "editor"}}},
		{Category: "Coding", Match: Matcher{Field: FieldDomain, Patterns: []string{"github.com", "gitlab.com"}}},
		{Category: "Research", Match: Matcher{Field: FieldHint, Op: OpEquals, Patterns: []string{"research"}}},
		{Category: "Research", Match: Matcher{Field: FieldDomain, Patterns: []string{"stackoverflow.com", "pkg.go.dev", "wikipedia.org", "arxiv.org", "docs."}}},
		{Category: "Communication", Match: Matcher{Field: FieldHint, Op: OpEquals, Patterns: []string{"communication"}}},
		{Category: "Communication", Match: Matcher{Field: FieldApp, Patterns: []string{"slack", "mail", "teams", "discord"}}},
		{Category: "Communication", Match: Matcher{Field: FieldDomain, Patterns: []string{"mail.google.com", "slack.com"}}},
		{Category: OtherCategory, Match: Matcher{Field: FieldAny}},
	}
}

// ValidateRules checks a rule list and returns a CONFIGURATION error for
// the first problem.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.NewConfiguration("category_rules", "at least one rule is required")
	}
	for i, r := range rules {
		field := fmt.Sprintf("category_rules[%d]", i)
		if strings.TrimSpace(r.Category) == "" {
			return errors.NewConfiguration(field, "category is required")
		}
		switch r.Match.Field {
		case FieldAny:
			continue
		case FieldLabel, FieldApp, FieldDomain, FieldHint, FieldKind:
		default:
			return errors.NewConfiguration(field, fmt.Sprintf("unknown match field %q", r.Match.Field))
		}
		switch r.Match.Op {
		case "", OpContains, OpEquals:
		default:
			return errors.NewConfiguration(field, fmt.Sprintf("unknown match op %q", r.Match.Op))
		}
		if len(r.Match.Patterns) == 0 {
			return errors.NewConfiguration(field, "patterns are required unless field is \"*\"")
		}
	}
	return nil
}

type compiledRule struct {
	category string
	field    MatchField
	op       MatchOp
	patterns []string
}

// Categorizer resolves each session to exactly one category.
// The first matching rule wins; a category's priority rank is the position
// of its first appearance among the distinct categories of the rule list.
type Categorizer struct {
	rules []compiledRule
	ranks map[string]int
	other int
}

// NewCategorizer compiles an ordered rule list.
func NewCategorizer(rules []Rule) (*Categorizer, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	c := &Categorizer{ranks: make(map[string]int)}
	for _, r := range rules {
		category := strings.TrimSpace(r.Category)
		if _, ok := c.ranks[category]; !ok {
			c.ranks[category] = len(c.ranks)
		}
		op := r.Match.Op
		if op == "" {
			op = OpContains
		}
		patterns := make([]string, 0, len(r.Match.Patterns))
		for _, p := range r.Match.Patterns {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				patterns = append(patterns, p)
			}
		}
		c.rules = append(c.rules, compiledRule{
			category: category,
			field:    r.Match.Field,
			op:       op,
			patterns: patterns,
		})
	}

	c.other = len(c.ranks)
	if rank, ok := c.ranks[OtherCategory]; ok {
		c.other = rank
	}
	return c, nil
}

// Rank returns the priority rank of category (lower is higher priority).
// Unknown categories rank with Other.
func (c *Categorizer) Rank(category string) int {
	if rank, ok := c.ranks[category]; ok {
		return rank
	}
	return c.other
}

// Categorize assigns s its category and priority rank.
func (c *Categorizer) Categorize(s Session) CategorizedSession {
	for _, r := range c.rules {
		if r.matches(s) {
			return CategorizedSession{Session: s, Category: r.category, PriorityRank: c.ranks[r.category]}
		}
	}
	return CategorizedSession{Session: s, Category: OtherCategory, PriorityRank: c.other}
}

func (r compiledRule) matches(s Session) bool {
	var value string
	switch r.field {
	case FieldAny:
		return true
	case FieldLabel:
		value = s.Label
	case FieldApp:
		value = s.App()
	case FieldDomain:
		value = s.Domain()
	case FieldHint:
		value = s.Hint
	case FieldKind:
		value = string(s.Kind)
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	for _, p := range r.patterns {
		if r.op == OpEquals && value == p {
			return true
		}
		if r.op == OpContains && strings.Contains(value, p) {
			return true
		}
	}
	return false
}

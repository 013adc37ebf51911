package routing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// MatchKind selects how a rule's terms are compared against the normalized
// question.
type MatchKind string

const (
	// MatchKeyword matches any term: whole-token equality for single-word
	// terms, substring for multi-word terms.
	MatchKeyword MatchKind = "keyword"
	// MatchPhrase matches a question equal to a term or starting with
	// term + " ", bounded by MaxTokens.
	MatchPhrase MatchKind = "phrase"
	// MatchExact matches a question exactly equal to a term, bounded by
	// MaxTokens.
	MatchExact MatchKind = "exact"
	// MatchPrefix matches a question starting with a term.
	MatchPrefix MatchKind = "prefix"
)

// Rule is one classification entry of the ordered rule table.
type Rule struct {
	Name                 string           `yaml:"name"`
	Path                 domain.RoutePath `yaml:"path"`
	Match                MatchKind        `yaml:"match"`
	Terms                []string         `yaml:"terms"`
	MaxTokens            int              `yaml:"max_tokens"`
	RequiresCachedAnswer bool             `yaml:"requires_cached_answer"`
}

// RuleSet is the declarative router configuration.
type RuleSet struct {
	LengthThreshold int    `yaml:"length_threshold"`
	Rules           []Rule `yaml:"rules"`
}

// DefaultRuleSet loads the embedded rule table.
func DefaultRuleSet() RuleSet {
	rs, err := ParseRuleSet(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("routing: embedded rules invalid: %v", err))
	}
	return rs
}

// ParseRuleSet decodes and validates a YAML rule table.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule set: %w", err)
	}
	if rs.LengthThreshold <= 0 {
		rs.LengthThreshold = 50
	}
	for i, rule := range rs.Rules {
		if rule.Name == "" {
			return RuleSet{}, fmt.Errorf("rule %d: name is required", i)
		}
		if rule.Path != domain.PathFast && rule.Path != domain.PathFull {
			return RuleSet{}, fmt.Errorf("rule %q: path must be fast or full", rule.Name)
		}
		switch rule.Match {
		case MatchKeyword, MatchPhrase, MatchExact, MatchPrefix:
		default:
			return RuleSet{}, fmt.Errorf("rule %q: unknown match kind %q", rule.Name, rule.Match)
		}
		if len(rule.Terms) == 0 {
			return RuleSet{}, fmt.Errorf("rule %q: terms are required", rule.Name)
		}
	}
	return rs, nil
}

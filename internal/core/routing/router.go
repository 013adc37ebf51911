// Package routing classifies questions as fast-path (cache-eligible) or
// full-path (live retrieval / tool calls). Classification is advisory and
// deterministic: same question and context, same decision, no I/O.
package routing

import (
	"strings"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/core/normalize"
)

const (
	ReasonShortHeuristic = "short-heuristic"
	ReasonLongHeuristic  = "long-heuristic"

	// ReasonCalendar names the rule that sends schedule questions to the
	// live calendar feed. It must match the rule name in rules.yaml.
	ReasonCalendar = "calendar"
)

type Router struct {
	rules RuleSet
}

func New(rules RuleSet) *Router {
	return &Router{rules: rules}
}

func NewDefault() *Router {
	return New(DefaultRuleSet())
}

func (r *Router) Detect(question string, chatCtx domain.ChatContext) domain.RouteDecision {
	normalized := normalize.Normalize(question)
	tokens := normalize.Tokens(normalized)

	for _, rule := range r.rules.Rules {
		if rule.RequiresCachedAnswer && !chatCtx.LastAnswerFromCache {
			continue
		}
		if rule.MaxTokens > 0 && len(tokens) > rule.MaxTokens {
			continue
		}
		if ruleMatches(rule, normalized, tokens) {
			return domain.RouteDecision{Path: rule.Path, Reason: rule.Name}
		}
	}

	if len(normalized) < r.rules.LengthThreshold {
		return domain.RouteDecision{Path: domain.PathFast, Reason: ReasonShortHeuristic}
	}
	return domain.RouteDecision{Path: domain.PathFull, Reason: ReasonLongHeuristic}
}

func ruleMatches(rule Rule, normalized string, tokens []string) bool {
	for _, term := range rule.Terms {
		switch rule.Match {
		case MatchKeyword:
			if matchKeyword(term, normalized, tokens) {
				return true
			}
		case MatchPhrase:
			if normalized == term || strings.HasPrefix(normalized, term+" ") {
				return true
			}
		case MatchExact:
			if normalized == term {
				return true
			}
		case MatchPrefix:
			if strings.HasPrefix(normalized, term) {
				return true
			}
		}
	}
	return false
}

// matchKeyword requires whole-token equality for single-word terms so that
// "mes" does not match "mesas"; multi-word terms match as substrings.
func matchKeyword(term, normalized string, tokens []string) bool {
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(normalized, term)
	}
	for _, token := range tokens {
		if token == term {
			return true
		}
	}
	return false
}

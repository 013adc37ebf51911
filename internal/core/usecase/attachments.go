package usecase

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/core/normalize"
)

//go:embed resources.yaml
var defaultResourcesYAML []byte

// Resource is one entry of the parish resource table: a form, PDF or link
// that can be appended to an answer when the question touches its keywords.
type Resource struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Type        string   `yaml:"type"`
	Keywords    []string `yaml:"keywords"`
}

type resourceFile struct {
	Resources []Resource `yaml:"resources"`
}

// ResourceCatalog matches questions against the resource table through an
// inverted keyword index, so lookup cost scales with the question's tokens
// rather than the table size. It runs as a post-processing stage: it never
// changes answer text, only appends attachments.
type ResourceCatalog struct {
	resources []Resource
	index     map[string][]int
	maxMatch  int
}

// NewResourceCatalog validates the table and precomputes the keyword index.
func NewResourceCatalog(resources []Resource) (*ResourceCatalog, error) {
	c := &ResourceCatalog{resources: resources, index: make(map[string][]int), maxMatch: 3}
	seen := make(map[string]struct{}, len(resources))
	for i, r := range resources {
		if r.ID == "" || r.URL == "" || r.Title == "" {
			return nil, fmt.Errorf("resource %d: id, title and url are required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("resource %q: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("resource %q: at least one keyword required", r.ID)
		}
		for _, kw := range r.Keywords {
			kw = normalize.Normalize(kw)
			if kw == "" {
				continue
			}
			c.index[kw] = append(c.index[kw], i)
		}
	}
	return c, nil
}

// ParseResourceCatalog reads a YAML resource table.
func ParseResourceCatalog(data []byte) (*ResourceCatalog, error) {
	var file resourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse resource table: %w", err)
	}
	return NewResourceCatalog(file.Resources)
}

// DefaultResourceCatalog returns the embedded parish resource table.
func DefaultResourceCatalog() *ResourceCatalog {
	c, err := ParseResourceCatalog(defaultResourcesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded resource table invalid: %v", err))
	}
	return c
}

// Match returns up to three attachments relevant to the question, most
// relevant first. An empty slice means the answer goes out bare.
func (c *ResourceCatalog) Match(question string) []domain.Attachment {
	normalized := normalize.Normalize(question)
	words := normalize.Tokens(normalized)
	if len(words) == 0 {
		return nil
	}

	candidates := make(map[int]struct{})
	for _, word := range words {
		for kw, ids := range c.index {
			if tokenMatches(kw, word) {
				for _, id := range ids {
					candidates[id] = struct{}{}
				}
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for pos := range candidates {
		score := relevance(normalized, words, c.resources[pos].Keywords)
		if score > 0 {
			ranked = append(ranked, scored{pos: pos, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})
	if len(ranked) > c.maxMatch {
		ranked = ranked[:c.maxMatch]
	}

	out := make([]domain.Attachment, 0, len(ranked))
	for _, s := range ranked {
		r := c.resources[s.pos]
		out = append(out, domain.Attachment{
			Title:       r.Title,
			Description: r.Description,
			URL:         r.URL,
			Type:        r.Type,
		})
	}
	return out
}

// relevance weighs a resource against the question: a keyword appearing
// whole in the question counts double, token-level containment counts once.
// The sum is normalized by the keyword count so verbose resources do not
// win by volume.
func relevance(normalizedQuestion string, words []string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range keywords {
		kw = normalize.Normalize(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(normalizedQuestion, kw) {
			matches += 2
		}
		for _, word := range words {
			if tokenMatches(kw, word) {
				matches++
			}
		}
	}
	return float64(matches) / float64(len(keywords))
}

// tokenMatches pairs a keyword with one question token. Short tokens only
// match exactly; containment on stopword-sized tokens ("la", "de") would
// light up most of the table.
func tokenMatches(kw, word string) bool {
	if kw == word {
		return true
	}
	if len([]rune(word)) < 4 || len([]rune(kw)) < 4 {
		return false
	}
	return strings.Contains(kw, word) || strings.Contains(word, kw)
}

// Package memory implements the in-process answer lookup tier: exact and
// token-overlap approximate matching over normalized questions, TTL expiry
// and category exclusions for content that must never be served stale.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/normalize"
)

type Config struct {
	// TTL after which an entry is expired. Default 1 hour.
	TTL time.Duration
	// SimilarityThreshold is inclusive: a candidate at exactly the
	// threshold is a hit. Default 0.75.
	SimilarityThreshold float64
	// CleanupInterval drives the background janitor; zero disables it.
	CleanupInterval time.Duration
	// CalendarKeywords mark questions whose answers are date-relative and
	// must never be cached. Single-word keywords match whole tokens,
	// multi-word keywords match substrings.
	CalendarKeywords []string
	// GenericVocabulary is the closed set of acknowledgement words; a
	// question of at most three tokens drawn entirely from it carries no
	// retrievable content and is never cached.
	GenericVocabulary []string
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.TTL <= 0 {
		out.TTL = time.Hour
	}
	if out.SimilarityThreshold <= 0 || out.SimilarityThreshold > 1 {
		out.SimilarityThreshold = 0.75
	}
	if out.CalendarKeywords == nil {
		out.CalendarKeywords = DefaultCalendarKeywords()
	}
	if out.GenericVocabulary == nil {
		out.GenericVocabulary = DefaultGenericVocabulary()
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

func DefaultCalendarKeywords() []string {
	return []string{
		"evento", "eventos", "events", "actividad", "actividades",
		"hoy", "mañana", "today", "tomorrow",
		"próximo", "proxima", "próxima", "upcoming",
		"cuando", "cuándo", "fecha", "fechas",
		"semana", "mes", "día", "dia", "week",
		"calendario", "programado", "programada",
		"qué hay", "que hay", "what's on",
	}
}

func DefaultGenericVocabulary() []string {
	return []string{
		"gracias", "ok", "vale", "entendido", "perfecto",
		"si", "sí", "no", "claro", "hola", "adios", "adiós",
		"bien", "mal", "bueno", "genial", "thanks",
	}
}

type entry struct {
	rawQuestion   string
	normalizedKey string
	answer        string
	createdAt     time.Time
}

// Cache is safe for concurrent use. Entries are inserted atomically as a
// unit; concurrent Set calls on the same key are last-write-wins.
type Cache struct {
	cfg     Config
	generic map[string]struct{}

	mu      sync.RWMutex
	entries map[string]*entry

	stop      chan struct{}
	closeOnce sync.Once
}

// SeedEntry is one pre-baked question/answer pair used to populate the
// cache at construction time.
type SeedEntry struct {
	Question   string   `yaml:"question"`
	Answer     string   `yaml:"answer"`
	Variations []string `yaml:"variations"`
}

// New builds a cache populated from seed and, when CleanupInterval is set,
// starts the background janitor. Call Close to release it.
func New(cfg Config, seed []SeedEntry) *Cache {
	cfg = cfg.withDefaults()

	generic := make(map[string]struct{}, len(cfg.GenericVocabulary))
	for _, w := range cfg.GenericVocabulary {
		generic[normalize.Normalize(w)] = struct{}{}
	}

	c := &Cache{
		cfg:     cfg,
		generic: generic,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}

	now := cfg.Clock()
	for _, s := range seed {
		c.insert(s.Question, s.Answer, now)
		for _, variation := range s.Variations {
			c.insert(variation, s.Answer, now)
		}
	}

	if cfg.CleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Get returns a cached answer for the question or a miss. Calendar-relative
// and generic questions are an unconditional miss regardless of contents.
func (c *Cache) Get(question string) (string, bool) {
	if c.Excluded(question) {
		return "", false
	}

	key := normalize.Normalize(question)
	now := c.cfg.Clock()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Sub(e.createdAt) < c.cfg.TTL {
			c.mu.Unlock()
			return e.answer, true
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return c.scanSimilar(key, now)
}

// scanSimilar walks all live entries looking for a token-overlap match at or
// above the threshold, evicting expired entries found along the way.
func (c *Cache) scanSimilar(key string, now time.Time) (string, bool) {
	tokens := normalize.Tokens(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.cfg.TTL {
			delete(c.entries, k)
			continue
		}
		if similarity(tokens, normalize.Tokens(e.normalizedKey)) >= c.cfg.SimilarityThreshold {
			return e.answer, true
		}
	}
	return "", false
}

// Set stores an answer unless the question is excluded. An existing entry
// for the same normalized key is fully replaced, creation time included.
func (c *Cache) Set(question, answer string) {
	if c.Excluded(question) {
		return
	}
	c.insert(question, answer, c.cfg.Clock())
}

func (c *Cache) insert(question, answer string, now time.Time) {
	key := normalize.Normalize(question)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.entries[key] = &entry{
		rawQuestion:   question,
		normalizedKey: key,
		answer:        answer,
		createdAt:     now,
	}
	c.mu.Unlock()
}

// Cleanup sweeps expired entries incrementally: the write lock is held per
// entry, never across the whole sweep.
func (c *Cache) Cleanup() int {
	now := c.cfg.Clock()

	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	evicted := 0
	for _, k := range keys {
		c.mu.Lock()
		if e, ok := c.entries[k]; ok && now.Sub(e.createdAt) >= c.cfg.TTL {
			delete(c.entries, k)
			evicted++
		}
		c.mu.Unlock()
	}
	return evicted
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Excluded reports whether a question belongs to a class that is never
// cached: calendar-relative content or short generic acknowledgements.
func (c *Cache) Excluded(question string) bool {
	key := normalize.Normalize(question)
	return c.calendarRelated(key) || c.genericUtterance(key)
}

func (c *Cache) calendarRelated(key string) bool {
	tokens := normalize.Tokens(key)
	for _, kw := range c.cfg.CalendarKeywords {
		if containsKeyword(kw, key, tokens) {
			return true
		}
	}
	return false
}

func (c *Cache) genericUtterance(key string) bool {
	tokens := normalize.Tokens(key)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	for _, t := range tokens {
		if _, ok := c.generic[t]; !ok {
			return false
		}
	}
	return true
}

// containsKeyword follows the same convention as the router's rule table:
// multi-word keywords match substrings, single words match whole tokens.
func containsKeyword(kw, key string, tokens []string) bool {
	if strings.ContainsRune(kw, ' ') {
		return strings.Contains(key, kw)
	}
	for _, t := range tokens {
		if t == kw {
			return true
		}
	}
	return false
}

// EntryStat describes one live entry for the stats endpoint.
type EntryStat struct {
	Question   string `json:"question"`
	AgeSeconds int    `json:"age_seconds"`
}

type Stats struct {
	Size    int         `json:"size"`
	Entries []EntryStat `json:"entries"`
}

func (c *Cache) Stats() Stats {
	now := c.cfg.Clock()
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Size: len(c.entries), Entries: make([]EntryStat, 0, len(c.entries))}
	for _, e := range c.entries {
		stats.Entries = append(stats.Entries, EntryStat{
			Question:   e.rawQuestion,
			AgeSeconds: int(now.Sub(e.createdAt).Seconds()),
		})
	}
	return stats
}

// Package postgres implements the durable answer tier: a key-value table
// keyed by the same normalized-question scheme as the in-process cache,
// with longer per-category TTLs. Store unavailability is never fatal; the
// pipeline treats any error as a miss.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jordivila/parroquia-assistant/internal/core/normalize"
)

type Config struct {
	// DefaultTTL applies when no category keyword matches. Default 1 hour.
	DefaultTTL time.Duration
	// StableTTL applies to contact/location style questions. Default 24h.
	StableTTL time.Duration
	// GroupTTL applies to named group/community questions. Default 7 days.
	GroupTTL time.Duration
	// Excluded marks questions that must never be written or served; nil
	// disables the check (the caller already filters).
	Excluded func(question string) bool
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.DefaultTTL <= 0 {
		out.DefaultTTL = time.Hour
	}
	if out.StableTTL <= 0 {
		out.StableTTL = 24 * time.Hour
	}
	if out.GroupTTL <= 0 {
		out.GroupTTL = 7 * 24 * time.Hour
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// Keyword sets driving the per-category TTL policy: very stable facts keep
// for a day, group descriptions for a week.
var (
	stableKeywords = []string{
		"qué es", "que es", "quién es", "quien es",
		"dirección", "direccion", "ubicación", "ubicacion",
		"teléfono", "telefono", "dónde está", "donde esta",
		"contacto", "email", "correo",
	}
	groupKeywords = []string{
		"eloos", "catequesis", "grupo", "comunidad",
		"bartimeo", "pozo", "dalmanuta", "mies",
		"caritas", "cáritas", "voluntario", "servicio",
	}
)

type Store struct {
	db  *sql.DB
	cfg Config
}

func NewStore(db *sql.DB, cfg Config) *Store {
	return &Store{db: db, cfg: cfg.withDefaults()}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS cached_answers (
	normalized_key TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cached_answers_expires_at ON cached_answers(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Get returns the stored answer for a question's normalized key, skipping
// expired rows.
func (s *Store) Get(ctx context.Context, question string) (string, bool, error) {
	if s.cfg.Excluded != nil && s.cfg.Excluded(question) {
		return "", false, nil
	}

	key := normalize.Normalize(question)
	var answer string
	err := s.db.QueryRowContext(ctx, `
SELECT answer FROM cached_answers
WHERE normalized_key = $1 AND expires_at > $2
`, key, s.cfg.Clock()).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select cached answer: %w", err)
	}
	return answer, true, nil
}

// Set upserts an answer under the question's normalized key, replacing any
// prior row and resetting its TTL.
func (s *Store) Set(ctx context.Context, question, answer string) error {
	if s.cfg.Excluded != nil && s.cfg.Excluded(question) {
		return nil
	}

	key := normalize.Normalize(question)
	if key == "" {
		return nil
	}

	now := s.cfg.Clock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cached_answers (normalized_key, question, answer, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (normalized_key) DO UPDATE SET
	question = EXCLUDED.question,
	answer = EXCLUDED.answer,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at
`, key, question, answer, now, now.Add(s.ttlFor(key)))
	if err != nil {
		return fmt.Errorf("upsert cached answer: %w", err)
	}
	return nil
}

// DeleteExpired removes rows past their TTL and reports how many went away.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cached_answers WHERE expires_at <= $1`, s.cfg.Clock())
	if err != nil {
		return 0, fmt.Errorf("delete expired answers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) ttlFor(key string) time.Duration {
	for _, kw := range stableKeywords {
		if strings.Contains(key, kw) {
			return s.cfg.StableTTL
		}
	}
	for _, kw := range groupKeywords {
		if strings.Contains(key, kw) {
			return s.cfg.GroupTTL
		}
	}
	return s.cfg.DefaultTTL
}

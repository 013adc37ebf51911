package ports

import (
	"context"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

// AnswerCache is the in-process lookup tier. Operations cannot fail; a miss
// is reported as ok=false. Implementations must be safe for concurrent use.
type AnswerCache interface {
	Get(question string) (answer string, ok bool)
	Set(question, answer string)
	Cleanup() (evicted int)
	Clear()
	Len() int
}

// PersistentCache is the durable key-value tier. Unavailability is expected:
// callers treat any error as a miss and continue down the pipeline.
type PersistentCache interface {
	Get(ctx context.Context, question string) (answer string, ok bool, err error)
	Set(ctx context.Context, question, answer string) error
}

// Embedder builds a vector for one query variant.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex performs one top-K similarity search. Results come back in
// descending score order; the caller assigns ranks from list position.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error)
}

// QueryExpander rephrases a query into alternative variants, original
// excluded. An error means the caller falls back to the original query alone.
type QueryExpander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// AnswerGenerator produces the final user-facing text from a question and
// its retrieved context blocks.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, contextBlocks []string, turns []domain.Turn) (string, error)
}

// CalendarSource is the read-only parish events feed.
type CalendarSource interface {
	Events(ctx context.Context, from, to time.Time) ([]domain.Event, error)
}

// AnswerEventPublisher hands generated answers to the asynchronous
// persistence path.
type AnswerEventPublisher interface {
	PublishAnswerProduced(ctx context.Context, event domain.AnswerProduced) error
}

// TelemetrySink receives best-effort debug events. Implementations must
// never block the pipeline; delivery failures are swallowed.
type TelemetrySink interface {
	Emit(event string, fields map[string]any)
}

// NoopTelemetry is the default sink.
type NoopTelemetry struct{}

func (NoopTelemetry) Emit(string, map[string]any) {}

package ports

import (
	"context"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

// AnswerService is the caller-facing contract of the pipeline.
type AnswerService interface {
	Answer(ctx context.Context, question string, chatCtx domain.ChatContext) (*domain.Answer, error)
}

// RouteDetector classifies a question without performing I/O.
type RouteDetector interface {
	Detect(question string, chatCtx domain.ChatContext) domain.RouteDecision
}

// RetrievalEngine is the full-path retrieval-fusion contract.
type RetrievalEngine interface {
	Retrieve(ctx context.Context, query string, filter domain.SearchFilter) (domain.RetrievedContext, error)
}

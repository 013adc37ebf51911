package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/core/ports"
)

type RetrievalConfig struct {
	// ExpansionMaxChars: queries at least this long skip expansion; they
	// are assumed self-contained, trading a little recall for latency.
	ExpansionMaxChars int
	// MaxVariants caps the generated alternative phrasings (the original
	// query is always searched on top of these).
	MaxVariants int
	// TopK candidates requested per variant search.
	TopK int
	// RRFK is the fusion smoothing constant.
	RRFK int
	// KeepTop fused candidates survive truncation.
	KeepTop int
	// ContentBudget bounds each passage's characters.
	ContentBudget int
	// CallTimeout bounds each embed+search call so one slow variant
	// cannot stall the request.
	CallTimeout time.Duration
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	out := c
	if out.ExpansionMaxChars <= 0 {
		out.ExpansionMaxChars = 30
	}
	if out.MaxVariants <= 0 {
		out.MaxVariants = 3
	}
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	if out.KeepTop <= 0 {
		out.KeepTop = 3
	}
	if out.ContentBudget <= 0 {
		out.ContentBudget = 1000
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 5 * time.Second
	}
	return out
}

// RetrievalUseCase expands a query into variants, embeds and searches them
// concurrently and fuses the ranked lists. It keeps no state between calls.
type RetrievalUseCase struct {
	expander  ports.QueryExpander
	embedder  ports.Embedder
	index     ports.VectorIndex
	telemetry ports.TelemetrySink
	cfg       RetrievalConfig
}

func NewRetrievalUseCase(
	expander ports.QueryExpander,
	embedder ports.Embedder,
	index ports.VectorIndex,
	telemetry ports.TelemetrySink,
	cfg RetrievalConfig,
) *RetrievalUseCase {
	if telemetry == nil {
		telemetry = ports.NoopTelemetry{}
	}
	return &RetrievalUseCase{
		expander:  expander,
		embedder:  embedder,
		index:     index,
		telemetry: telemetry,
		cfg:       cfg.withDefaults(),
	}
}

// Retrieve produces ranked context for a query, or an explicit empty result
// when nothing was found. Individual variant failures are dropped from
// fusion rather than failing the call.
func (uc *RetrievalUseCase) Retrieve(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
) (domain.RetrievedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievedContext{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("empty query"))
	}

	variants := uc.expandQuery(ctx, query)
	lists := uc.searchVariants(ctx, variants, filter)
	if err := ctx.Err(); err != nil {
		return domain.RetrievedContext{}, err
	}

	fused := fuseRRF(lists, uc.cfg.RRFK)
	if len(fused) > uc.cfg.KeepTop {
		fused = fused[:uc.cfg.KeepTop]
	}

	passages := make([]string, 0, len(fused))
	for i := range fused {
		fused[i].Content = truncate(fused[i].Content, uc.cfg.ContentBudget)
		if fused[i].Content != "" {
			passages = append(passages, fused[i].Content)
		}
	}

	uc.telemetry.Emit("retrieval_fused", map[string]any{
		"query":    query,
		"variants": len(variants),
		"lists":    len(lists),
		"fused":    len(fused),
	})

	return domain.RetrievedContext{Passages: passages, Candidates: fused}, nil
}

// expandQuery returns the original query plus, for short queries, up to
// MaxVariants alternative phrasings. Expansion failures degrade silently to
// the original query alone.
func (uc *RetrievalUseCase) expandQuery(ctx context.Context, query string) []string {
	variants := []string{query}
	if len([]rune(query)) >= uc.cfg.ExpansionMaxChars {
		return variants
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
	defer cancel()

	generated, err := uc.expander.Expand(callCtx, query)
	if err != nil {
		slog.Warn("query_expansion_failed", "query", query, "error", err)
		return variants
	}

	seen := map[string]struct{}{query: {}}
	for _, v := range generated {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
		if len(variants) > uc.cfg.MaxVariants {
			break
		}
	}
	return variants
}

// searchVariants embeds and searches every variant concurrently. A failed
// or timed-out variant contributes nothing; surviving lists keep the order
// variants were issued in so fusion tie-breaks stay deterministic.
func (uc *RetrievalUseCase) searchVariants(
	ctx context.Context,
	variants []string,
	filter domain.SearchFilter,
) [][]domain.RetrievalCandidate {
	results := make([][]domain.RetrievalCandidate, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(slot int, q string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
			defer cancel()

			vector, err := uc.embedder.EmbedQuery(callCtx, q)
			if err != nil {
				slog.Warn("variant_embed_failed", "variant", q, "error", err)
				return
			}
			candidates, err := uc.index.Search(callCtx, vector, uc.cfg.TopK, filter)
			if err != nil {
				slog.Warn("variant_search_failed", "variant", q, "error", err)
				return
			}
			for j := range candidates {
				candidates[j].Rank = j
			}
			results[slot] = candidates
		}(i, variant)
	}
	wg.Wait()

	lists := make([][]domain.RetrievalCandidate, 0, len(results))
	for _, list := range results {
		if len(list) > 0 {
			lists = append(lists, list)
		}
	}
	return lists
}

func truncate(content string, budget int) string {
	runes := []rune(content)
	if len(runes) <= budget {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(string(runes[:budget])) + "..."
}

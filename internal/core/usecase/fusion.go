package usecase

import (
	"sort"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

type fusedAccumulator struct {
	candidate domain.RetrievalCandidate
	score     float64
	bestRank  int
	firstSeen int
}

// fuseRRF merges per-variant result lists with reciprocal rank fusion:
// each appearance contributes 1/(k+rank+1). Documents surfacing in several
// variant lists at moderate rank outscore one-off top hits, which is the
// point: cross-query agreement is the stronger relevance signal. Ordering
// is deterministic — score, then lowest contributing rank, then first-seen
// list order.
func fuseRRF(lists [][]domain.RetrievalCandidate, k int) []domain.FusedCandidate {
	if k <= 0 {
		k = 60
	}

	acc := make(map[string]*fusedAccumulator)
	seen := 0
	for _, list := range lists {
		for _, candidate := range list {
			if candidate.ID == "" {
				continue
			}
			a, ok := acc[candidate.ID]
			if !ok {
				a = &fusedAccumulator{
					candidate: candidate,
					bestRank:  candidate.Rank,
					firstSeen: seen,
				}
				acc[candidate.ID] = a
				seen++
			}
			a.score += 1.0 / float64(k+candidate.Rank+1)
			if candidate.Rank < a.bestRank {
				a.bestRank = candidate.Rank
			}
			if a.candidate.Content == "" && candidate.Content != "" {
				a.candidate.Content = candidate.Content
			}
		}
	}

	out := make([]*fusedAccumulator, 0, len(acc))
	for _, a := range acc {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].bestRank != out[j].bestRank {
			return out[i].bestRank < out[j].bestRank
		}
		return out[i].firstSeen < out[j].firstSeen
	})

	fused := make([]domain.FusedCandidate, 0, len(out))
	for _, a := range out {
		fused = append(fused, domain.FusedCandidate{
			ID:          a.candidate.ID,
			FusionScore: a.score,
			Content:     a.candidate.Content,
			Category:    a.candidate.Category,
		})
	}
	return fused
}

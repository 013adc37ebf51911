package usecase

import (
	"math"
	"testing"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

func candidate(id string, rank int) domain.RetrievalCandidate {
	return domain.RetrievalCandidate{ID: id, Rank: rank, Content: "content-" + id}
}

func TestFuseRRFCrossListAgreementWins(t *testing.T) {
	lists := [][]domain.RetrievalCandidate{
		{candidate("A", 0), candidate("B", 1)},
		{candidate("B", 0), candidate("C", 1)},
	}

	fused := fuseRRF(lists, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}
	if fused[0].ID != "B" {
		t.Fatalf("B appears in both lists and must rank first, got %s", fused[0].ID)
	}

	wantB := 1.0/62.0 + 1.0/61.0
	if math.Abs(fused[0].FusionScore-wantB) > 1e-12 {
		t.Fatalf("B score = %v, want %v", fused[0].FusionScore, wantB)
	}

	// A (rank 0, 1/61) outscores C (rank 1, 1/62).
	if fused[1].ID != "A" || fused[2].ID != "C" {
		t.Fatalf("want A before C, got %s, %s", fused[1].ID, fused[2].ID)
	}
}

func TestFuseRRFTieBreakFirstSeenOrder(t *testing.T) {
	lists := [][]domain.RetrievalCandidate{
		{candidate("X", 0)},
		{candidate("Y", 0)},
	}
	fused := fuseRRF(lists, 60)
	if len(fused) != 2 || fused[0].ID != "X" || fused[1].ID != "Y" {
		t.Fatalf("equal score and rank must keep first-seen order, got %+v", fused)
	}
}

func TestFuseRRFDeduplicatesByID(t *testing.T) {
	lists := [][]domain.RetrievalCandidate{
		{candidate("A", 0), candidate("A", 1)},
		{candidate("A", 2)},
	}
	fused := fuseRRF(lists, 60)
	if len(fused) != 1 {
		t.Fatalf("expected single fused candidate, got %d", len(fused))
	}
	want := 1.0/61.0 + 1.0/62.0 + 1.0/63.0
	if math.Abs(fused[0].FusionScore-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", fused[0].FusionScore, want)
	}
}

func TestFuseRRFDefaultsK(t *testing.T) {
	lists := [][]domain.RetrievalCandidate{{candidate("A", 0)}}
	fused := fuseRRF(lists, 0)
	if math.Abs(fused[0].FusionScore-1.0/61.0) > 1e-12 {
		t.Fatalf("k must default to 60, score = %v", fused[0].FusionScore)
	}
}

func TestFuseRRFSkipsEmptyIDs(t *testing.T) {
	lists := [][]domain.RetrievalCandidate{
		{{ID: "", Rank: 0}, candidate("A", 1)},
	}
	fused := fuseRRF(lists, 60)
	if len(fused) != 1 || fused[0].ID != "A" {
		t.Fatalf("empty ids must be ignored, got %+v", fused)
	}
}

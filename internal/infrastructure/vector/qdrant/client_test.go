package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/resilience"
)

func noRetryExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{MaxAttempts: 1, BreakerEnabled: false})
}

func TestSearchDecodesCandidatesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/parish/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["limit"] != float64(5) {
			t.Errorf("limit = %v, want 5", req["limit"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "p1", "score": 0.91, "payload": map[string]any{"text": "horario de misas", "category": "liturgia"}},
				{"id": 42, "score": 0.55, "payload": map[string]any{"text": "catequesis infantil"}},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "parish", noRetryExecutor())
	got, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "p1" || got[0].Rank != 0 || got[0].Content != "horario de misas" || got[0].Category != "liturgia" {
		t.Fatalf("candidate 0 = %+v", got[0])
	}
	if got[1].ID != "42" || got[1].Rank != 1 {
		t.Fatalf("candidate 1 = %+v", got[1])
	}
}

func TestSearchSendsCategoryFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
	}))
	defer server.Close()

	client := New(server.URL, "parish", noRetryExecutor())
	if _, err := client.Search(context.Background(), []float32{0.1}, 3, domain.SearchFilter{Category: "sacramentos"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if captured["filter"] == nil {
		t.Fatalf("category filter missing from request: %v", captured)
	}
}

func TestSearchServerErrorMapsToTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "parish", noRetryExecutor())
	_, err := client.Search(context.Background(), []float32{0.1}, 3, domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestSearchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "p1", "score": 0.8, "payload": map[string]any{"text": "ok"}},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "parish", resilience.NewExecutor(resilience.Config{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		BreakerEnabled: false,
	}))
	got, err := client.Search(context.Background(), []float32{0.1}, 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls.Load() != 2 || len(got) != 1 {
		t.Fatalf("expected one retry then success, calls=%d got=%d", calls.Load(), len(got))
	}
}

package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/cache/memory"
)

type answerServiceFake struct {
	answer *domain.Answer
	err    error
	gotQ   string
}

func (f *answerServiceFake) Answer(_ context.Context, question string, _ domain.ChatContext) (*domain.Answer, error) {
	f.gotQ = question
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type detectorFake struct {
	decision domain.RouteDecision
	gotCtx   domain.ChatContext
}

func (f *detectorFake) Detect(_ string, chatCtx domain.ChatContext) domain.RouteDecision {
	f.gotCtx = chatCtx
	return f.decision
}

func newTestRouter(t *testing.T, svc *answerServiceFake, det *detectorFake, opts Options) (*Router, *memory.Cache) {
	t.Helper()
	cache := memory.New(memory.Config{}, nil)
	t.Cleanup(cache.Close)
	if svc == nil {
		svc = &answerServiceFake{answer: &domain.Answer{Text: "ok", Source: domain.SourceRetrieval}}
	}
	if det == nil {
		det = &detectorFake{decision: domain.RouteDecision{Path: domain.PathFast, Reason: "faq"}}
	}
	return NewRouter(svc, det, cache, nil, opts), cache
}

func TestAnswerEndpoint(t *testing.T) {
	svc := &answerServiceFake{answer: &domain.Answer{Text: "a las 12:00", Source: domain.SourceFastCache}}
	rt, _ := newTestRouter(t, svc, nil, Options{})

	body := `{"question":"¿Horario de misas?","context":{"last_answer_from_cache":true}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/answer", strings.NewReader(body))
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "a las 12:00" || got.Source != domain.SourceFastCache {
		t.Fatalf("response = %+v", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestAnswerEndpointRejectsEmptyQuestion(t *testing.T) {
	rt, _ := newTestRouter(t, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/answer", strings.NewReader(`{"question":"  "}`))
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerEndpointMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"rate_limited", domain.WrapError(domain.ErrRateLimited, "openai", context.Canceled), http.StatusTooManyRequests},
		{"unauthorized", domain.WrapError(domain.ErrUnauthorized, "openai", context.Canceled), http.StatusUnauthorized},
		{"temporary", domain.WrapError(domain.ErrTemporary, "qdrant", context.Canceled), http.StatusServiceUnavailable},
		{"timeout", domain.WrapError(domain.ErrTimeout, "openai", context.Canceled), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt, _ := newTestRouter(t, &answerServiceFake{err: tc.err}, nil, Options{})

			req := httptest.NewRequest(http.MethodPost, "/v1/chat/answer", strings.NewReader(`{"question":"hola parroquia"}`))
			rec := httptest.NewRecorder()
			rt.Handler().ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if strings.Contains(rec.Body.String(), "openai") || strings.Contains(rec.Body.String(), "qdrant") {
				t.Fatalf("provider detail leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestDetectEndpoint(t *testing.T) {
	det := &detectorFake{decision: domain.RouteDecision{Path: domain.PathFull, Reason: "calendar"}}
	rt, _ := newTestRouter(t, nil, det, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/router/detect?q=eventos+hoy&last_answer_from_cache=true", nil)
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got domain.RouteDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Path != domain.PathFull || got.Reason != "calendar" {
		t.Fatalf("decision = %+v", got)
	}
	if !det.gotCtx.LastAnswerFromCache {
		t.Fatalf("last_answer_from_cache flag must reach the detector")
	}
}

func TestCacheEndpointsRequireAdminToken(t *testing.T) {
	rt, cache := newTestRouter(t, nil, nil, Options{AdminToken: "secreto"})
	cache.Set("¿Qué es Eloos?", "la comunidad de jóvenes")

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	req.Header.Set("X-Admin-Token", "secreto")
	rec = httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/cache/clear", nil)
	req.Header.Set("X-Admin-Token", "secreto")
	rec = httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: status = %d", rec.Code)
	}
	if cache.Len() != 0 {
		t.Fatalf("cache must be empty after clear, len = %d", cache.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rt, _ := newTestRouter(t, nil, nil, Options{RateLimit: 1, RateBurst: 2})
	handler := rt.Handler()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request in a burst of two must be limited, got %d", last)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.9.9.9:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("another client must have its own bucket, got %d", rec.Code)
	}
}

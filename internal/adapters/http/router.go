package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/core/ports"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/cache/memory"
	"github.com/jordivila/parroquia-assistant/internal/observability/metrics"
)

type Options struct {
	// AdminToken guards the cache administration endpoints. Empty disables
	// them entirely.
	AdminToken string
	// RateLimit is requests per second per client IP; zero disables
	// limiting.
	RateLimit float64
	RateBurst int
	// MaxQuestionBytes bounds the request body. Default 8 KiB.
	MaxQuestionBytes int64
}

// Router is the public HTTP surface of the api process.
type Router struct {
	answers  ports.AnswerService
	detector ports.RouteDetector
	cache    *memory.Cache
	metrics  *metrics.HTTPServerMetrics
	opts     Options
}

func NewRouter(
	answers ports.AnswerService,
	detector ports.RouteDetector,
	cache *memory.Cache,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.MaxQuestionBytes <= 0 {
		opts.MaxQuestionBytes = 8 << 10
	}
	return &Router{
		answers:  answers,
		detector: detector,
		cache:    cache,
		metrics:  m,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat/answer", rt.answer)
	mux.HandleFunc("/v1/router/detect", rt.detect)
	mux.HandleFunc("/v1/cache/stats", rt.cacheStats)
	mux.HandleFunc("/v1/cache/clear", rt.cacheClear)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.RateLimit > 0 {
		handler = rateLimitMiddleware(rt.opts.RateLimit, rt.opts.RateBurst, handler)
	}
	handler = accessLogMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Question string             `json:"question"`
	Context  domain.ChatContext `json:"context"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req answerRequest
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxQuestionBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		msg := "invalid json"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			msg = "request body too large"
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.answers.Answer(r.Context(), req.Question, req.Context)
	if err != nil {
		rt.writeError(w, r, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'q' is required"})
		return
	}
	cached := r.URL.Query().Get("last_answer_from_cache") == "true"

	decision := rt.detector.Detect(question, domain.ChatContext{LastAnswerFromCache: cached})
	writeJSON(w, http.StatusOK, decision)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, rt.cache.Stats())
}

func (rt *Router) cacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	rt.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (rt *Router) authorized(r *http.Request) bool {
	if rt.opts.AdminToken == "" {
		return false
	}
	return r.Header.Get("X-Admin-Token") == rt.opts.AdminToken
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": publicErrorMessage(status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

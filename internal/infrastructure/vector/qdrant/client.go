package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/resilience"
)

// Client talks to Qdrant's REST API directly. It implements the read side
// only: the parish knowledge base is indexed out of band.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, collection string, exec *resilience.Executor) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

type statusError struct {
	status string
	code   int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant search status: %s", e.status)
	}
	return fmt.Sprintf("qdrant search status: %s: %s", e.status, e.body)
}

// Search runs one top-K similarity query. Results come back in descending
// score order and carry the point id, payload content and category.
func (c *Client) Search(
	ctx context.Context,
	vector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievalCandidate, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter.Category != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "category", "match": map[string]any{"value": filter.Category}},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var candidates []domain.RetrievalCandidate
	err = c.exec.Execute(ctx, "qdrant_search", func(ctx context.Context) error {
		out, err := c.search(ctx, body)
		if err != nil {
			return err
		}
		candidates = out
		return nil
	}, classifyQdrantError)
	if err != nil {
		return nil, mapError(err)
	}
	return candidates, nil
}

func (c *Client) search(ctx context.Context, body []byte) ([]domain.RetrievalCandidate, error) {
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{status: resp.Status, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievalCandidate, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		out = append(out, domain.RetrievalCandidate{
			ID:       fmt.Sprintf("%v", r.ID),
			Rank:     i,
			Score:    r.Score,
			Content:  payloadString(r.Payload, "text"),
			Category: payloadString(r.Payload, "category"),
		})
	}
	return out, nil
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.code == http.StatusTooManyRequests || statusErr.code >= http.StatusInternalServerError {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, "qdrant_search", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	class := classifyQdrantError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "qdrant_search", err)
	}
	return err
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

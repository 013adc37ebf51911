package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

// Client targets a local Ollama instance. It backs the same three roles as
// the OpenAI client (embedder, generator, expander) for deployments that
// keep the assistant fully on-premise.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, contextBlocks []string, turns []domain.Turn) (string, error) {
	text, err := g.client.generateText(ctx, buildAnswerPrompt(question, contextBlocks, turns))
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return text, nil
}

type Expander struct {
	client      *Client
	maxVariants int
}

func NewExpander(client *Client, maxVariants int) *Expander {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	return &Expander{client: client, maxVariants: maxVariants}
}

func (x *Expander) Expand(ctx context.Context, query string) ([]string, error) {
	text, err := x.client.generateText(ctx, buildExpansionPrompt(query, x.maxVariants))
	if err != nil {
		return nil, wrapTemporaryIfNeeded("expand", err)
	}

	variants := make([]string, 0, x.maxVariants)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line == "" {
			continue
		}
		variants = append(variants, line)
		if len(variants) == x.maxVariants {
			break
		}
	}
	return variants, nil
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

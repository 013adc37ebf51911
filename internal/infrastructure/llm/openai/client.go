package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	// MaxVariants bounds how many rephrasings the expander asks for.
	MaxVariants int
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.ChatModel == "" {
		out.ChatModel = openai.GPT4oMini
	}
	if out.EmbedModel == "" {
		out.EmbedModel = string(openai.SmallEmbedding3)
	}
	if out.MaxVariants <= 0 {
		out.MaxVariants = 3
	}
	if out.Timeout <= 0 {
		out.Timeout = 60 * time.Second
	}
	return out
}

// Client wraps the OpenAI API behind the retry/breaker executor. One client
// backs the embedder, the generator and the query expander.
type Client struct {
	api  *openai.Client
	exec *resilience.Executor
	cfg  Config
}

func New(cfg Config, exec *resilience.Executor) *Client {
	cfg = cfg.withDefaults()
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		api:  openai.NewClientWithConfig(apiCfg),
		exec: exec,
		cfg:  cfg,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.client.exec.Execute(ctx, "openai_embed", func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.client.cfg.EmbedModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding result")
		}
		vector = resp.Data[0].Embedding
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, mapError("openai_embed", err)
	}
	return vector, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, contextBlocks []string, turns []domain.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: buildAnswerSystemPrompt(contextBlocks),
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	text, err := g.client.chat(ctx, "openai_generate", messages)
	if err != nil {
		return "", err
	}
	return text, nil
}

type Expander struct {
	client *Client
}

func NewExpander(client *Client) *Expander {
	return &Expander{client: client}
}

// Expand asks for alternative phrasings, one per line, original excluded.
func (x *Expander) Expand(ctx context.Context, query string) ([]string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildExpansionSystemPrompt(x.client.cfg.MaxVariants)},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}
	text, err := x.client.chat(ctx, "openai_expand", messages)
	if err != nil {
		return nil, err
	}
	return parseVariants(text, x.client.cfg.MaxVariants), nil
}

func (c *Client) chat(ctx context.Context, operation string, messages []openai.ChatCompletionMessage) (string, error) {
	var text string
	err := c.exec.Execute(ctx, operation, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.cfg.ChatModel,
			Messages: messages,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion result")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return "", mapError(operation, err)
	}
	return text, nil
}

func parseVariants(text string, max int) []string {
	lines := strings.Split(text, "\n")
	variants := make([]string, 0, max)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		// Models number lists even when told not to.
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line == "" {
			continue
		}
		variants = append(variants, line)
		if len(variants) == max {
			break
		}
	}
	return variants
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/jordivila/parroquia-assistant/internal/config"
	"github.com/jordivila/parroquia-assistant/internal/core/ports"
	"github.com/jordivila/parroquia-assistant/internal/core/routing"
	"github.com/jordivila/parroquia-assistant/internal/core/usecase"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/cache/memory"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/cache/postgres"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/calendar/ics"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/llm/ollama"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/llm/openai"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/queue/nats"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/resilience"
	"github.com/jordivila/parroquia-assistant/internal/infrastructure/vector/qdrant"
	"github.com/jordivila/parroquia-assistant/internal/observability/metrics"
)

// App wires the api process: cache tiers, router, retrieval engine and the
// answer pipeline on top of them.
type App struct {
	Config config.Config

	Answers  ports.AnswerService
	Detector ports.RouteDetector
	Memory   *memory.Cache
	Store    *postgres.Store
	Queue    *nats.Queue
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	memCache := memory.New(memory.Config{
		TTL:                 cfg.CacheTTL,
		SimilarityThreshold: cfg.SimilarityThreshold,
		CleanupInterval:     cfg.CacheCleanupInterval,
	}, memory.DefaultSeed())

	store := postgres.NewStore(db, postgres.Config{
		DefaultTTL: cfg.PersistentDefaultTTL,
		StableTTL:  cfg.PersistentStableTTL,
		GroupTTL:   cfg.PersistentGroupTTL,
		Excluded:   memCache.Excluded,
	})
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		memCache.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder, generator, expander := buildLLM(cfg, executor)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	var calendar ports.CalendarSource
	if cfg.CalendarFeedURL != "" {
		calendar = ics.New(ics.Config{
			FeedURL:  cfg.CalendarFeedURL,
			CacheTTL: cfg.CalendarCacheTTL,
		})
	}

	rules := routing.DefaultRuleSet()
	rules.LengthThreshold = cfg.ShortQuestionChars
	detector := routing.New(rules)

	telemetry := nats.SinkFromQueue(queue, cfg.TelemetrySubject)
	m := metrics.NewHTTPServerMetrics("api")

	engine := usecase.NewRetrievalUseCase(
		expander,
		embedder,
		vectorIndex,
		telemetry,
		usecase.RetrievalConfig{
			ExpansionMaxChars: cfg.ExpansionMaxChars,
			MaxVariants:       cfg.ExpansionMaxVariants,
			TopK:              cfg.RetrievalTopK,
			RRFK:              cfg.FusionRRFK,
			KeepTop:           cfg.FusionKeepTop,
			ContentBudget:     cfg.ContentBudget,
			CallTimeout:       cfg.CallTimeout,
		},
	)

	answers := usecase.NewAnswerUseCase(usecase.AnswerDeps{
		Router:     detector,
		Memory:     memCache,
		Persistent: store,
		Engine:     engine,
		Generator:  generator,
		Calendar:   calendar,
		Publisher:  queue,
		Telemetry:  telemetry,
		Metrics:    m,
	}, usecase.AnswerConfig{})

	return &App{
		Config:   cfg,
		Answers:  answers,
		Detector: detector,
		Memory:   memCache,
		Store:    store,
		Queue:    queue,
		Metrics:  m,

		closeFn: func() {
			queue.Close()
			memCache.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// buildLLM picks the model backend. Both providers cover the same three
// roles, so the rest of the wiring does not care which one runs.
func buildLLM(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, ports.QueryExpander) {
	if cfg.LLMProvider == "ollama" {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), ollama.NewExpander(client, cfg.ExpansionMaxVariants)
	}
	client := openai.New(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		ChatModel:   cfg.OpenAIChatModel,
		EmbedModel:  cfg.OpenAIEmbedModel,
		MaxVariants: cfg.ExpansionMaxVariants,
	}, executor)
	return openai.NewEmbedder(client), openai.NewGenerator(client), openai.NewExpander(client)
}

// WorkerApp wires the persistence worker: the queue subscription and the
// durable store it writes to.
type WorkerApp struct {
	Config  config.Config
	Queue   *nats.Queue
	Store   *postgres.Store
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*WorkerApp, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// The exclusion rules live with the memory tier config; the worker
	// reuses them so both tiers refuse the same questions. No janitor runs
	// without a cleanup interval.
	excluder := memory.New(memory.Config{}, nil)

	store := postgres.NewStore(db, postgres.Config{
		DefaultTTL: cfg.PersistentDefaultTTL,
		StableTTL:  cfg.PersistentStableTTL,
		GroupTTL:   cfg.PersistentGroupTTL,
		Excluded:   excluder.Excluded,
	})
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &WorkerApp{
		Config:  cfg,
		Queue:   queue,
		Store:   store,
		Metrics: metrics.NewWorkerMetrics("worker"),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *WorkerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/core/normalize"
	"github.com/jordivila/parroquia-assistant/internal/core/ports"
	"github.com/jordivila/parroquia-assistant/internal/core/routing"
)

// PipelineMetrics receives pipeline-level counters. The prometheus
// implementation lives in observability/metrics; core only sees this.
type PipelineMetrics interface {
	RouteDecision(path, reason string)
	CacheLookup(tier string, hit bool)
	AnswerProduced(source string)
	RetrievalObserved(duration time.Duration, fused int)
}

type noopMetrics struct{}

func (noopMetrics) RouteDecision(string, string)         {}
func (noopMetrics) CacheLookup(string, bool)             {}
func (noopMetrics) AnswerProduced(string)                {}
func (noopMetrics) RetrievalObserved(time.Duration, int) {}

// FallbackAnswer goes out when retrieval finds nothing relevant. It is never
// cached so the question gets a fresh chance once documents are indexed.
const FallbackAnswer = "Lo siento, no tengo información sobre eso. " +
	"Puedes contactar con el despacho parroquial para más detalles."

type AnswerConfig struct {
	// CalendarWindow bounds the events fetched for calendar questions when
	// the question names no day.
	CalendarWindow time.Duration
	// Clock is overridable for tests.
	Clock func() time.Time
}

func (c AnswerConfig) withDefaults() AnswerConfig {
	out := c
	if out.CalendarWindow <= 0 {
		out.CalendarWindow = 7 * 24 * time.Hour
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// AnswerUseCase walks a question through the tiers: route, memory cache,
// persistent cache, retrieval and generation, stopping at the first tier
// that produces an answer. Calendar questions skip the cache tiers and
// answer from the events feed.
type AnswerUseCase struct {
	router     ports.RouteDetector
	memory     ports.AnswerCache
	persistent ports.PersistentCache
	engine     ports.RetrievalEngine
	generator  ports.AnswerGenerator
	calendar   ports.CalendarSource
	publisher  ports.AnswerEventPublisher
	catalog    *ResourceCatalog
	telemetry  ports.TelemetrySink
	metrics    PipelineMetrics
	cfg        AnswerConfig
}

type AnswerDeps struct {
	Router     ports.RouteDetector
	Memory     ports.AnswerCache
	Persistent ports.PersistentCache
	Engine     ports.RetrievalEngine
	Generator  ports.AnswerGenerator
	Calendar   ports.CalendarSource
	Publisher  ports.AnswerEventPublisher
	Catalog    *ResourceCatalog
	Telemetry  ports.TelemetrySink
	Metrics    PipelineMetrics
}

func NewAnswerUseCase(deps AnswerDeps, cfg AnswerConfig) *AnswerUseCase {
	if deps.Telemetry == nil {
		deps.Telemetry = ports.NoopTelemetry{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Catalog == nil {
		deps.Catalog = DefaultResourceCatalog()
	}
	return &AnswerUseCase{
		router:     deps.Router,
		memory:     deps.Memory,
		persistent: deps.Persistent,
		engine:     deps.Engine,
		generator:  deps.Generator,
		calendar:   deps.Calendar,
		publisher:  deps.Publisher,
		catalog:    deps.Catalog,
		telemetry:  deps.Telemetry,
		metrics:    deps.Metrics,
		cfg:        cfg.withDefaults(),
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, chatCtx domain.ChatContext) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("empty question"))
	}

	decision := uc.router.Detect(question, chatCtx)
	uc.metrics.RouteDecision(string(decision.Path), decision.Reason)
	uc.telemetry.Emit("route_decided", map[string]any{
		"question": question,
		"path":     decision.Path,
		"reason":   decision.Reason,
	})

	if decision.Reason == routing.ReasonCalendar && uc.calendar != nil {
		answer, err := uc.answerFromCalendar(ctx, question, chatCtx)
		if err == nil {
			return answer, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("calendar_path_failed", "question", question, "error", err)
	}

	if text, ok := uc.memory.Get(question); ok {
		uc.metrics.CacheLookup("memory", true)
		uc.metrics.AnswerProduced(string(domain.SourceFastCache))
		return uc.finish(text, domain.SourceFastCache, question), nil
	}
	uc.metrics.CacheLookup("memory", false)

	if uc.persistent != nil {
		text, ok, err := uc.persistent.Get(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("persistent_cache_unavailable", "error", err)
		} else if ok {
			uc.metrics.CacheLookup("persistent", true)
			uc.metrics.AnswerProduced(string(domain.SourcePersistentCache))
			// Promote so the next ask is served in-process.
			uc.memory.Set(question, text)
			return uc.finish(text, domain.SourcePersistentCache, question), nil
		} else {
			uc.metrics.CacheLookup("persistent", false)
		}
	}

	started := uc.cfg.Clock()
	retrieved, err := uc.engine.Retrieve(ctx, question, domain.SearchFilter{})
	if err != nil {
		return nil, err
	}
	uc.metrics.RetrievalObserved(uc.cfg.Clock().Sub(started), len(retrieved.Candidates))

	if retrieved.Empty() {
		uc.metrics.AnswerProduced(string(domain.SourceRetrieval))
		return uc.finish(FallbackAnswer, domain.SourceRetrieval, question), nil
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, retrieved.Passages, chatCtx.RecentTurns)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uc.memory.Set(question, text)
	uc.publishProduced(ctx, question, text)
	uc.metrics.AnswerProduced(string(domain.SourceRetrieval))
	return uc.finish(text, domain.SourceRetrieval, question), nil
}

// finish applies the attachment policy. Every answer passes through it,
// cached ones included, so resource links survive cache hits.
func (uc *AnswerUseCase) finish(text string, source domain.AnswerSource, question string) *domain.Answer {
	return &domain.Answer{
		Text:        text,
		Source:      source,
		Attachments: uc.catalog.Match(question),
	}
}

// answerFromCalendar fetches the events window the question asks about and
// generates over it. Nothing on this path touches the cache tiers.
func (uc *AnswerUseCase) answerFromCalendar(ctx context.Context, question string, chatCtx domain.ChatContext) (*domain.Answer, error) {
	from, to := uc.calendarWindow(question)
	events, err := uc.calendar.Events(ctx, from, to)
	if err != nil {
		return nil, err
	}

	blocks := make([]string, 0, len(events))
	for _, ev := range events {
		blocks = append(blocks, formatEvent(ev))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, "No hay eventos programados en esas fechas.")
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, blocks, chatCtx.RecentTurns)
	if err != nil {
		return nil, err
	}
	uc.metrics.AnswerProduced(string(domain.SourceRetrieval))
	return uc.finish(text, domain.SourceRetrieval, question), nil
}

// calendarWindow narrows the fetch to the day the question names, falling
// back to the configured window.
func (uc *AnswerUseCase) calendarWindow(question string) (time.Time, time.Time) {
	now := uc.cfg.Clock()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	key := normalize.Normalize(question)
	for _, tok := range normalize.Tokens(key) {
		switch tok {
		case "hoy", "today":
			return today, today.AddDate(0, 0, 1)
		case "mañana", "tomorrow":
			return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)
		}
	}
	return today, today.Add(uc.cfg.CalendarWindow)
}

func (uc *AnswerUseCase) publishProduced(ctx context.Context, question, answer string) {
	if uc.publisher == nil {
		return
	}
	event := domain.AnswerProduced{Question: question, Answer: answer}
	if err := uc.publisher.PublishAnswerProduced(ctx, event); err != nil {
		slog.Warn("answer_event_publish_failed", "error", err)
	}
}

func formatEvent(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	if ev.AllDay {
		b.WriteString(" - " + ev.Start.Format("02/01/2006") + " (todo el día)")
	} else {
		b.WriteString(" - " + ev.Start.Format("02/01/2006 15:04"))
		if !ev.End.IsZero() {
			b.WriteString(" a " + ev.End.Format("15:04"))
		}
	}
	if ev.Location != "" {
		b.WriteString(" - " + ev.Location)
	}
	if ev.Description != "" {
		b.WriteString(". " + ev.Description)
	}
	return b.String()
}

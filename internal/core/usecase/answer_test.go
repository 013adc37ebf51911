package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

type routerFake struct {
	decision domain.RouteDecision
}

func (f routerFake) Detect(string, domain.ChatContext) domain.RouteDecision {
	return f.decision
}

type memoryFake struct {
	entries map[string]string
	sets    int
}

func newMemoryFake() *memoryFake { return &memoryFake{entries: map[string]string{}} }

func (f *memoryFake) Get(q string) (string, bool) {
	a, ok := f.entries[q]
	return a, ok
}
func (f *memoryFake) Set(q, a string) { f.entries[q] = a; f.sets++ }
func (f *memoryFake) Cleanup() int    { return 0 }
func (f *memoryFake) Clear()          { f.entries = map[string]string{} }
func (f *memoryFake) Len() int        { return len(f.entries) }

type persistentFake struct {
	entries map[string]string
	err     error
	gets    int
}

func (f *persistentFake) Get(_ context.Context, q string) (string, bool, error) {
	f.gets++
	if f.err != nil {
		return "", false, f.err
	}
	a, ok := f.entries[q]
	return a, ok, nil
}

func (f *persistentFake) Set(_ context.Context, q, a string) error {
	if f.entries == nil {
		f.entries = map[string]string{}
	}
	f.entries[q] = a
	return nil
}

type engineFake struct {
	result domain.RetrievedContext
	err    error
	calls  int
}

func (f *engineFake) Retrieve(context.Context, string, domain.SearchFilter) (domain.RetrievedContext, error) {
	f.calls++
	return f.result, f.err
}

type generatorFake struct {
	answer string
	err    error
	blocks []string
	cancel context.CancelFunc
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, blocks []string, _ []domain.Turn) (string, error) {
	f.blocks = blocks
	if f.cancel != nil {
		f.cancel()
	}
	return f.answer, f.err
}

type calendarFake struct {
	events []domain.Event
	err    error
	from   time.Time
	to     time.Time
}

func (f *calendarFake) Events(_ context.Context, from, to time.Time) ([]domain.Event, error) {
	f.from, f.to = from, to
	return f.events, f.err
}

type publisherFake struct {
	events []domain.AnswerProduced
	err    error
}

func (f *publisherFake) PublishAnswerProduced(_ context.Context, ev domain.AnswerProduced) error {
	f.events = append(f.events, ev)
	return f.err
}

func fullPathDecision() domain.RouteDecision {
	return domain.RouteDecision{Path: domain.PathFull, Reason: "long-heuristic"}
}

func TestAnswerMemoryHitShortCircuits(t *testing.T) {
	memory := newMemoryFake()
	memory.entries["¿Qué es Eloos?"] = "la comunidad de jóvenes"
	persistent := &persistentFake{}
	engine := &engineFake{}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     memory,
		Persistent: persistent,
		Engine:     engine,
		Generator:  &generatorFake{},
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), "¿Qué es Eloos?", domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Source != domain.SourceFastCache || answer.Text != "la comunidad de jóvenes" {
		t.Fatalf("Answer() = %+v", answer)
	}
	if persistent.gets != 0 || engine.calls != 0 {
		t.Fatalf("memory hit must short-circuit later tiers")
	}
}

func TestAnswerPersistentHitPromotesToMemory(t *testing.T) {
	memory := newMemoryFake()
	persistent := &persistentFake{entries: map[string]string{
		"¿Teléfono de la parroquia?": "llama a recepción",
	}}
	engine := &engineFake{}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     memory,
		Persistent: persistent,
		Engine:     engine,
		Generator:  &generatorFake{},
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), "¿Teléfono de la parroquia?", domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Source != domain.SourcePersistentCache {
		t.Fatalf("Source = %s, want persistent-cache", answer.Source)
	}
	if _, ok := memory.entries["¿Teléfono de la parroquia?"]; !ok {
		t.Fatalf("persistent hit must promote into the memory tier")
	}
	if engine.calls != 0 {
		t.Fatalf("persistent hit must short-circuit retrieval")
	}
}

func TestAnswerPersistentErrorIsTreatedAsMiss(t *testing.T) {
	engine := &engineFake{result: domain.RetrievedContext{
		Passages:   []string{"horario del despacho"},
		Candidates: []domain.FusedCandidate{{ID: "doc-a"}},
	}}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     newMemoryFake(),
		Persistent: &persistentFake{err: errors.New("connection refused")},
		Engine:     engine,
		Generator:  &generatorFake{answer: "el despacho abre por las tardes"},
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), "horario del despacho parroquial", domain.ChatContext{})
	if err != nil {
		t.Fatalf("persistent tier failure must not fail the pipeline: %v", err)
	}
	if answer.Source != domain.SourceRetrieval {
		t.Fatalf("Source = %s, want retrieval", answer.Source)
	}
}

func TestAnswerFullPathWritesMemoryAndPublishes(t *testing.T) {
	memory := newMemoryFake()
	publisher := &publisherFake{}
	engine := &engineFake{result: domain.RetrievedContext{
		Passages:   []string{"las catequesis empiezan en octubre"},
		Candidates: []domain.FusedCandidate{{ID: "doc-a"}},
	}}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     memory,
		Persistent: &persistentFake{},
		Engine:     engine,
		Generator:  &generatorFake{answer: "empiezan en octubre"},
		Publisher:  publisher,
	}, AnswerConfig{})

	question := "¿cuándo empiezan las catequesis este curso?"
	answer, err := uc.Answer(context.Background(), question, domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "empiezan en octubre" || answer.Source != domain.SourceRetrieval {
		t.Fatalf("Answer() = %+v", answer)
	}
	if _, ok := memory.entries[question]; !ok {
		t.Fatalf("generated answer must populate the memory tier")
	}
	if len(publisher.events) != 1 || publisher.events[0].Answer != "empiezan en octubre" {
		t.Fatalf("generated answer must be published, got %+v", publisher.events)
	}
}

func TestAnswerEmptyRetrievalFallsBackUncached(t *testing.T) {
	memory := newMemoryFake()
	publisher := &publisherFake{}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     memory,
		Persistent: &persistentFake{},
		Engine:     &engineFake{},
		Generator:  &generatorFake{answer: "should not run"},
		Publisher:  publisher,
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), "tema sin documentos indexados", domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != FallbackAnswer {
		t.Fatalf("Text = %q, want fallback", answer.Text)
	}
	if memory.sets != 0 || len(publisher.events) != 0 {
		t.Fatalf("fallback answers must not be cached or published")
	}
}

func TestAnswerCalendarBypassesCacheTiers(t *testing.T) {
	memory := newMemoryFake()
	memory.entries["eventos hoy"] = "stale cached events"
	calendar := &calendarFake{events: []domain.Event{
		{Title: "Misa de jóvenes", Start: time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC), Location: "Iglesia"},
	}}
	generator := &generatorFake{answer: "hoy hay misa de jóvenes a las 19:00"}
	persistent := &persistentFake{}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: domain.RouteDecision{Path: domain.PathFull, Reason: "calendar"}},
		Memory:     memory,
		Persistent: persistent,
		Engine:     &engineFake{},
		Generator:  generator,
		Calendar:   calendar,
	}, AnswerConfig{
		Clock: func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})

	answer, err := uc.Answer(context.Background(), "eventos hoy", domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "hoy hay misa de jóvenes a las 19:00" {
		t.Fatalf("calendar path must ignore cached entries, got %q", answer.Text)
	}
	if persistent.gets != 0 {
		t.Fatalf("calendar questions must not consult the persistent tier")
	}
	if memory.sets != 0 {
		t.Fatalf("calendar answers must never be cached")
	}
	if len(generator.blocks) != 1 || !strings.Contains(generator.blocks[0], "Misa de jóvenes") {
		t.Fatalf("events must be passed as generation context, got %v", generator.blocks)
	}
	wantFrom := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !calendar.from.Equal(wantFrom) || !calendar.to.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Fatalf("'hoy' must narrow the window to today, got %v..%v", calendar.from, calendar.to)
	}
}

func TestAnswerCalendarFailureFallsThroughToRetrieval(t *testing.T) {
	engine := &engineFake{result: domain.RetrievedContext{
		Passages:   []string{"las misas de diario son a las 19:30"},
		Candidates: []domain.FusedCandidate{{ID: "doc-a"}},
	}}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: domain.RouteDecision{Path: domain.PathFull, Reason: "calendar"}},
		Memory:     newMemoryFake(),
		Persistent: &persistentFake{},
		Engine:     engine,
		Generator:  &generatorFake{answer: "a las 19:30"},
		Calendar:   &calendarFake{err: errors.New("feed unreachable")},
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), "eventos esta semana", domain.ChatContext{})
	if err != nil {
		t.Fatalf("calendar failure must degrade to retrieval: %v", err)
	}
	if engine.calls != 1 || answer.Source != domain.SourceRetrieval {
		t.Fatalf("expected retrieval fallback, got %+v", answer)
	}
}

func TestAnswerNoCacheWriteAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	memory := newMemoryFake()
	publisher := &publisherFake{}
	engine := &engineFake{result: domain.RetrievedContext{
		Passages:   []string{"context"},
		Candidates: []domain.FusedCandidate{{ID: "doc-a"}},
	}}

	uc := NewAnswerUseCase(AnswerDeps{
		Router:     routerFake{decision: fullPathDecision()},
		Memory:     memory,
		Persistent: &persistentFake{},
		Engine:     engine,
		Generator:  &generatorFake{answer: "done", cancel: cancel},
		Publisher:  publisher,
	}, AnswerConfig{})

	if _, err := uc.Answer(ctx, "pregunta cancelada a mitad", domain.ChatContext{}); err == nil {
		t.Fatalf("cancelled context must surface an error")
	}
	if memory.sets != 0 || len(publisher.events) != 0 {
		t.Fatalf("no cache write or publish may happen after cancellation")
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	uc := NewAnswerUseCase(AnswerDeps{
		Router:    routerFake{decision: fullPathDecision()},
		Memory:    newMemoryFake(),
		Engine:    &engineFake{},
		Generator: &generatorFake{},
	}, AnswerConfig{})

	_, err := uc.Answer(context.Background(), "   ", domain.ChatContext{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerAppliesAttachmentsToCachedAnswers(t *testing.T) {
	memory := newMemoryFake()
	question := "formulario de inscripción a la comunidad eloos"
	memory.entries[question] = "rellena el formulario de inscripción"

	uc := NewAnswerUseCase(AnswerDeps{
		Router:    routerFake{decision: domain.RouteDecision{Path: domain.PathFast, Reason: "faq"}},
		Memory:    memory,
		Engine:    &engineFake{},
		Generator: &generatorFake{},
	}, AnswerConfig{})

	answer, err := uc.Answer(context.Background(), question, domain.ChatContext{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Attachments) == 0 {
		t.Fatalf("cached answers must still carry attachments")
	}
}

package routing

import (
	"testing"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

func TestDetectCalendarQuestions(t *testing.T) {
	r := NewDefault()
	for _, q := range []string{
		"events today",
		"¿qué hay hoy?",
		"eventos de la semana",
		"misas el domingo",
		"what's on tomorrow",
	} {
		got := r.Detect(q, domain.ChatContext{})
		if got.Path != domain.PathFull || got.Reason != "calendar" {
			t.Fatalf("Detect(%q) = %+v, want full/calendar", q, got)
		}
	}
}

func TestDetectComplexReasoning(t *testing.T) {
	r := NewDefault()
	got := r.Detect("Explica la diferencia entre bautismo y confirmación", domain.ChatContext{})
	// Calendar terms outrank it only if present; here complex wins.
	if got.Path != domain.PathFull || got.Reason != "complex-reasoning" {
		t.Fatalf("Detect() = %+v, want full/complex-reasoning", got)
	}
}

func TestDetectGreetingAndAcknowledgement(t *testing.T) {
	r := NewDefault()

	got := r.Detect("Hola, buenos días", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != "greeting" {
		t.Fatalf("Detect(greeting) = %+v", got)
	}

	got = r.Detect("thanks", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != "acknowledgement" {
		t.Fatalf("Detect(thanks) = %+v", got)
	}

	got = r.Detect("gracias", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != "acknowledgement" {
		t.Fatalf("Detect(gracias) = %+v", got)
	}
}

func TestDetectExpansiveFollowupOnlyAfterCachedAnswer(t *testing.T) {
	r := NewDefault()

	got := r.Detect("cuéntame más", domain.ChatContext{LastAnswerFromCache: true})
	if got.Path != domain.PathFull || got.Reason != "expansive-followup" {
		t.Fatalf("Detect(followup, cached) = %+v", got)
	}

	// Without the cached-answer flag the same text falls through to the
	// short heuristic.
	got = r.Detect("cuéntame más", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != ReasonShortHeuristic {
		t.Fatalf("Detect(followup, no cache) = %+v", got)
	}
}

func TestDetectTopicChange(t *testing.T) {
	r := NewDefault()
	got := r.Detect("¿Y el coro parroquial?", domain.ChatContext{})
	if got.Path != domain.PathFull || got.Reason != "topic-change" {
		t.Fatalf("Detect(topic change) = %+v", got)
	}
}

func TestDetectFAQ(t *testing.T) {
	r := NewDefault()
	got := r.Detect("¿Horario de Cáritas?", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != "faq" {
		t.Fatalf("Detect(faq) = %+v", got)
	}
}

func TestDetectLengthFallback(t *testing.T) {
	r := NewDefault()

	got := r.Detect("me ayudas con esto", domain.ChatContext{})
	if got.Path != domain.PathFast || got.Reason != ReasonShortHeuristic {
		t.Fatalf("Detect(short) = %+v", got)
	}

	long := "necesito ayuda con un asunto particular sobre el que me gustaría recibir orientación pastoral detallada"
	got = r.Detect(long, domain.ChatContext{})
	if got.Path != domain.PathFull || got.Reason != ReasonLongHeuristic {
		t.Fatalf("Detect(long) = %+v", got)
	}
}

func TestDetectDeterministic(t *testing.T) {
	r := NewDefault()
	first := r.Detect("events today", domain.ChatContext{})
	for i := 0; i < 10; i++ {
		if got := r.Detect("events today", domain.ChatContext{}); got != first {
			t.Fatalf("Detect not deterministic: %+v != %+v", got, first)
		}
	}
}

func TestSingleWordTermsMatchWholeTokensOnly(t *testing.T) {
	r := NewDefault()
	// "mesas" must not trigger the calendar term "mes".
	got := r.Detect("¿dónde están las mesas del salón parroquial?", domain.ChatContext{})
	if got.Reason == "calendar" {
		t.Fatalf("substring false positive: %+v", got)
	}
}

func TestParseRuleSetRejectsBadPath(t *testing.T) {
	_, err := ParseRuleSet([]byte("rules:\n  - name: x\n    path: sideways\n    match: keyword\n    terms: [a]\n"))
	if err == nil {
		t.Fatalf("expected error for invalid path")
	}
}

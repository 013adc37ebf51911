package domain

type SearchFilter struct {
	Category string
}

// RetrievalCandidate is a single hit from one vector-index search. Rank is
// the 0-based position within that search's result list; Score is only
// comparable within the same list.
type RetrievalCandidate struct {
	ID       string  `json:"id"`
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
}

// FusedCandidate is a deduplicated candidate after reciprocal rank fusion
// across all query-variant result lists.
type FusedCandidate struct {
	ID          string  `json:"id"`
	FusionScore float64 `json:"fusion_score"`
	Content     string  `json:"content"`
	Category    string  `json:"category"`
}

// RetrievedContext is the engine's output for answer generation. Empty is an
// explicit signal, not an error: the caller produces a "consult a human"
// fallback instead of failing.
type RetrievedContext struct {
	Passages   []string         `json:"passages"`
	Candidates []FusedCandidate `json:"candidates"`
}

func (c RetrievedContext) Empty() bool {
	return len(c.Passages) == 0
}

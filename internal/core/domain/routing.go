package domain

// RoutePath selects the downstream pipeline for a question.
type RoutePath string

const (
	// PathFast means cache-eligible: try the lookup tiers first.
	PathFast RoutePath = "fast"
	// PathFull means live retrieval or tool calls are required.
	PathFull RoutePath = "full"
)

// RouteDecision is advisory: the reason names the matched rule and is used
// for telemetry only, never as a functional input downstream.
type RouteDecision struct {
	Path   RoutePath `json:"path"`
	Reason string    `json:"reason"`
}

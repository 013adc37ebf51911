package domain

// AnswerSource identifies which pipeline tier produced an answer.
type AnswerSource string

const (
	SourceFastCache       AnswerSource = "fast-cache"
	SourcePersistentCache AnswerSource = "persistent-cache"
	SourceRetrieval       AnswerSource = "retrieval"
)

// Attachment is a resource (form, PDF, link) appended to an answer by the
// post-processing policy stage.
type Attachment struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Type        string `json:"type"`
}

type Answer struct {
	Text        string       `json:"text"`
	Source      AnswerSource `json:"source"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Turn is one prior exchange message, newest last.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext is the optional short recent-turn context passed alongside a
// question. It is the only state the router may consult besides the question
// itself.
type ChatContext struct {
	LastAnswerFromCache bool   `json:"last_answer_from_cache"`
	RecentTurns         []Turn `json:"recent_turns,omitempty"`
}

// AnswerProduced is the event emitted after a generated answer so the
// persistent tier can be populated asynchronously.
type AnswerProduced struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

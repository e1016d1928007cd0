package types

// MessageRole identifies who authored a transcript message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"

	RolePlaintiff MessageRole = "plaintiff"
	RoleDefendant MessageRole = "defendant"
	RoleJudge     MessageRole = "AI Judge"
)

// SenderBot is the sender value the chat backend stores for assistant replies.
const SenderBot = "bot"

// Mode selects how the chat backend answers.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Message is a transcript entry shown to the user. IDs are monotonic within
// one transcript.
type Message struct {
	ID    int         `json:"id"`
	Text  string      `json:"text"`
	IsBot bool        `json:"is_bot"`
	Role  MessageRole `json:"role"`
}

// HistoryMessage is a stored message inside a backend conversation.
type HistoryMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Conversation is a persisted chat thread as returned by the history endpoint.
type Conversation struct {
	ID       int64            `json:"id"`
	Topic    string           `json:"topic"`
	Messages []HistoryMessage `json:"messages"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID         int64  `json:"user_id"`
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id"`
	Mode           Mode   `json:"mode"`
}

// ChatReply is the response of POST /chat. Older backends answer in
// "message" instead of "answer".
type ChatReply struct {
	Answer         string `json:"answer"`
	Message        string `json:"message,omitempty"`
	ConversationID int64  `json:"conversation_id"`
}

// Text returns the reply text regardless of which field the backend used.
func (r *ChatReply) Text() string {
	if r.Answer != "" {
		return r.Answer
	}
	return r.Message
}

// RenameRequest is the body of PATCH /chat/history/{id}.
type RenameRequest struct {
	Topic string `json:"topic"`
}

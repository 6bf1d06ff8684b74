package chat

import (
	"context"
	"time"
)

// Source is one retrieved chunk as surfaced to the caller and stored with
// assistant messages. Text is a preview, not the full chunk.
type Source struct {
	Score float64 `json:"score"`
	ID    string  `json:"id"`
	URL   string  `json:"url"`
	Text  string  `json:"text"`
}

// Message is one entry in a user's conversation log.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []Source  `json:"sources,omitempty"`
}

type Response struct {
	Answer         string    `json:"answer"`
	Sources        []Source  `json:"sources"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationStore keeps a bounded, expiring per-user message log. Append
// is responsible for count truncation and TTL refresh; History returns
// messages oldest first.
type ConversationStore interface {
	Append(ctx context.Context, userID string, msg Message) error
	History(ctx context.Context, userID string, limit int) ([]Message, error)
	Delete(ctx context.Context, userID string) error
}

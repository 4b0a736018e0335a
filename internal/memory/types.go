package memory

import (
	"context"
	"time"
)

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one immutable message within a conversation. Sequence numbers are
// assigned by the store and are strictly increasing per conversation.
type Turn struct {
	ConversationID string    `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	Speaker        Speaker   `json:"speaker"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Snapshot exports one conversation's retained turns plus the sequence
// counter so an import reproduces identical RecentContext results.
type Snapshot struct {
	NextSeq int64  `json:"next_seq"`
	Turns   []Turn `json:"turns"`
}

// Store persists and retrieves per-conversation turn history with bounded
// retention. Oldest turns are evicted first once the bound is exceeded;
// eviction never rewinds sequence numbers.
type Store interface {
	Append(ctx context.Context, conversationID string, speaker Speaker, text string) (Turn, error)
	RecentContext(ctx context.Context, conversationID string, maxTurns int) ([]Turn, error)
	Snapshot(ctx context.Context, conversationID string) (Snapshot, error)
	Restore(ctx context.Context, conversationID string, snap Snapshot) error
	Reset(ctx context.Context, conversationID string) error
	Close() error
}

// Package history keeps the append-only log of turns for each conversation.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrIndexConflict       = errors.New("turn index conflicts with conversation log")
	ErrInvalidConversation = errors.New("conversation id is required")
)

// Outcome records how a turn ended.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeNoData           Outcome = "no_data"
	OutcomeUnanswerable     Outcome = "unanswerable"
	OutcomeExecutionError   Outcome = "execution_error"
	OutcomeSynthesisFailure Outcome = "synthesis_failure"
)

// Turn is one question/answer exchange. It is immutable once appended.
type Turn struct {
	Index     int       `json:"index"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Result    string    `json:"result"`
	Answer    string    `json:"answer"`
	Error     string    `json:"error,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only, per-conversation ordered log. Appends for distinct
// conversations may run concurrently; appends for one conversation are
// serialized by the caller.
type Store interface {
	// Append adds turn at the end of the log. turn.Index must equal the number
	// of turns already stored, otherwise ErrIndexConflict is returned.
	Append(ctx context.Context, conversationID string, turn Turn) error
	// Recent returns up to limit of the newest turns in chronological order.
	Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error)
	// List returns every turn in chronological order. Unknown conversations
	// have no turns.
	List(ctx context.Context, conversationID string) ([]Turn, error)
}

// Pinger is implemented by stores backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Message is one role/content entry of the rendered conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages flattens turns into alternating user/assistant messages.
func Messages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns)*2)
	for _, turn := range turns {
		out = append(out,
			Message{Role: "user", Content: turn.Question},
			Message{Role: "assistant", Content: turn.Answer},
		)
	}
	return out
}

// NextIndex returns the index the next appended turn must carry, given the
// newest stored turns.
func NextIndex(recent []Turn) int {
	if len(recent) == 0 {
		return 0
	}
	return recent[len(recent)-1].Index + 1
}

// ValidateAppend checks the arguments shared by every backend.
func ValidateAppend(conversationID string, turn Turn) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrInvalidConversation
	}
	if turn.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrIndexConflict, turn.Index)
	}
	return nil
}

// Tail returns the last limit turns; limit <= 0 means all.
func Tail(turns []Turn, limit int) []Turn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}

// Package session manages conversation sessions and their message history.
//
// Two implementations of Store exist: PGStore persists to PostgreSQL and
// survives restarts, MemStore keeps everything in process memory for
// deployments without a direct database connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// MaxMessageLength bounds a single stored message.
const MaxMessageLength = 100_000

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a conversation with ordered messages.
type Session struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single utterance in a session. SequenceNumber is assigned on
// append and is strictly increasing within a session.
type Message struct {
	SessionID      uuid.UUID `json:"session_id"`
	SequenceNumber int64     `json:"sequence_number"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists sessions and messages.
//
// History returns the most recent limit messages in chronological order;
// limit <= 0 returns everything. Append assigns sequence numbers atomically,
// so concurrent appends to the same session never collide.
type Store interface {
	Create(ctx context.Context, title string) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context, limit, offset int) ([]*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
	Append(ctx context.Context, id uuid.UUID, messages ...Message) error
	History(ctx context.Context, id uuid.UUID, limit int) ([]Message, error)
}

// validateMessages checks roles and sizes before an append.
func validateMessages(messages []Message) error {
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("invalid message role at index %d: %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("empty message content at index %d", i)
		}
		if len(m.Content) > MaxMessageLength {
			return fmt.Errorf("message content at index %d exceeds %d bytes", i, MaxMessageLength)
		}
	}
	return nil
}

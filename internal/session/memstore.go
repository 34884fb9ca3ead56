package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore keeps sessions in process memory. It backs deployments that only
// have the Supabase REST backend and no direct database connection; history
// is lost on restart.
//
// MemStore is safe for concurrent use by multiple goroutines.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memSession
}

type memSession struct {
	session  Session
	messages []Message
}

// NewMemStore creates an empty in-memory session store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[uuid.UUID]*memSession)}
}

// Create inserts a new session with a generated UUID.
func (s *MemStore) Create(_ context.Context, title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := Session{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &memSession{session: sess}

	out := sess
	return &out, nil
}

// Get retrieves a session by id.
func (s *MemStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	out := ms.session
	out.MessageCount = int64(len(ms.messages))
	return &out, nil
}

// List returns sessions ordered by most recent activity.
func (s *MemStore) List(_ context.Context, limit, offset int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Session, 0, len(s.sessions))
	for _, ms := range s.sessions {
		out := ms.session
		out.MessageCount = int64(len(ms.messages))
		all = append(all, &out)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Delete removes a session and its messages.
func (s *MemStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// SetTitle updates the session title.
func (s *MemStore) SetTitle(_ context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ms.session.Title = title
	ms.session.UpdatedAt = time.Now()
	return nil
}

// Append adds messages with sequential sequence numbers.
func (s *MemStore) Append(_ context.Context, id uuid.UUID, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := validateMessages(messages); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := time.Now()
	seq := int64(len(ms.messages))
	for _, msg := range messages {
		seq++
		msg.SessionID = id
		msg.SequenceNumber = seq
		msg.CreatedAt = now
		ms.messages = append(ms.messages, msg)
	}
	ms.session.UpdatedAt = now
	return nil
}

// History returns the most recent limit messages in chronological order.
func (s *MemStore) History(_ context.Context, id uuid.UUID, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	msgs := ms.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

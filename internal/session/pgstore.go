package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists sessions in PostgreSQL.
//
// PGStore is safe for concurrent use by multiple goroutines. Appends lock
// the session row, so sequence numbers stay gapless under concurrency.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore creates a PostgreSQL-backed session store.
func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) (*PGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}, nil
}

const sessionCols = `s.id, s.title, s.created_at, s.updated_at,
	(SELECT count(*) FROM session_messages m WHERE m.session_id = s.id)`

// Create inserts a new session with a generated UUID.
func (s *PGStore) Create(ctx context.Context, title string) (*Session, error) {
	id := uuid.New()

	sess := &Session{ID: id, Title: title}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		id, title).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", id, "title", title)
	return sess, nil
}

// Get retrieves a session by id.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions s WHERE s.id = $1`, id).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns sessions ordered by most recent activity.
func (s *PGStore) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM sessions s
		 ORDER BY s.updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and all its messages (CASCADE).
func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}

// SetTitle updates the session title.
func (s *PGStore) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("updating session title %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Append adds messages with atomically assigned sequence numbers.
//
// The session row is locked for the duration of the transaction to prevent
// concurrent appends from racing on the max sequence number.
func (s *PGStore) Append(ctx context.Context, id uuid.UUID, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := validateMessages(messages); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("locking session %s: %w", id, err)
	}

	var maxSeq int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM session_messages WHERE session_id = $1`,
		id).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		seq := maxSeq + int64(i) + 1
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_messages (session_id, sequence_number, role, content)
			 VALUES ($1, $2, $3, $4)`,
			id, seq, string(msg.Role), msg.Content); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touching session %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("appended messages", "session_id", id, "count", len(messages))
	return nil
}

// History returns the most recent limit messages in chronological order.
func (s *PGStore) History(ctx context.Context, id uuid.UUID, limit int) ([]Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	sql := `SELECT session_id, sequence_number, role, content, created_at
		FROM session_messages WHERE session_id = $1
		ORDER BY sequence_number DESC`
	args := []any{id}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", id, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.SessionID, &m.SequenceNumber, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	// Rows come back newest-first; flip to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

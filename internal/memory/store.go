// Package memory persists conversation turns per chat in PostgreSQL.
// Each chat's turns carry a monotonically increasing sequence assigned
// under a per-chat advisory lock, so concurrent appends never produce
// duplicate or out-of-order sequences. Old turns are evicted FIFO once
// a chat exceeds its retention cap.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostline/concierge/internal/log"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const turnCols = `id, chat_id, role, content, sequence, created_at`

const insertTurnSQL = `INSERT INTO conversation_turns (chat_id, role, content, sequence)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at`

// Store manages conversation history. Safe for concurrent use.
type Store struct {
	pool         *pgxpool.Pool
	retentionCap int64
	logger       log.Logger
}

// NewStore creates a conversation Store. retentionCap is the per-chat
// turn count above which the oldest turns are evicted.
func NewStore(pool *pgxpool.Pool, retentionCap int, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if retentionCap <= 0 {
		return nil, fmt.Errorf("retention cap must be positive")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, retentionCap: int64(retentionCap), logger: logger}, nil
}

// Append stores a single turn and returns it with its assigned
// sequence. Eviction runs in the same transaction, so the cap holds at
// commit.
func (s *Store) Append(ctx context.Context, chatID string, role Role, content string) (Turn, error) {
	if err := validateTurn(chatID, role, content); err != nil {
		return Turn{}, err
	}

	var turn Turn
	err := s.inChatTx(ctx, chatID, func(tx pgx.Tx) error {
		var err error
		if turn, err = s.appendTx(ctx, tx, chatID, role, content); err != nil {
			return err
		}
		return s.evictTx(ctx, tx, chatID)
	})
	if err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// AppendExchange stores a user turn followed by the assistant turn as
// one atomic unit. Either both turns persist with adjacent sequences or
// neither does.
func (s *Store) AppendExchange(ctx context.Context, chatID, userContent, assistantContent string) ([]Turn, error) {
	if err := validateTurn(chatID, RoleUser, userContent); err != nil {
		return nil, err
	}
	if err := validateTurn(chatID, RoleAssistant, assistantContent); err != nil {
		return nil, err
	}

	var turns []Turn
	err := s.inChatTx(ctx, chatID, func(tx pgx.Tx) error {
		userTurn, err := s.appendTx(ctx, tx, chatID, RoleUser, userContent)
		if err != nil {
			return err
		}
		assistantTurn, err := s.appendTx(ctx, tx, chatID, RoleAssistant, assistantContent)
		if err != nil {
			return err
		}
		turns = []Turn{userTurn, assistantTurn}
		return s.evictTx(ctx, tx, chatID)
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// Window returns up to maxTurns of the most recent turns, oldest
// first, ready to replay into a prompt.
func (s *Store) Window(ctx context.Context, chatID string, maxTurns int) ([]Turn, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("%w: empty chat id", ErrInvalidInput)
	}
	if maxTurns <= 0 {
		return nil, fmt.Errorf("%w: maxTurns must be positive", ErrInvalidInput)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+turnCols+` FROM conversation_turns
		WHERE chat_id = $1
		ORDER BY sequence DESC
		LIMIT $2`, chatID, maxTurns)
	if err != nil {
		return nil, fmt.Errorf("%w: window query: %w", ErrStorage, err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	// Newest-first from the query; reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear deletes all turns for a chat. Clearing an unknown chat is not
// an error.
func (s *Store) Clear(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("%w: empty chat id", ErrInvalidInput)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorage, err)
	}
	s.logger.Info("cleared chat history", "chat_id", chatID, "turns", tag.RowsAffected())
	return nil
}

// Summary reports stored turn counts and sequence bounds for a chat.
func (s *Store) Summary(ctx context.Context, chatID string) (Summary, error) {
	if strings.TrimSpace(chatID) == "" {
		return Summary{}, fmt.Errorf("%w: empty chat id", ErrInvalidInput)
	}
	sum := Summary{ChatID: chatID}
	var updatedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), COALESCE(min(sequence), 0), COALESCE(max(sequence), 0), max(created_at)
		FROM conversation_turns WHERE chat_id = $1`, chatID).
		Scan(&sum.Turns, &sum.FirstSeq, &sum.LastSeq, &updatedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: summary: %w", ErrStorage, err)
	}
	if updatedAt != nil {
		sum.UpdatedAt = *updatedAt
	}
	return sum, nil
}

// inChatTx runs fn inside a transaction holding the per-chat advisory
// lock. pg_advisory_xact_lock releases automatically at commit or
// rollback, so concurrent appends for one chat serialize while other
// chats proceed.
func (s *Store) inChatTx(ctx context.Context, chatID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorage, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "chat_id", chatID, "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, chatID); err != nil {
		return fmt.Errorf("%w: advisory lock: %w", ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return nil
}

// appendTx assigns the next sequence and inserts. Caller must hold the
// chat's advisory lock.
func (s *Store) appendTx(ctx context.Context, q querier, chatID string, role Role, content string) (Turn, error) {
	var maxSeq int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(max(sequence), 0) FROM conversation_turns WHERE chat_id = $1`,
		chatID).Scan(&maxSeq)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: max sequence: %w", ErrStorage, err)
	}

	turn := Turn{
		ChatID:   chatID,
		Role:     role,
		Content:  content,
		Sequence: maxSeq + 1,
	}
	err = q.QueryRow(ctx, insertTurnSQL, chatID, string(role), content, turn.Sequence).
		Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: insert turn: %w", ErrStorage, err)
	}
	return turn, nil
}

// evictTx deletes the oldest turns beyond the retention cap.
func (s *Store) evictTx(ctx context.Context, q querier, chatID string) error {
	var count int64
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM conversation_turns WHERE chat_id = $1`, chatID).Scan(&count)
	if err != nil {
		return fmt.Errorf("%w: count turns: %w", ErrStorage, err)
	}
	excess := count - s.retentionCap
	if excess <= 0 {
		return nil
	}

	tag, err := q.Exec(ctx,
		`DELETE FROM conversation_turns
		WHERE id IN (
			SELECT id FROM conversation_turns
			WHERE chat_id = $1
			ORDER BY sequence ASC
			LIMIT $2
		)`, chatID, excess)
	if err != nil {
		return fmt.Errorf("%w: evict: %w", ErrStorage, err)
	}
	s.logger.Debug("evicted oldest turns", "chat_id", chatID, "evicted", tag.RowsAffected())
	return nil
}

func validateTurn(chatID string, role Role, content string) error {
	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("%w: empty chat id", ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	switch role {
	case RoleUser, RoleAssistant, RoleTool:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
		)
		if err := rows.Scan(&t.ID, &t.ChatID, &role, &t.Content, &t.Sequence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %w", ErrStorage, err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrStorage, err)
	}
	return turns, nil
}

// Package postgres stores conversation history in the conversation_turn table
// created by the pdnchat migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdnchat/pdnchat/internal/history"
)

type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// Append inserts the turn only when its index equals the stored turn count.
// Duplicate or out-of-order indexes affect no rows and report ErrIndexConflict.
func (s *Store) Append(ctx context.Context, conversationID string, turn history.Turn) error {
	if err := history.ValidateAppend(conversationID, turn); err != nil {
		return err
	}
	query := `
INSERT INTO conversation_turn (conversation_id, turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at)
SELECT $1, $2::integer, $3, $4, $5, $6, $7, $8, $9
WHERE (SELECT COUNT(*) FROM conversation_turn WHERE conversation_id = $1) = $2::integer
ON CONFLICT (conversation_id, turn_index) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query,
		conversationID, turn.Index, turn.Question, turn.SQL, turn.Result, turn.Answer, turn.Error,
		string(turn.Outcome), turn.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append turn rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: index %d is not next for %s", history.ErrIndexConflict, turn.Index, conversationID)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		return s.List(ctx, conversationID)
	}
	return s.query(ctx, `
SELECT turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at
FROM (
	SELECT turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at
	FROM conversation_turn
	WHERE conversation_id = $1
	ORDER BY turn_index DESC
	LIMIT $2
) AS recent
ORDER BY turn_index ASC`, conversationID, limit)
}

func (s *Store) List(ctx context.Context, conversationID string) ([]history.Turn, error) {
	return s.query(ctx, `
SELECT turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at
FROM conversation_turn
WHERE conversation_id = $1
ORDER BY turn_index ASC`, conversationID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]history.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		var (
			turn    history.Turn
			outcome string
		)
		if err := rows.Scan(&turn.Index, &turn.Question, &turn.SQL, &turn.Result, &turn.Answer, &turn.Error, &outcome, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Outcome = history.Outcome(outcome)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

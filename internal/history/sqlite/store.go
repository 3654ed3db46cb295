// Package sqlite stores conversation history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/pdnchat/pdnchat/internal/history"
)

type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite history dsn is required")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history: %w", err)
	}
	// SQLite allows a single writer; one connection keeps appends from
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite history: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turn (
			conversation_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL CHECK (turn_index >= 0),
			question TEXT NOT NULL,
			sql_text TEXT NOT NULL DEFAULT '',
			result_payload TEXT NOT NULL DEFAULT '',
			answer TEXT NOT NULL,
			error_text TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (conversation_id, turn_index)
		);`,
		`CREATE INDEX IF NOT EXISTS conversation_turn_by_created ON conversation_turn(created_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite history: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, conversationID string, turn history.Turn) error {
	if err := history.ValidateAppend(conversationID, turn); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_turn (conversation_id, turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at_ms)
SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
WHERE (SELECT COUNT(*) FROM conversation_turn WHERE conversation_id = ?) = ?`,
		conversationID, turn.Index, turn.Question, turn.SQL, turn.Result, turn.Answer, turn.Error,
		string(turn.Outcome), turn.CreatedAt.UTC().UnixMilli(),
		conversationID, turn.Index,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: index %d already stored", history.ErrIndexConflict, turn.Index)
		}
		return fmt.Errorf("append sqlite turn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append sqlite turn: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: index %d is not next", history.ErrIndexConflict, turn.Index)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		return s.List(ctx, conversationID)
	}
	return s.query(ctx, `
SELECT turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at_ms
FROM (
	SELECT * FROM conversation_turn
	WHERE conversation_id = ?
	ORDER BY turn_index DESC
	LIMIT ?
)
ORDER BY turn_index ASC`, conversationID, limit)
}

func (s *Store) List(ctx context.Context, conversationID string) ([]history.Turn, error) {
	return s.query(ctx, `
SELECT turn_index, question, sql_text, result_payload, answer, error_text, outcome, created_at_ms
FROM conversation_turn
WHERE conversation_id = ?
ORDER BY turn_index ASC`, conversationID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]history.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sqlite turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		var (
			turn      history.Turn
			outcome   string
			createdMs int64
		)
		if err := rows.Scan(&turn.Index, &turn.Question, &turn.SQL, &turn.Result, &turn.Answer, &turn.Error, &outcome, &createdMs); err != nil {
			return nil, fmt.Errorf("scan sqlite turn: %w", err)
		}
		turn.Outcome = history.Outcome(outcome)
		turn.CreatedAt = time.UnixMilli(createdMs).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sqlite turns: %w", err)
	}
	return turns, nil
}

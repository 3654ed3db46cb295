// Package redis stores each conversation as a Redis list of JSON-encoded turns.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pdnchat/pdnchat/internal/history"
)

const DefaultKeyPrefix = "pdnchat:conv:"

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL refreshes the conversation expiry on every append; zero keeps keys forever.
	TTL time.Duration
}

type client interface {
	Watch(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error
	LRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

type Store struct {
	client    client
	keyPrefix string
	ttl       time.Duration
}

var _ history.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis history addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newWithClient(rdb, cfg.KeyPrefix, cfg.TTL), nil
}

func newWithClient(c client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: c, keyPrefix: prefix, ttl: ttl}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis history: %w", err)
	}
	return nil
}

func (s *Store) key(conversationID string) string {
	return s.keyPrefix + conversationID
}

// Append pushes the turn under WATCH so a concurrent writer aborts the
// transaction instead of interleaving indexes.
func (s *Store) Append(ctx context.Context, conversationID string, turn history.Turn) error {
	if err := history.ValidateAppend(conversationID, turn); err != nil {
		return err
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	key := s.key(conversationID)

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		count, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read turn count: %w", err)
		}
		if count != int64(turn.Index) {
			return fmt.Errorf("%w: got index %d, log has %d turns", history.ErrIndexConflict, turn.Index, count)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, key, payload)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("%w: concurrent append to %s", history.ErrIndexConflict, conversationID)
	}
	if err != nil && !errors.Is(err, history.ErrIndexConflict) {
		return fmt.Errorf("append redis turn: %w", err)
	}
	return err
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		return s.List(ctx, conversationID)
	}
	return s.lrange(ctx, conversationID, -int64(limit), -1)
}

func (s *Store) List(ctx context.Context, conversationID string) ([]history.Turn, error) {
	return s.lrange(ctx, conversationID, 0, -1)
}

func (s *Store) lrange(ctx context.Context, conversationID string, start, stop int64) ([]history.Turn, error) {
	values, err := s.client.LRange(ctx, s.key(conversationID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read redis turns: %w", err)
	}
	return decodeTurns(values)
}

func decodeTurns(values []string) ([]history.Turn, error) {
	turns := make([]history.Turn, 0, len(values))
	for i, value := range values {
		var turn history.Turn
		if err := json.Unmarshal([]byte(value), &turn); err != nil {
			return nil, fmt.Errorf("decode redis turn %d: %w", i, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

package history

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps conversations in process memory. Each conversation has
// its own lock so distinct conversations never contend.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*memoryLog
}

type memoryLog struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: map[string]*memoryLog{}}
}

func (s *MemoryStore) log(conversationID string, create bool) *memoryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.conversations[conversationID]
	if !ok && create {
		entry = &memoryLog{}
		s.conversations[conversationID] = entry
	}
	return entry
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateAppend(conversationID, turn); err != nil {
		return err
	}
	entry := s.log(conversationID, true)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if turn.Index != len(entry.turns) {
		return fmt.Errorf("%w: got index %d, log has %d turns", ErrIndexConflict, turn.Index, len(entry.turns))
	}
	entry.turns = append(entry.turns, turn)
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	turns, err := s.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return Tail(turns, limit), nil
}

func (s *MemoryStore) List(ctx context.Context, conversationID string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := s.log(conversationID, false)
	if entry == nil {
		return []Turn{}, nil
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	out := make([]Turn, len(entry.turns))
	copy(out, entry.turns)
	return out, nil
}

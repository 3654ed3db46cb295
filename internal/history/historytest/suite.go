// Package historytest holds the behaviour every history.Store backend must share.
package historytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdnchat/pdnchat/internal/history"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) history.Store

// Turn builds a deterministic turn for index i.
func Turn(i int) history.Turn {
	return history.Turn{
		Index:     i,
		Question:  fmt.Sprintf("question %d", i),
		SQL:       fmt.Sprintf("SELECT %d FROM blood_donation_events.csv", i),
		Result:    fmt.Sprintf(`{"kind":"rows","columns":["n"],"rows":[{"n":%d}]}`, i),
		Answer:    fmt.Sprintf("answer %d", i),
		Outcome:   history.OutcomeAnswered,
		CreatedAt: time.Date(2025, 12, 20, 10, 0, i, 0, time.UTC),
	}
}

// Run exercises the append-only log contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("UnknownConversationIsEmpty", func(t *testing.T) {
		store := newStore(t)
		turns, err := store.List(context.Background(), "missing")
		require.NoError(t, err)
		require.Empty(t, turns)

		recent, err := store.Recent(context.Background(), "missing", 5)
		require.NoError(t, err)
		require.Empty(t, recent)
	})

	t.Run("AppendKeepsOrderAndFields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Append(ctx, "conv-a", Turn(i)))
		}
		failed := Turn(3)
		failed.SQL = "NOT_ANSWERABLE"
		failed.Result = ""
		failed.Error = "reasoning service unavailable"
		failed.Outcome = history.OutcomeSynthesisFailure
		require.NoError(t, store.Append(ctx, "conv-a", failed))

		turns, err := store.List(ctx, "conv-a")
		require.NoError(t, err)
		require.Len(t, turns, 4)
		for i, turn := range turns[:3] {
			want := Turn(i)
			require.Equal(t, want.Index, turn.Index)
			require.Equal(t, want.Question, turn.Question)
			require.Equal(t, want.SQL, turn.SQL)
			require.Equal(t, want.Result, turn.Result)
			require.Equal(t, want.Answer, turn.Answer)
			require.Equal(t, want.Outcome, turn.Outcome)
			require.True(t, want.CreatedAt.Equal(turn.CreatedAt), "created_at %s != %s", turn.CreatedAt, want.CreatedAt)
		}
		require.Equal(t, "reasoning service unavailable", turns[3].Error)
		require.Equal(t, history.OutcomeSynthesisFailure, turns[3].Outcome)
	})

	t.Run("RejectsIndexGapsAndDuplicates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.ErrorIs(t, store.Append(ctx, "conv-b", Turn(1)), history.ErrIndexConflict)
		require.NoError(t, store.Append(ctx, "conv-b", Turn(0)))
		require.ErrorIs(t, store.Append(ctx, "conv-b", Turn(0)), history.ErrIndexConflict)
		require.ErrorIs(t, store.Append(ctx, "conv-b", Turn(2)), history.ErrIndexConflict)

		turns, err := store.List(ctx, "conv-b")
		require.NoError(t, err)
		require.Len(t, turns, 1)
	})

	t.Run("RecentReturnsNewestInChronologicalOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for i := 0; i < 7; i++ {
			require.NoError(t, store.Append(ctx, "conv-c", Turn(i)))
		}
		recent, err := store.Recent(ctx, "conv-c", 5)
		require.NoError(t, err)
		require.Len(t, recent, 5)
		for i, turn := range recent {
			require.Equal(t, i+2, turn.Index)
		}
		require.Equal(t, 7, history.NextIndex(recent))
	})

	t.Run("ConversationsAreIsolated", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Append(ctx, "conv-d", Turn(0)))
		require.NoError(t, store.Append(ctx, "conv-e", Turn(0)))
		require.NoError(t, store.Append(ctx, "conv-e", Turn(1)))

		d, err := store.List(ctx, "conv-d")
		require.NoError(t, err)
		require.Len(t, d, 1)
		e, err := store.List(ctx, "conv-e")
		require.NoError(t, err)
		require.Len(t, e, 2)
	})

	t.Run("ConcurrentAppendsAcrossConversations", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		const conversations = 4
		const turns = 5
		var wg sync.WaitGroup
		errs := make(chan error, conversations)
		for c := 0; c < conversations; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				id := fmt.Sprintf("parallel-%d", c)
				for i := 0; i < turns; i++ {
					if err := store.Append(ctx, id, Turn(i)); err != nil {
						errs <- err
						return
					}
				}
			}(c)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for c := 0; c < conversations; c++ {
			got, err := store.List(ctx, fmt.Sprintf("parallel-%d", c))
			require.NoError(t, err)
			require.Len(t, got, turns)
		}
	})

	t.Run("RejectsEmptyConversationID", func(t *testing.T) {
		store := newStore(t)
		err := store.Append(context.Background(), " ", Turn(0))
		require.True(t, errors.Is(err, history.ErrInvalidConversation), "err = %v", err)
	})
}

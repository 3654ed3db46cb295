// Package chat runs one conversational turn: synthesize a statement, execute
// it, compose the reply and append the turn to the conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pdnchat/pdnchat/internal/calendar"
	"github.com/pdnchat/pdnchat/internal/compose"
	"github.com/pdnchat/pdnchat/internal/history"
	"github.com/pdnchat/pdnchat/internal/nl2sql"
	"github.com/pdnchat/pdnchat/internal/observability"
	"github.com/pdnchat/pdnchat/internal/query"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
)

const defaultMaxQuestionLength = 500

type Synthesizer interface {
	Synthesize(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
}

type Executor interface {
	Execute(ctx context.Context, sqlText string) query.Outcome
}

type Composer interface {
	Compose(ctx context.Context, in compose.Input) string
	Language(question string) compose.Language
}

type Config struct {
	MaxQuestionLength int
	// Location decides which calendar day "today" is.
	Location *time.Location
}

// Service is safe for concurrent use. Turns of one conversation run one at a
// time; distinct conversations proceed in parallel.
type Service struct {
	Synthesizer Synthesizer
	Executor    Executor
	Composer    Composer
	History     history.Store
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
	NewID       func() string

	once  sync.Once
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type AskInput struct {
	Question       string
	ConversationID string
}

type TurnResult struct {
	ConversationID string
	FinalAnswer    string
	SQL            string
	// QueryResult is the serialized outcome payload, empty when nothing ran.
	QueryResult string
	Messages    []history.Message
	Error       string
	Turn        history.Turn
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// Ask answers question within the given conversation, minting a new
// conversation when none is supplied. Errors are returned only for invalid
// input and history store failures; every other failure becomes a turn.
func (s *Service) Ask(ctx context.Context, in AskInput) (TurnResult, error) {
	s.once.Do(s.ensureDefaults)

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return TurnResult{}, ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > s.Config.MaxQuestionLength {
		return TurnResult{}, fmt.Errorf("%w: %d characters allowed", ErrQuestionTooLong, s.Config.MaxQuestionLength)
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = s.NewID()
	}
	ctx = observability.ContextWithConversationID(ctx, conversationID)

	unlock := s.lock(conversationID)
	defer unlock()

	started := time.Now()
	prior, err := s.History.List(ctx, conversationID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load conversation history: %w", err)
	}
	now := s.Clock()
	turn := history.Turn{
		Index:     history.NextIndex(prior),
		Question:  question,
		CreatedAt: now.UTC(),
	}
	today := calendar.Day(now.In(s.Config.Location))

	result := s.runTurn(ctx, &turn, prior, today)

	historyStarted := time.Now()
	if err := s.History.Append(ctx, conversationID, turn); err != nil {
		return TurnResult{}, fmt.Errorf("append turn %d: %w", turn.Index, err)
	}
	observability.ObserveStage("history", time.Since(historyStarted))
	observability.ObserveTurn(string(turn.Outcome))

	s.Logger.InfoContext(ctx, "turn completed",
		append(observability.LogAttrs(ctx),
			slog.Int("turn_index", turn.Index),
			slog.String("outcome", string(turn.Outcome)),
			slog.Duration("duration", time.Since(started)),
		)...)

	result.ConversationID = conversationID
	result.Turn = turn
	result.Messages = history.Messages(append(prior, turn))
	return result, nil
}

// runTurn fills in turn and returns the partial result for it.
func (s *Service) runTurn(ctx context.Context, turn *history.Turn, prior []history.Turn, today time.Time) TurnResult {
	lang := s.Composer.Language(turn.Question)

	stageStarted := time.Now()
	synthesized, err := s.Synthesizer.Synthesize(ctx, nl2sql.Request{
		Question:    turn.Question,
		Context:     prior,
		CurrentDate: today,
	})
	observability.ObserveStage("synthesize", time.Since(stageStarted))
	if err != nil {
		s.Logger.WarnContext(ctx, "synthesis failed",
			append(observability.LogAttrs(ctx), slog.Int("turn_index", turn.Index), slog.Any("error", err))...)
		turn.Outcome = history.OutcomeSynthesisFailure
		turn.Error = err.Error()
		turn.Answer = compose.SynthesisFailureAnswer(lang)
		return TurnResult{FinalAnswer: turn.Answer, Error: turn.Error}
	}

	turn.SQL = synthesized.SQL
	if synthesized.Unanswerable {
		turn.Outcome = history.OutcomeUnanswerable
		turn.Answer = compose.UnanswerableAnswer(lang)
		return TurnResult{FinalAnswer: turn.Answer, SQL: turn.SQL}
	}

	stageStarted = time.Now()
	outcome := s.Executor.Execute(ctx, synthesized.SQL)
	observability.ObserveStage("execute", time.Since(stageStarted))

	payload, err := outcome.Payload()
	if err != nil {
		s.Logger.ErrorContext(ctx, "encode query outcome",
			append(observability.LogAttrs(ctx), slog.Int("turn_index", turn.Index), slog.Any("error", err))...)
	}
	turn.Result = payload

	switch outcome.Kind {
	case query.OutcomeRows:
		turn.Outcome = history.OutcomeAnswered
	case query.OutcomeNoData:
		turn.Outcome = history.OutcomeNoData
	default:
		turn.Outcome = history.OutcomeExecutionError
		turn.Error = outcome.Error
	}

	stageStarted = time.Now()
	turn.Answer = s.Composer.Compose(ctx, compose.Input{
		Question:    turn.Question,
		SQL:         synthesized.SQL,
		Outcome:     outcome,
		Context:     prior,
		CurrentDate: today,
	})
	observability.ObserveStage("compose", time.Since(stageStarted))

	return TurnResult{
		FinalAnswer: turn.Answer,
		SQL:         turn.SQL,
		QueryResult: payload,
		Error:       turn.Error,
	}
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.NewID == nil {
		s.NewID = uuid.NewString
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Config.MaxQuestionLength <= 0 {
		s.Config.MaxQuestionLength = defaultMaxQuestionLength
	}
	if s.Config.Location == nil {
		s.Config.Location = time.UTC
	}
}

// lock serializes turns of one conversation. Entries are dropped once no
// caller holds or waits on them.
func (s *Service) lock(conversationID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*conversationLock)
	}
	entry, ok := s.locks[conversationID]
	if !ok {
		entry = &conversationLock{}
		s.locks[conversationID] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.mu.Unlock()
	}
}

// Package nl2sql turns a natural-language question plus recent conversation
// into a single read-only SQL statement over the logical events table.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/history"
	"github.com/pdnchat/pdnchat/internal/llm"
	"github.com/pdnchat/pdnchat/internal/observability"
)

// Sentinel is returned by the reasoning service when the dataset cannot
// answer the question.
const Sentinel = "NOT_ANSWERABLE"

// DefaultContextTurns is how many prior turns reach the prompt.
const DefaultContextTurns = 5

var (
	ErrEmptyCompletion = errors.New("reasoning service returned no SQL")
	ErrNotSQL          = errors.New("reasoning service reply is not a SQL query")
)

// SynthesisError reports that no SQL could be produced for the turn.
type SynthesisError struct {
	Cause error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize sql: %v", e.Cause)
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

type Request struct {
	Question string
	// Context holds prior turns oldest first; only the newest ContextTurns are used.
	Context     []history.Turn
	CurrentDate time.Time
}

type Result struct {
	SQL          string
	Unanswerable bool
}

type Config struct {
	Completer    llm.Completer
	Schema       Schema
	ContextTurns int
	Logger       *slog.Logger
}

type Synthesizer struct {
	completer    llm.Completer
	systemPrompt string
	contextTurns int
	logger       *slog.Logger
}

func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	schema := cfg.Schema
	if schema.Table == "" {
		schema = DefaultSchema()
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	contextTurns := cfg.ContextTurns
	if contextTurns <= 0 {
		contextTurns = DefaultContextTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synthesizer{
		completer:    cfg.Completer,
		systemPrompt: SystemPrompt(schema),
		contextTurns: contextTurns,
		logger:       logger,
	}, nil
}

// Synthesize asks the reasoning service for SQL. Failures, blank replies and
// replies that are not a query return *SynthesisError; a sentinel reply sets Result.Unanswerable.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	userPrompt := UserPrompt(req, s.contextTurns)

	started := time.Now()
	raw, err := s.completer.Complete(ctx, s.systemPrompt, userPrompt)
	observability.ObserveLLMRequest("synthesize", err)
	if err != nil {
		return Result{}, &SynthesisError{Cause: err}
	}

	result, err := ParseCompletion(raw)
	if err != nil {
		return Result{}, &SynthesisError{Cause: err}
	}

	attrs := append(observability.LogAttrs(ctx),
		"unanswerable", result.Unanswerable,
		"context_turns", len(history.Tail(req.Context, s.contextTurns)),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	s.logger.Debug("sql synthesized", attrs...)
	return result, nil
}

// ParseCompletion cleans a raw reply into SQL or the sentinel.
func ParseCompletion(raw string) (Result, error) {
	cleaned := llm.StripCodeFence(raw)
	if cleaned == "" {
		return Result{}, ErrEmptyCompletion
	}
	if isSentinel(cleaned) {
		return Result{SQL: Sentinel, Unanswerable: true}, nil
	}
	if looksLikeQuery(cleaned) {
		return Result{SQL: cleaned}, nil
	}
	// A reply that explains itself and ends with the sentinel is still a refusal.
	lines := strings.Split(cleaned, "\n")
	if isSentinel(lines[len(lines)-1]) {
		return Result{SQL: Sentinel, Unanswerable: true}, nil
	}
	return Result{}, ErrNotSQL
}

func isSentinel(value string) bool {
	trimmed := strings.Trim(strings.TrimSpace(value), "`'\".;")
	return strings.EqualFold(trimmed, Sentinel)
}

func looksLikeQuery(value string) bool {
	value = strings.TrimSpace(value)
	for strings.HasPrefix(value, "--") {
		_, rest, _ := strings.Cut(value, "\n")
		value = strings.TrimSpace(rest)
	}
	upper := strings.ToUpper(strings.TrimLeft(value, " \t\r\n("))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") || strings.HasPrefix(upper, "FROM")
}

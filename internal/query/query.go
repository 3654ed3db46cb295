// Package query executes synthesized SQL against the events dataset and turns
// the engine's answer into a serializable outcome.
package query

import (
	"context"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Engine runs one read-only statement. Implementations must not keep state
// between calls.
type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// OutcomeKind classifies what came back from the engine.
type OutcomeKind string

const (
	OutcomeRows   OutcomeKind = "rows"
	OutcomeNoData OutcomeKind = "no_data"
	OutcomeError  OutcomeKind = "error"
)

// Outcome is the executor's answer for one statement. Exactly one of Rows
// (OutcomeRows), MaxAvailableDate (OutcomeNoData, may be nil) or Error
// (OutcomeError) is meaningful.
type Outcome struct {
	Kind             OutcomeKind
	Columns          []string
	Rows             [][]any
	MaxAvailableDate *time.Time
	Error            string
	Truncated        bool
	ExecutedSQL      string
	Duration         time.Duration
}

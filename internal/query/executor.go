package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/observability"
)

type ExecutorConfig struct {
	LogicalTable string
	Locator      string
	DateColumn   string
	RowLimit     int
	Logger       *slog.Logger
}

// Executor rewrites the logical table to the configured locator, runs the
// statement and classifies the result. It never returns a Go error from
// Execute; failures become OutcomeError.
type Executor struct {
	engine     Engine
	logical    string
	locator    string
	dateColumn string
	rowLimit   int
	logger     *slog.Logger
}

func NewExecutor(engine Engine, cfg ExecutorConfig) (*Executor, error) {
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if strings.TrimSpace(cfg.LogicalTable) == "" {
		return nil, fmt.Errorf("logical table name is required")
	}
	if strings.TrimSpace(cfg.Locator) == "" {
		return nil, fmt.Errorf("dataset locator is required")
	}
	if HasTableReference(cfg.Locator, cfg.LogicalTable) {
		return nil, fmt.Errorf("dataset locator %q must not reference logical table %q", cfg.Locator, cfg.LogicalTable)
	}
	if cfg.RowLimit < 0 {
		return nil, fmt.Errorf("row limit must be >= 0")
	}
	dateColumn := cfg.DateColumn
	if dateColumn == "" {
		dateColumn = "event_date"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		engine:     engine,
		logical:    cfg.LogicalTable,
		locator:    cfg.Locator,
		dateColumn: dateColumn,
		rowLimit:   cfg.RowLimit,
		logger:     logger,
	}, nil
}

func (e *Executor) Locator() string {
	return e.locator
}

// Execute runs sqlText. An empty result becomes OutcomeNoData carrying the
// latest date in the dataset.
func (e *Executor) Execute(ctx context.Context, sqlText string) Outcome {
	rewritten := RewriteTable(sqlText, e.logical, e.locator)

	request := Request{SQL: rewritten}
	if e.rowLimit > 0 {
		request.RowLimit = e.rowLimit + 1
	}
	start := time.Now()
	result, err := e.engine.Execute(ctx, request)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.WarnContext(ctx, "query execution failed",
			append(observability.LogAttrs(ctx), slog.Any("error", err))...)
		return Outcome{Kind: OutcomeError, Error: err.Error(), ExecutedSQL: rewritten, Duration: elapsed}
	}

	if len(result.Rows) == 0 {
		maxDate, err := e.MaxAvailableDate(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "max available date lookup failed",
				append(observability.LogAttrs(ctx), slog.Any("error", err))...)
		}
		return Outcome{
			Kind:             OutcomeNoData,
			Columns:          result.Columns,
			MaxAvailableDate: maxDate,
			ExecutedSQL:      rewritten,
			Duration:         elapsed,
		}
	}

	rows := result.Rows
	truncated := false
	if e.rowLimit > 0 && len(rows) > e.rowLimit {
		rows = rows[:e.rowLimit]
		truncated = true
	}
	return Outcome{
		Kind:        OutcomeRows,
		Columns:     result.Columns,
		Rows:        rows,
		Truncated:   truncated,
		ExecutedSQL: rewritten,
		Duration:    elapsed,
	}
}

// MaxAvailableDate returns the latest event date, or nil when the dataset is
// empty.
func (e *Executor) MaxAvailableDate(ctx context.Context) (*time.Time, error) {
	result, err := e.engine.Execute(ctx, Request{
		SQL: fmt.Sprintf("SELECT MAX(%s) AS max_date FROM %s", e.dateColumn, e.locator),
	})
	if err != nil {
		return nil, fmt.Errorf("query max available date: %w", err)
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 || result.Rows[0][0] == nil {
		return nil, nil
	}
	return parseDateValue(result.Rows[0][0])
}

// Ping checks that the dataset can be read.
func (e *Executor) Ping(ctx context.Context) error {
	_, err := e.engine.Execute(ctx, Request{SQL: "SELECT 1 AS ok FROM " + e.locator, RowLimit: 1})
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	return nil
}

func parseDateValue(value any) (*time.Time, error) {
	switch typed := value.(type) {
	case time.Time:
		d := truncateToDate(typed)
		return &d, nil
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
			if parsed, err := time.Parse(layout, typed); err == nil {
				d := truncateToDate(parsed)
				return &d, nil
			}
		}
		return nil, fmt.Errorf("unrecognized date value %q", typed)
	default:
		return nil, fmt.Errorf("unexpected date value type %T", value)
	}
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

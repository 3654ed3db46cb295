package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/pdnchat/pdnchat/internal/query"
)

type Config struct {
	// AllowedDirectories, when set, disables external access except for
	// these directories (the dataset cache).
	AllowedDirectories []string
	MemoryLimit        string
	Threads            int
}

// Engine opens a fresh in-memory DuckDB database for every statement, so
// nothing a statement does survives into the next one.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	conn, err := db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, statement := range e.setupStatements() {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return query.Result{}, fmt.Errorf("configure duckdb: %w", err)
		}
	}

	// The subquery wrapper only parses for a single query statement.
	wrapped := fmt.Sprintf("SELECT * FROM (\n%s\n) AS q", sqlText)
	if request.RowLimit > 0 {
		wrapped = fmt.Sprintf("%s LIMIT %d", wrapped, request.RowLimit)
	}

	rows, err := conn.QueryContext(ctx, wrapped)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) setupStatements() []string {
	var statements []string
	if e.cfg.Threads > 0 {
		statements = append(statements, fmt.Sprintf("SET threads = %d", e.cfg.Threads))
	}
	if strings.TrimSpace(e.cfg.MemoryLimit) != "" {
		statements = append(statements, fmt.Sprintf("SET memory_limit = %s", quoteString(e.cfg.MemoryLimit)))
	}
	if len(e.cfg.AllowedDirectories) > 0 {
		statements = append(statements,
			fmt.Sprintf("SET allowed_directories = %s", quoteStringArray(e.cfg.AllowedDirectories)),
			"SET enable_external_access = false",
			"SET lock_configuration = true",
		)
	}
	return statements
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		normalized[i] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return formatTime(typed)
	case *big.Int:
		if typed == nil {
			return nil
		}
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case duckdb.Decimal:
		return typed.Float64()
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %d us", typed.Months, typed.Days, typed.Micros)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case int:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		if typed <= math.MaxInt64 {
			return int64(typed)
		}
		return fmt.Sprintf("%d", typed)
	case float32:
		return float64(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = normalizeValue(typed[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	default:
		return typed
	}
}

// formatTime renders DATE as YYYY-MM-DD, TIME as HH:MM:SS and TIMESTAMP as
// RFC 3339.
func formatTime(t time.Time) string {
	if t.Year() == 1 && t.Month() == time.January && t.Day() == 1 {
		return t.Format("15:04:05")
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, quoteString(value))
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

package compose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdnchat/pdnchat/internal/query"
)

const locationColumn = "blood_donation_location"

// Field is one display-ready cell.
type Field struct {
	Name  string
	Value string
}

// DisplayRow is a row after presentation rules; column order is preserved and
// a map_link field follows the venue when one is present.
type DisplayRow []Field

// DisplayRows applies the presentation rules to a copy of the outcome rows.
// The outcome itself is never modified.
func DisplayRows(outcome query.Outcome) []DisplayRow {
	out := make([]DisplayRow, 0, len(outcome.Rows))
	for _, row := range outcome.Rows {
		display := make(DisplayRow, 0, len(outcome.Columns)+1)
		for i, column := range outcome.Columns {
			var value any
			if i < len(row) {
				value = row[i]
			}
			text := presentValue(column, value)
			display = append(display, Field{Name: column, Value: text})
			if column == locationColumn && text != "" {
				display = append(display, Field{Name: "map_link", Value: MapsLink(text)})
			}
		}
		out = append(out, display)
	}
	return out
}

func (r DisplayRow) Get(name string) (string, bool) {
	for _, field := range r {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

func (r DisplayRow) String() string {
	parts := make([]string, 0, len(r))
	for _, field := range r {
		parts = append(parts, field.Name+": "+field.Value)
	}
	return strings.Join(parts, "; ")
}

func presentValue(column string, value any) string {
	text := stringify(value)
	lower := strings.ToLower(column)
	switch {
	case strings.Contains(lower, "date"):
		return FormatDateValue(text)
	case strings.Contains(lower, "time"):
		return FormatClock(text)
	}
	if _, ok := value.(string); ok {
		return FormatDateValue(text)
	}
	return text
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case int64:
		return GroupDigits(typed)
	case int:
		return GroupDigits(int64(typed))
	case float64:
		if typed == float64(int64(typed)) && typed < 1e15 && typed > -1e15 {
			return GroupDigits(int64(typed))
		}
		return strconv.FormatFloat(typed, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

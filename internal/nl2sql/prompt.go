package nl2sql

import (
	"fmt"
	"strings"

	"github.com/pdnchat/pdnchat/internal/calendar"
	"github.com/pdnchat/pdnchat/internal/history"
)

// SystemPrompt renders the fixed instructions for schema s.
func SystemPrompt(s Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a DuckDB SQL expert answering questions about blood donation events in Malaysia (source: pdn.gov.my).\n")
	fmt.Fprintf(&b, "Schema version: %s\n\n", s.Version)

	b.WriteString("## Table\n")
	fmt.Fprintf(&b, "Use exactly `%s` as the table name, without quotes or backticks.\n", s.Table)
	fmt.Fprintf(&b, "Correct: FROM %s AS e\n", s.Table)
	b.WriteString("Each row is one event at one location on one date. Rows sharing a title, URL and date are still separate events; never deduplicate them.\n\n")

	b.WriteString("## Columns (lower snake_case, no quotes needed)\n")
	for _, column := range s.Columns {
		fmt.Fprintf(&b, "- %s %s: %s\n", column.Name, column.Type, column.Description)
	}

	b.WriteString("\n## Rules\n")
	b.WriteString("1. Return exactly one read-only SELECT statement (WITH is allowed when required).\n")
	fmt.Fprintf(&b, "2. Never use %s.\n", strings.Join(s.Forbidden, ", "))
	b.WriteString("3. All text values are upper case. Match text with ILIKE and % wildcards, e.g. blood_donation_location ILIKE '%bangi%'.\n")
	b.WriteString("4. event_date is a DATE. Compare it with DATE literals taken from the date context in the user message, e.g. event_date BETWEEN DATE '2025-12-20' AND DATE '2025-12-27'. Do not use CURRENT_DATE, NOW() or event_day for date logic.\n")
	b.WriteString("5. Questions may be English, Malay or mixed. Interpret both languages.\n")
	b.WriteString("6. Listing questions select event_date, event_title, organizer, blood_donation_location, start_time, end_time and ORDER BY event_date.\n")
	b.WriteString("7. Counting uses COUNT(*) AS event_count. Totals use SUM(blood_donor_target) AS total_target.\n")
	b.WriteString("8. Use the conversation so far to resolve references such as \"there\", \"that day\" or \"the same organizer\".\n")
	fmt.Fprintf(&b, "9. If the data cannot answer the question, reply with exactly %s.\n", Sentinel)
	b.WriteString("10. Output only the SQL text: no markdown, no code fences, no comments, no explanation.\n")

	b.WriteString("\n## Examples\n")
	fmt.Fprintf(&b, "Q: How many blood donation events on 12 April 2025?\nA: SELECT COUNT(*) AS event_count FROM %s WHERE event_date = DATE '2025-04-12'\n", s.Table)
	fmt.Fprintf(&b, "Q: Total donor target for KEMPEN DERMA DARAH BERGERAK?\nA: SELECT SUM(blood_donor_target) AS total_target FROM %s WHERE event_title ILIKE '%%KEMPEN DERMA DARAH BERGERAK%%'\n", s.Table)
	fmt.Fprintf(&b, "Q: Which organizer has the most events?\nA: SELECT organizer, COUNT(*) AS event_count FROM %s GROUP BY organizer ORDER BY event_count DESC LIMIT 10\n", s.Table)
	fmt.Fprintf(&b, "Q: What's the weather tomorrow?\nA: %s\n", Sentinel)
	return b.String()
}

// UserPrompt renders the per-turn message: date context, the last
// contextTurns turns and the question. Identical inputs give identical text.
func UserPrompt(req Request, contextTurns int) string {
	var b strings.Builder
	today := calendar.Day(req.CurrentDate)

	b.WriteString("## Date context\n")
	fmt.Fprintf(&b, "Today is %s (%s).\n", today.Format(calendar.DateLayout), today.Format("Monday, 2 January 2006"))
	for _, period := range calendar.Periods(today) {
		fmt.Fprintf(&b, "- %s: %s\n", strings.Join(period.Phrases, " / "), literalRange(period.Range))
	}
	b.WriteString("- upcoming: event_date >= DATE '" + today.Format(calendar.DateLayout) + "'\n")

	turns := history.Tail(req.Context, contextTurns)
	if len(turns) > 0 {
		b.WriteString("\n## Conversation so far (oldest first)\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "User: %s\n", oneLine(turn.Question))
			if turn.SQL != "" {
				fmt.Fprintf(&b, "SQL: %s\n", oneLine(turn.SQL))
			}
			fmt.Fprintf(&b, "Assistant: %s\n", oneLine(turn.Answer))
		}
	}

	b.WriteString("\n## Question\n")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n")
	return b.String()
}

func literalRange(r calendar.Range) string {
	start := r.Start.Format(calendar.DateLayout)
	if r.Start.Equal(r.End) {
		return "event_date = DATE '" + start + "'"
	}
	return "event_date BETWEEN DATE '" + start + "' AND DATE '" + r.End.Format(calendar.DateLayout) + "'"
}

func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

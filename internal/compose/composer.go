// Package compose turns a query outcome into the friendly reply shown to the
// person asking. It always produces text: when the reasoning service fails or
// misbehaves a deterministic template answers instead.
package compose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/calendar"
	"github.com/pdnchat/pdnchat/internal/history"
	"github.com/pdnchat/pdnchat/internal/llm"
	"github.com/pdnchat/pdnchat/internal/observability"
	"github.com/pdnchat/pdnchat/internal/query"
)

const (
	defaultPromptRows   = 30
	defaultContextTurns = 3
)

type Config struct {
	Completer       llm.Completer
	DefaultLanguage Language
	// PromptRows caps how many display rows reach the reasoning service.
	PromptRows   int
	ContextTurns int
	Logger       *slog.Logger
}

type Input struct {
	Question    string
	SQL         string
	Outcome     query.Outcome
	Context     []history.Turn
	CurrentDate time.Time
}

type Composer struct {
	completer    llm.Completer
	language     Language
	promptRows   int
	contextTurns int
	logger       *slog.Logger
}

func NewComposer(cfg Config) (*Composer, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = English
	}
	promptRows := cfg.PromptRows
	if promptRows <= 0 {
		promptRows = defaultPromptRows
	}
	contextTurns := cfg.ContextTurns
	if contextTurns <= 0 {
		contextTurns = defaultContextTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Composer{
		completer:    cfg.Completer,
		language:     lang,
		promptRows:   promptRows,
		contextTurns: contextTurns,
		logger:       logger,
	}, nil
}

// Language returns the reply language for a question.
func (c *Composer) Language(question string) Language {
	return DetectLanguage(question, c.language)
}

// ChooseNoDataVariant reports "not yet published" when the question refers to
// a date after the newest event in the dataset.
func ChooseNoDataVariant(question string, maxDate *time.Time, today time.Time) NoDataVariant {
	latest, ok := calendar.LatestReferenced(question, today)
	if !ok {
		return VariantNoMatch
	}
	if maxDate == nil || latest.After(calendar.Day(*maxDate)) {
		return VariantNotYetPublished
	}
	return VariantNoMatch
}

// Compose never returns an empty string.
func (c *Composer) Compose(ctx context.Context, in Input) string {
	lang := c.Language(in.Question)
	instruction, fallback := c.plan(in, lang)

	userPrompt := c.userPrompt(in, lang, instruction)
	raw, err := c.completer.Complete(ctx, systemPrompt, userPrompt)
	observability.ObserveLLMRequest("compose", err)

	answer := unwrapAnswer(raw)
	switch {
	case err != nil:
		c.logger.Warn("compose call failed, using template", append(observability.LogAttrs(ctx), "error", err)...)
		answer = fallback
	case strings.TrimSpace(answer) == "":
		c.logger.Warn("compose call returned no text, using template", observability.LogAttrs(ctx)...)
		answer = fallback
	case leaksInternals(answer, in):
		c.logger.Warn("compose answer exposed internals, using template", observability.LogAttrs(ctx)...)
		answer = fallback
	}
	return CapEmoji(strings.TrimSpace(answer), MaxEmoji)
}

// unwrapAnswer removes a fence around the whole reply. Fences inside a
// formatted answer are left in place.
func unwrapAnswer(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		return llm.StripCodeFence(trimmed)
	}
	return trimmed
}

// plan returns the outcome-specific instruction for the reasoning service and
// the template used when it cannot be trusted.
func (c *Composer) plan(in Input, lang Language) (string, string) {
	switch in.Outcome.Kind {
	case query.OutcomeRows:
		rows := DisplayRows(in.Outcome)
		if len(rows) == 1 && len(rows[0]) == 1 {
			return "The result is a single value. State it in the first sentence, then suggest one related action.", rowsAnswer(lang, in.Outcome, rows)
		}
		return "List the events in a clean, scannable format: date in bold, venue as the given markdown map link, and the time range. Start with a one-line summary of how many were found.", rowsAnswer(lang, in.Outcome, rows)
	case query.OutcomeNoData:
		if ChooseNoDataVariant(in.Question, in.Outcome.MaxAvailableDate, in.CurrentDate) == VariantNotYetPublished {
			latest := "unknown"
			if in.Outcome.MaxAvailableDate != nil {
				latest = FormatDate(*in.Outcome.MaxAvailableDate)
			}
			return fmt.Sprintf("No events matched because the schedule for the requested dates has not been published yet. The latest published event is on %s. Say the events are not available yet and invite them to check back closer to the date.", latest),
				notYetPublishedAnswer(lang, in.Outcome.MaxAvailableDate)
		}
		return "No events matched. Be empathetic and offer 2-3 alternatives: nearby areas, different dates, or permanent donation centres that open daily.", noMatchAnswer(lang)
	default:
		return "The lookup failed. Apologise briefly without giving any technical reason and suggest rephrasing the question with a place or a date.", executionErrorAnswer(lang)
	}
}

func (c *Composer) userPrompt(in Input, lang Language, instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reply in %s.\n", lang.Name())
	fmt.Fprintf(&b, "Today is %s.\n\n", FormatDate(calendar.Day(in.CurrentDate)))

	if turns := history.Tail(in.Context, c.contextTurns); len(turns) > 0 {
		b.WriteString("Earlier in this conversation:\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", oneLine(turn.Question), oneLine(turn.Answer))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(in.Question))
	fmt.Fprintf(&b, "Task: %s\n", instruction)

	if in.Outcome.Kind == query.OutcomeRows {
		rows := DisplayRows(in.Outcome)
		shown := rows
		if len(shown) > c.promptRows {
			shown = shown[:c.promptRows]
		}
		fmt.Fprintf(&b, "\nResults (%d row%s", len(rows), plural(len(rows)))
		if len(shown) < len(rows) || in.Outcome.Truncated {
			fmt.Fprintf(&b, ", showing the first %d; more exist", len(shown))
		}
		b.WriteString("):\n")
		for i, row := range shown {
			fmt.Fprintf(&b, "%d. %s\n", i+1, row.String())
		}
	}
	return b.String()
}

func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

var (
	internalsPattern = regexp.MustCompile(`(?i)\b(sql|duckdb|database|pangkalan data|read_csv|read_parquet)\b|\b(binder|parser|catalog|conversion|syntax|io|invalid input) error\b`)
	statementPattern = regexp.MustCompile(`\bSELECT\b[^\n]{0,200}\bFROM\b`)
)

// leaksInternals reports answers that echo the statement, the engine error or
// engine vocabulary.
func leaksInternals(answer string, in Input) bool {
	if internalsPattern.MatchString(answer) || statementPattern.MatchString(answer) {
		return true
	}
	if sql := strings.TrimSpace(in.SQL); sql != "" && strings.Contains(answer, sql) {
		return true
	}
	if msg := strings.TrimSpace(in.Outcome.Error); msg != "" {
		if strings.Contains(answer, msg) {
			return true
		}
		firstLine, _, _ := strings.Cut(msg, "\n")
		if len(firstLine) >= 12 && strings.Contains(answer, firstLine) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a friendly customer support assistant for blood donation services in Malaysia. Help people find blood donation events quickly.

Principles:
- Be brief: short sentences, paragraphs of two or three sentences.
- Be clear: plain language, no technical terms. Never mention SQL, queries, databases or errors.
- Be helpful: end with a helpful question or suggestion.
- Be warm: encourage blood donation.

Formatting:
- Bullet points for lists, bold for dates and key numbers.
- Dates and times are already formatted; copy them as given.
- Venues: show the short venue name as a markdown link using the map_link value.
- At most three emoji, chosen from 🩸 💪 🎉 📍 😔.
- Reply in the language requested in the message.

Examples of tone:
- "There are **5 blood donation events** happening today! 🎉 Would you like to see the locations?"
- "I couldn't find any events in Putrajaya next week. 😔 Here are your options: ..."
`

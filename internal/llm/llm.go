// Package llm is the boundary to the text-in/text-out reasoning service.
package llm

import (
	"context"
	"strings"
)

// Completer sends one system prompt and one user prompt and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// StripCodeFence returns the body of the first markdown code fence in value,
// wherever it appears, without its language tag. Text without a fence is
// returned trimmed.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	open := strings.Index(trimmed, "```")
	if open < 0 {
		return trimmed
	}
	body := trimmed[open+3:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}

	if line, rest, ok := strings.Cut(body, "\n"); ok {
		// The opening line is a tag only when content follows it.
		if tag := strings.TrimSpace(line); tag == "" || (isFenceTag(tag) && strings.TrimSpace(rest) != "") {
			body = rest
		}
	} else if tag, rest, ok := strings.Cut(body, " "); ok && inlineFenceTags[strings.ToLower(tag)] {
		body = rest
	}
	return strings.TrimSpace(body)
}

// inlineFenceTags are recognised on single-line fences, where any other
// leading word is part of the content.
var inlineFenceTags = map[string]bool{"sql": true, "sqlite": true, "duckdb": true, "postgresql": true, "text": true, "plaintext": true}

// isFenceTag accepts one word such as sql, sqlite or c++.
func isFenceTag(tag string) bool {
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '+', r == '-', r == '.', r == '#':
		default:
			return false
		}
	}
	return tag != ""
}

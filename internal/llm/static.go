package llm

import (
	"context"
	"sync"
)

// Call records one Complete invocation.
type Call struct {
	SystemPrompt string
	UserPrompt   string
}

// StaticCompleter replies from a fixed queue of responses and records every
// call. When the queue is exhausted the Fallback function, if any, decides the
// reply.
type StaticCompleter struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
	Fallback  func(systemPrompt, userPrompt string) (string, error)
}

// Response is a queued reply or error.
type Response struct {
	Text string
	Err  error
}

func NewStaticCompleter(responses ...Response) *StaticCompleter {
	return &StaticCompleter{responses: responses}
}

func (s *StaticCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if len(s.responses) > 0 {
		next := s.responses[0]
		s.responses = s.responses[1:]
		s.mu.Unlock()
		return next.Text, next.Err
	}
	fallback := s.Fallback
	s.mu.Unlock()
	if fallback != nil {
		return fallback(systemPrompt, userPrompt)
	}
	return "", nil
}

// Calls returns a copy of the recorded invocations.
func (s *StaticCompleter) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

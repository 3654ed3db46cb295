package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdnchat/pdnchat/internal/chat"
	"github.com/pdnchat/pdnchat/internal/compose"
	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/dataset"
	"github.com/pdnchat/pdnchat/internal/history"
	"github.com/pdnchat/pdnchat/internal/llm"
	"github.com/pdnchat/pdnchat/internal/nl2sql"
	"github.com/pdnchat/pdnchat/internal/query"
)

type chatFunc func(ctx context.Context, in chat.AskInput) (chat.TurnResult, error)

func (f chatFunc) Ask(ctx context.Context, in chat.AskInput) (chat.TurnResult, error) {
	return f(ctx, in)
}

func TestChatEndpointMapsErrors(t *testing.T) {
	cfg, err := config.Load("pdnchat-api", mapLookup(map[string]string{"PDNCHAT_CHAT_MAX_QUESTION_LENGTH": "20"}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	tests := []struct {
		name      string
		body      string
		askErr    error
		wantCode  int
		wantError string
	}{
		{name: "empty question", body: `{"question":""}`, askErr: chat.ErrEmptyQuestion, wantCode: http.StatusBadRequest, wantError: "QUESTION_REQUIRED"},
		{name: "too long", body: `{"question":"a very long question indeed"}`, askErr: fmt.Errorf("%w: 20 characters allowed", chat.ErrQuestionTooLong), wantCode: http.StatusBadRequest, wantError: "QUESTION_TOO_LONG"},
		{name: "history down", body: `{"question":"hi"}`, askErr: errors.New("append turn 0: dial tcp: refused"), wantCode: http.StatusServiceUnavailable, wantError: "HISTORY_UNAVAILABLE"},
		{name: "unknown field", body: `{"question":"hi","sql":"DROP TABLE x"}`, wantCode: http.StatusBadRequest, wantError: "INVALID_JSON"},
		{name: "not json", body: `question=hi`, wantCode: http.StatusBadRequest, wantError: "INVALID_JSON"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(cfg, Dependencies{
				Chat: chatFunc(func(context.Context, chat.AskInput) (chat.TurnResult, error) {
					return chat.TurnResult{}, tc.askErr
				}),
			})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(tc.body)))
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["error_code"] != tc.wantError {
				t.Fatalf("error_code = %v", body["error_code"])
			}
			if strings.Contains(rr.Body.String(), "dial tcp") {
				t.Fatalf("history details leaked: %s", rr.Body.String())
			}
		})
	}
}

func TestChatEndpointNotConfigured(t *testing.T) {
	cfg, err := config.Load("pdnchat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"question":"hi"}`)))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

type stubEngine struct {
	result query.Result
	err    error
}

func (s stubEngine) Execute(context.Context, query.Request) (query.Result, error) {
	return s.result, s.err
}

func newChatStack(t *testing.T, synthReply, composeReply string, engine query.Engine) (*chat.Service, *history.MemoryStore) {
	t.Helper()
	synthLLM := llm.NewStaticCompleter()
	synthLLM.Fallback = func(string, string) (string, error) { return synthReply, nil }
	composeLLM := llm.NewStaticCompleter()
	composeLLM.Fallback = func(string, string) (string, error) { return composeReply, nil }

	synthesizer, err := nl2sql.NewSynthesizer(nl2sql.Config{Completer: synthLLM})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	executor, err := query.NewExecutor(engine, query.ExecutorConfig{
		LogicalTable: dataset.LogicalTable,
		Locator:      "read_csv('/data/events.csv')",
	})
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	composer, err := compose.NewComposer(compose.Config{Completer: composeLLM})
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	store := history.NewMemoryStore()
	ids := 0
	return &chat.Service{
		Synthesizer: synthesizer,
		Executor:    executor,
		Composer:    composer,
		History:     store,
		Clock:       func() time.Time { return time.Date(2025, 12, 17, 3, 0, 0, 0, time.UTC) },
		NewID: func() string {
			ids++
			return fmt.Sprintf("conv-%d", ids)
		},
	}, store
}

func TestChatAndConversationEndpoints(t *testing.T) {
	cfg, err := config.Load("pdnchat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	service, store := newChatStack(t,
		"SELECT COUNT(*) AS event_count FROM blood_donation_events.csv WHERE event_date = DATE '2025-12-17'",
		"There are **5 blood donation events** today! 🎉",
		stubEngine{result: query.Result{Columns: []string{"event_count"}, Rows: [][]any{{int64(5)}}}},
	)
	h := NewHandler(cfg, Dependencies{Chat: service, History: store})

	post := func(body string) chatResponse {
		t.Helper()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		var response chatResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
			t.Fatalf("json decode failed: %v", err)
		}
		return response
	}

	first := post(`{"question":"How many events today?"}`)
	if first.ConversationID != "conv-1" || first.Answer != "There are **5 blood donation events** today! 🎉" {
		t.Fatalf("first = %+v", first)
	}
	if string(first.QueryResult) == "" || !strings.Contains(string(first.QueryResult), `"event_count":5`) {
		t.Fatalf("query_result = %s", first.QueryResult)
	}
	if first.Turn.Outcome != history.OutcomeAnswered || first.Turn.Index != 0 {
		t.Fatalf("turn = %+v", first.Turn)
	}

	second := post(`{"question":"And tomorrow?","conversation_id":"conv-1"}`)
	if second.ConversationID != "conv-1" || second.Turn.Index != 1 || len(second.Messages) != 4 {
		t.Fatalf("second = %+v", second)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var conversation conversationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &conversation); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(conversation.Turns) != 2 || conversation.Turns[0].Question != "How many events today?" || conversation.Turns[1].Question != "And tomorrow?" {
		t.Fatalf("turns = %+v", conversation.Turns)
	}
	var result map[string]any
	if err := json.Unmarshal(conversation.Turns[0].Result, &result); err != nil {
		t.Fatalf("stored result is not embedded json: %v", err)
	}
	if result["kind"] != "rows" {
		t.Fatalf("result = %#v", result)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1?limit=1", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &conversation); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(conversation.Turns) != 1 || conversation.Turns[0].Index != 1 {
		t.Fatalf("limited turns = %+v", conversation.Turns)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1?limit=zero", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/conversations/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown conversation status = %d", rr.Code)
	}
}

func TestChatEndpointHidesEngineErrorFromAnswer(t *testing.T) {
	cfg, err := config.Load("pdnchat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	service, _ := newChatStack(t,
		"SELECT venue FROM blood_donation_events.csv",
		"Binder Error: Referenced column venue not found",
		stubEngine{err: errors.New("Binder Error: Referenced column venue not found")},
	)
	h := NewHandler(cfg, Dependencies{Chat: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"question":"Where is the venue in Bangi?"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var response chatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if strings.Contains(response.Answer, "Binder") {
		t.Fatalf("answer leaks engine error: %q", response.Answer)
	}
	if response.Error != "Binder Error: Referenced column venue not found" {
		t.Fatalf("error = %q", response.Error)
	}
	if response.Turn.Outcome != history.OutcomeExecutionError {
		t.Fatalf("outcome = %q", response.Turn.Outcome)
	}
}

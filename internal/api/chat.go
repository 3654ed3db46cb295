package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/chat"
	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/history"
)

const maxChatBodyBytes = 64 << 10

type chatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

type turnView struct {
	Index     int             `json:"index"`
	Question  string          `json:"question"`
	SQL       string          `json:"sql"`
	Result    json.RawMessage `json:"result,omitempty"`
	Answer    string          `json:"answer"`
	Error     string          `json:"error,omitempty"`
	Outcome   history.Outcome `json:"outcome"`
	CreatedAt time.Time       `json:"created_at"`
}

type chatResponse struct {
	ConversationID string            `json:"conversation_id"`
	Answer         string            `json:"answer"`
	SQL            string            `json:"sql,omitempty"`
	QueryResult    json.RawMessage   `json:"query_result,omitempty"`
	Error          string            `json:"error,omitempty"`
	Messages       []history.Message `json:"messages"`
	Turn           turnView          `json:"turn"`
}

type conversationResponse struct {
	ConversationID string            `json:"conversation_id"`
	Turns          []turnView        `json:"turns"`
	Messages       []history.Message `json:"messages"`
}

func handleChat(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Chat.Ask(r.Context(), chat.AskInput{
		Question:       request.Question,
		ConversationID: request.ConversationID,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	case errors.Is(err, chat.ErrQuestionTooLong):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_TOO_LONG", err.Error(), false, map[string]any{
			"max_length": cfg.Chat.MaxQuestionLength,
		})
		return
	case err != nil:
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "chat turn failed", "error", err)
		}
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "conversation history is unavailable", true, nil)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: result.ConversationID,
		Answer:         result.FinalAnswer,
		SQL:            result.SQL,
		QueryResult:    rawPayload(result.QueryResult),
		Error:          result.Error,
		Messages:       result.Messages,
		Turn:           newTurnView(result.Turn),
	})
}

func handleConversation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "conversation history is not configured", false, nil)
		return
	}
	conversationID := strings.TrimSpace(r.PathValue("id"))
	if conversationID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONVERSATION_ID_REQUIRED", "conversation id is required", false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	var (
		turns []history.Turn
		err   error
	)
	if limit > 0 {
		turns, err = deps.History.Recent(r.Context(), conversationID, limit)
	} else {
		turns, err = deps.History.List(r.Context(), conversationID)
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "conversation history is unavailable", true, map[string]any{"details": err.Error()})
		return
	}
	if len(turns) == 0 {
		writeError(r.Context(), w, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "conversation was not found", false, map[string]any{"conversation_id": conversationID})
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, newTurnView(turn))
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		ConversationID: conversationID,
		Turns:          views,
		Messages:       history.Messages(turns),
	})
}

func newTurnView(turn history.Turn) turnView {
	return turnView{
		Index:     turn.Index,
		Question:  turn.Question,
		SQL:       turn.SQL,
		Result:    rawPayload(turn.Result),
		Answer:    turn.Answer,
		Error:     turn.Error,
		Outcome:   turn.Outcome,
		CreatedAt: turn.CreatedAt,
	}
}

// rawPayload embeds a stored outcome payload as JSON rather than a string.
func rawPayload(payload string) json.RawMessage {
	if payload == "" || !json.Valid([]byte(payload)) {
		return nil
	}
	return json.RawMessage(payload)
}

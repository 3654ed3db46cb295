package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	ctx = ContextWithConversationID(ctx, "conv-1")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
	if got := ConversationIDFromContext(ctx); got != "conv-1" {
		t.Fatalf("ConversationIDFromContext() = %q", got)
	}
	if got := len(LogAttrs(ctx)); got != 2 {
		t.Fatalf("len(LogAttrs()) = %d", got)
	}
	if got := len(LogAttrs(context.Background())); got != 0 {
		t.Fatalf("len(LogAttrs(empty)) = %d", got)
	}
}

func TestLoggingMiddlewareRaisesServerErrorsToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := LoggingMiddleware(logger)(mux)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json decode failed: %v (%s)", err, buf.String())
	}
	if line["level"] != "WARN" || line["route"] != "POST /v1/chat" || line["status"] != float64(503) {
		t.Fatalf("log line = %#v", line)
	}
}

func TestLoggingMiddlewareLogsSuccessAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if !strings.Contains(buf.String(), `"level":"INFO"`) || !strings.Contains(buf.String(), `"route":"unmatched"`) {
		t.Fatalf("log line = %s", buf.String())
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := MetricsMiddleware(mux)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "GET /v1/conversations/{id}", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/conversations/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "GET /v1/conversations/{id}", "200"))
	if after-before != 1 {
		t.Fatalf("route counter delta = %v, want 1", after-before)
	}

	before = testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	after = testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	if after-before != 1 {
		t.Fatalf("unmatched counter delta = %v, want 1", after-before)
	}
}

func TestDomainMetrics(t *testing.T) {
	before := testutil.ToFloat64(turnsTotal.WithLabelValues("answered"))
	ObserveTurn("answered")
	if got := testutil.ToFloat64(turnsTotal.WithLabelValues("answered")) - before; got != 1 {
		t.Fatalf("turns delta = %v", got)
	}

	beforeErr := testutil.ToFloat64(llmRequestsTotal.WithLabelValues("synthesize", "error"))
	ObserveLLMRequest("synthesize", errors.New("boom"))
	if got := testutil.ToFloat64(llmRequestsTotal.WithLabelValues("synthesize", "error")) - beforeErr; got != 1 {
		t.Fatalf("llm error delta = %v", got)
	}

	at := time.Date(2025, 12, 20, 8, 0, 0, 0, time.UTC)
	ObserveDatasetRefresh(nil, at)
	if got := testutil.ToFloat64(datasetRefreshedAt); got != float64(at.Unix()) {
		t.Fatalf("refresh timestamp = %v", got)
	}
	ObserveStage("execute", 20*time.Millisecond)
}

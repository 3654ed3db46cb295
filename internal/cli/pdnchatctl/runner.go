package pdnchatctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type chatResponse struct {
	ConversationID string          `json:"conversation_id"`
	Answer         string          `json:"answer"`
	SQL            string          `json:"sql"`
	QueryResult    json.RawMessage `json:"query_result"`
	Error          string          `json:"error"`
}

type examplesResponse struct {
	Greeting string   `json:"greeting"`
	Examples []string `json:"examples"`
}

type client struct {
	http    *http.Client
	baseURL string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("pdnchatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "pdnchat API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	httpClient := defaults.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *timeout}
	}
	c := client{http: httpClient, baseURL: strings.TrimRight(*baseURL, "/")}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	switch command {
	case "health":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/health", nil)
	case "ready":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/ready", nil)
	case "examples":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/examples", nil)
	case "history":
		return c.runHistory(ctx, rest, stdout, stderr)
	case "ask":
		return c.runAsk(ctx, rest, stdout, stderr)
	case "chat":
		stdin := defaults.Stdin
		if stdin == nil {
			stdin = strings.NewReader("")
		}
		return c.runChat(ctx, rest, stdin, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func (c client) runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 0, "only the newest N turns")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "usage: pdnchatctl history [-limit N] <conversation-id>")
		return 2
	}
	path := "/v1/conversations/" + url.PathEscape(fs.Arg(0))
	if *limit > 0 {
		path += "?limit=" + strconv.Itoa(*limit)
	}
	return c.printJSON(ctx, stdout, stderr, http.MethodGet, path, nil)
}

func (c client) runAsk(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conversationID := fs.String("conversation", "", "continue this conversation")
	raw := fs.Bool("json", false, "print the full JSON response")
	showSQL := fs.Bool("show-sql", false, "print the generated SQL")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		_, _ = fmt.Fprintln(stderr, "usage: pdnchatctl ask [-conversation ID] [-json] [-show-sql] <question>")
		return 2
	}

	body, code := c.ask(ctx, stderr, question, *conversationID)
	if code != 0 {
		return code
	}
	if *raw {
		pretty, _ := prettyJSON(body)
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}
	printTurn(stdout, response, *showSQL)
	_, _ = fmt.Fprintf(stderr, "conversation: %s\n", response.ConversationID)
	return 0
}

// runChat reads one question per line until "exit", "quit" or end of input.
func (c client) runChat(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conversationID := fs.String("conversation", "", "continue this conversation")
	showSQL := fs.Bool("show-sql", false, "print the generated SQL")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	greeting := "Ask about blood donation events in Malaysia."
	var examples examplesResponse
	if code, body, err := c.do(ctx, http.MethodGet, "/v1/examples", nil); err == nil && code < 400 {
		if json.Unmarshal(body, &examples) == nil && examples.Greeting != "" {
			greeting = examples.Greeting
		}
	}
	_, _ = fmt.Fprintln(stdout, greeting)
	_, _ = fmt.Fprintln(stdout, `Type "exit" to quit.`)

	current := *conversationID
	scanner := bufio.NewScanner(stdin)
	for {
		_, _ = fmt.Fprint(stdout, "\nYou: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			_, _ = fmt.Fprintln(stdout, "Goodbye!")
			return 0
		}

		body, code := c.ask(ctx, stderr, question, current)
		if code != 0 {
			continue
		}
		var response chatResponse
		if err := json.Unmarshal(body, &response); err != nil {
			_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
			continue
		}
		current = response.ConversationID
		_, _ = fmt.Fprint(stdout, "Assistant: ")
		printTurn(stdout, response, *showSQL)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout)
	return 0
}

func (c client) ask(ctx context.Context, stderr io.Writer, question, conversationID string) ([]byte, int) {
	payload := map[string]string{"question": question}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
		return nil, 1
	}
	code, body, err := c.do(ctx, http.MethodPost, "/v1/chat", encoded)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return nil, 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return nil, 1
	}
	return body, 0
}

func printTurn(w io.Writer, response chatResponse, showSQL bool) {
	_, _ = fmt.Fprintln(w, response.Answer)
	if showSQL && response.SQL != "" {
		_, _ = fmt.Fprintf(w, "\nSQL: %s\n", response.SQL)
	}
}

func (c client) printJSON(ctx context.Context, stdout, stderr io.Writer, method, path string, body []byte) int {
	code, responseBody, err := c.do(ctx, method, path, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func (c client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: pdnchatctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  ask <question>      POST /v1/chat and print the answer")
	_, _ = fmt.Fprintln(w, "  chat                interactive conversation, \"exit\" to quit")
	_, _ = fmt.Fprintln(w, "  history <id>        GET /v1/conversations/{id}")
	_, _ = fmt.Fprintln(w, "  examples            GET /v1/examples")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

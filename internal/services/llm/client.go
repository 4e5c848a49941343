package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:11434/v1/chat/completions"
	defaultTimeout = 120 * time.Second

	defaultRetryMaxAttempts = 4
	defaultRetryBackoffBase = 2 * time.Second
	defaultRetryBackoffMax  = 30 * time.Second

	maxResponseBodyBytes = 1 << 20
	payloadSnippetLimit  = 240
)

// Config carries connection settings for one chat completion endpoint.
// APIKey may be empty for local endpoints that do not authenticate.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Chat roles accepted by OpenAI-compatible endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is a minimal OpenAI-compatible chat completions client with
// retry and backoff for transient upstream failures.
type Client struct {
	cfg              Config
	httpClient       *http.Client
	retryMaxAttempts int
	retryBackoffBase time.Duration
	retryBackoffMax  time.Duration
	sleep            func(time.Duration)
}

// Option customizes client behavior, primarily for tests.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetryMaxAttempts overrides the maximum number of completion attempts.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the exponential backoff base and cap.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBackoffBase = base
		c.retryBackoffMax = maxDelay
	}
}

// WithSleeper replaces the blocking sleep between retries.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient builds a client for the given endpoint. Missing base URL and
// timeout fall back to local Ollama-compatible defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		retryMaxAttempts: defaultRetryMaxAttempts,
		retryBackoffBase: defaultRetryBackoffBase,
		retryBackoffMax:  defaultRetryBackoffMax,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends a free-form chat exchange and returns the assistant text.
// The system prompt may be empty. Used for narration, where the reply is
// prose rather than JSON.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", errors.New("llm completion requires at least one message")
	}

	request := chatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		request.Messages = append(request.Messages, chatMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = RoleUser
		}
		request.Messages = append(request.Messages, chatMessage{Role: role, Content: msg.Content})
	}

	return c.completionContentWithRetry(ctx, request)
}

// CompleteJSON sends an exchange with a JSON response format hint and
// returns the raw payload. Optional history messages sit between the
// system prompt and the final user prompt. Callers decode with
// DecodeLLMJSON.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, history ...Message) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("llm completion requires a user prompt")
	}

	request := chatCompletionRequest{
		Model:          c.cfg.Model,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		request.Messages = append(request.Messages, chatMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, msg := range history {
		role := msg.Role
		if role == "" {
			role = RoleUser
		}
		request.Messages = append(request.Messages, chatMessage{Role: role, Content: msg.Content})
	}
	request.Messages = append(request.Messages, chatMessage{Role: RoleUser, Content: userPrompt})

	return c.completionContentWithRetry(ctx, request)
}

// HealthCheck issues a trivial completion and verifies the endpoint
// returns well-formed JSON.
func (c *Client) HealthCheck(ctx context.Context) error {
	payload, err := c.CompleteJSON(ctx, `Reply with exactly {"ok": true}.`, "ping")
	if err != nil {
		return err
	}

	var probe struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(payload, &probe); err != nil {
		return fmt.Errorf("health check response: %w", err)
	}
	if !probe.OK {
		return errors.New("health check response missing ok=true")
	}
	return nil
}

func (c *Client) validate() error {
	if strings.TrimSpace(c.cfg.Model) == "" {
		return errors.New("llm model is required")
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatToolCall struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatCompletionChoice struct {
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Content      string            `json:"content"`
		ToolCalls    []chatToolCall    `json:"tool_calls"`
		FunctionCall *chatToolFunction `json:"function_call"`
	} `json:"message"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Text string `json:"text"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
}

func (c *Client) completionContentWithRetry(ctx context.Context, request chatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryMaxAttempts; attempt++ {
		content, err := c.sendChatRequestOnce(ctx, request)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retryable := c.retryDelay(err, attempt)
		if !retryable || attempt == c.retryMaxAttempts-1 {
			break
		}
		if sleepErr := c.sleepWithContext(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", lastErr
}

func (c *Client) sendChatRequestOnce(ctx context.Context, request chatCompletionRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			snippet:    summarizePayloadSnippet(string(raw)),
		}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w (response_snippet=%s)", err, summarizePayloadSnippet(string(raw)))
	}

	content := extractCompletionPayload(&decoded)
	if strings.TrimSpace(content) == "" {
		return "", &emptyContentError{snippet: summarizePayloadSnippet(string(raw))}
	}
	return content, nil
}

// extractCompletionPayload pulls assistant text out of the many shapes
// OpenAI-compatible servers produce: message content, streaming deltas,
// legacy text completions, and tool call arguments.
func extractCompletionPayload(resp *chatCompletionResponse) string {
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content
		}
	}
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Delta.Content) != "" {
			return choice.Delta.Content
		}
	}
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Text) != "" {
			return choice.Text
		}
	}
	for _, choice := range resp.Choices {
		for _, call := range choice.Message.ToolCalls {
			if strings.TrimSpace(call.Function.Arguments) != "" {
				return call.Function.Arguments
			}
		}
		if choice.Message.FunctionCall != nil && strings.TrimSpace(choice.Message.FunctionCall.Arguments) != "" {
			return choice.Message.FunctionCall.Arguments
		}
	}
	return ""
}

type httpStatusError struct {
	status     int
	retryAfter time.Duration
	snippet    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request failed with status %d (response_snippet=%s)", e.status, e.snippet)
}

func (e *httpStatusError) retryable() bool {
	switch {
	case e.status == http.StatusRequestTimeout:
		return true
	case e.status == http.StatusTooManyRequests:
		return true
	case e.status >= 500:
		return true
	default:
		return false
	}
}

type emptyContentError struct {
	snippet string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("llm returned empty content (response_snippet=%s)", e.snippet)
}

// retryDelay reports whether the error is worth retrying and how long to
// wait first. Retry-After wins over computed backoff when present.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if !statusErr.retryable() {
			return 0, false
		}
		if statusErr.retryAfter > 0 {
			return capDelay(statusErr.retryAfter, c.retryBackoffMax), true
		}
		return c.backoffDelay(attempt), true
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return c.backoffDelay(attempt), true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.backoffDelay(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBackoffBase <= 0 {
		return 0
	}
	delay := c.retryBackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if c.retryBackoffMax > 0 && delay >= c.retryBackoffMax {
			return c.retryBackoffMax
		}
	}
	return capDelay(delay, c.retryBackoffMax)
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleepWithContext(ctx context.Context, delay time.Duration) error {
	if c.sleep != nil {
		c.sleep(delay)
		return ctx.Err()
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

// DecodeLLMJSON unmarshals a model response into v, tolerating the wrappers
// small local models produce: code fences, leading prose, trailing chatter.
func DecodeLLMJSON(payload string, v any) error {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return errors.New("empty llm payload")
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized != "" && sanitized != trimmed {
		if err := json.Unmarshal([]byte(sanitized), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("decode llm json (payload_snippet=%s)", summarizePayloadSnippet(trimmed))
}

// sanitizeJSONPayload strips code fences and extracts the outermost JSON
// object or array from a prose-wrapped payload.
func sanitizeJSONPayload(payload string) string {
	cleaned := stripCodeFenceBlock(payload)

	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return strings.TrimSpace(cleaned)
	}
	closer := byte('}')
	if cleaned[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(cleaned, closer)
	if end <= start {
		return strings.TrimSpace(cleaned)
	}
	return strings.TrimSpace(cleaned[start : end+1])
}

func stripCodeFenceBlock(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func summarizePayloadSnippet(payload string) string {
	cleaned := strings.Join(strings.Fields(payload), " ")
	if cleaned == "" {
		return "<empty>"
	}
	if len(cleaned) > payloadSnippetLimit {
		return cleaned[:payloadSnippetLimit] + "..."
	}
	return cleaned
}

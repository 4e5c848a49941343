package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatPayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(chatPayload(`{"ok":true}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(chatPayload("```json\n{\"ok\":true}\n```")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientCompleteSendsHistoryWithoutResponseFormat(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if err := json.NewEncoder(w).Encode(chatPayload("The bearing looks worn.")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	reply, err := client.Complete(context.Background(), "You are a fault analysis assistant.", []Message{
		{Role: RoleUser, Content: "What did the last run show?"},
		{Role: RoleAssistant, Content: "High RMS on the accelerometer."},
		{Role: RoleUser, Content: "And what does that mean?"},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply != "The bearing looks worn." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if captured.ResponseFormat != nil {
		t.Fatalf("expected no response_format for prose completion, got %+v", captured.ResponseFormat)
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
	}
	wantRoles := []string{RoleSystem, RoleUser, RoleAssistant, RoleUser}
	for i, want := range wantRoles {
		if captured.Messages[i].Role != want {
			t.Fatalf("message %d role = %q, want %q", i, captured.Messages[i].Role, want)
		}
	}
}

func TestClientCompleteJSONRequestsJSONObject(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if err := json.NewEncoder(w).Encode(chatPayload(`{"intent":"general_chat"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	payload, err := client.CompleteJSON(context.Background(), "route", "hello")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if !strings.Contains(payload, "general_chat") {
		t.Fatalf("unexpected payload %q", payload)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", captured.ResponseFormat)
	}
	if captured.Temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", captured.Temperature)
	}
}

func TestClientAuthorizationHeaderOnlyWithKey(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewEncoder(w).Encode(chatPayload("ok")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	if _, err := client.Complete(context.Background(), "", []Message{{Content: "hi"}}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if auth != "" {
		t.Fatalf("expected no Authorization header without key, got %q", auth)
	}

	client = NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "demo-model"})
	if _, err := client.Complete(context.Background(), "", []Message{{Content: "hi"}}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", auth)
	}
}

func TestClientToolCallArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"type": "function",
								"function": map[string]any{
									"name":      "route_request",
									"arguments": `{"intent":"feature_importance_analysis"}`,
								},
							},
						},
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	payload, err := client.CompleteJSON(context.Background(), "route", "rank features")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if !strings.Contains(payload, "feature_importance_analysis") {
		t.Fatalf("expected tool call arguments, got %q", payload)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(chatPayload(`{"ok":true}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "", "ping"); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"ok":true}`
		}
		_ = json.NewEncoder(w).Encode(chatPayload(content))
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "", "ping"); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientEmptyContentErrorHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatPayload(""))
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.CompleteJSON(context.Background(), "", "ping")
	if err == nil {
		t.Fatal("expected completion to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error with snippet, got %v", err)
	}
}

func TestDecodeLLMJSONProseWrapped(t *testing.T) {
	var decoded struct {
		Intent string `json:"intent"`
	}
	payload := "Sure! Here is the routing decision:\n```json\n{\"intent\": \"data_visualization\"}\n```\nLet me know if you need anything else."
	if err := DecodeLLMJSON(payload, &decoded); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if decoded.Intent != "data_visualization" {
		t.Fatalf("expected intent data_visualization, got %q", decoded.Intent)
	}
}

func TestDecodeLLMJSONRejectsGarbage(t *testing.T) {
	var decoded map[string]any
	err := DecodeLLMJSON("no json here at all", &decoded)
	if err == nil {
		t.Fatal("expected decode to fail")
	}
	if !strings.Contains(err.Error(), "payload_snippet=") {
		t.Fatalf("expected error to include snippet, got %v", err)
	}

	if err := DecodeLLMJSON("   ", &decoded); err == nil {
		t.Fatal("expected empty payload to fail")
	}
}

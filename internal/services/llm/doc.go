// Package llm provides an OpenAI-compatible chat completion client used
// for intent routing and response narration.
//
// The default endpoint is a local Ollama server speaking the
// /v1/chat/completions protocol, but any compatible service works. The
// Authorization header is only sent when an API key is configured, so
// unauthenticated local endpoints need no key.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Complete: free-form chat with history, returns prose.
// Client.CompleteJSON: single-shot exchange with a JSON response hint.
// Client.HealthCheck: verify the endpoint answers with well-formed JSON.
// DecodeLLMJSON: unmarshal model output, tolerating code fences and prose.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, network timeouts, and empty
// completions with exponential backoff (base 2s, max 30s, up to 4
// attempts by default), honoring Retry-After where present. Context
// cancellation aborts retries immediately.
//
// # Fallback
//
// When the endpoint is unavailable or keeps failing, callers degrade to
// templated output rather than surfacing the transport error to users.
// The turn coordinator owns that fallback.
package llm

// Package server exposes the assistant over HTTP for external chat
// front ends.
//
// The surface is intentionally small: POST /api/turn runs one
// conversational turn through the orchestrator, GET /api/catalog
// describes the indexed dataset, GET /api/status reports preflight
// health, and GET /api/healthz answers liveness probes. A bearer token
// configured under [paths].api_token gates everything except healthz.
//
// The engine stays fully usable in-process; this package only fronts
// it.
package server

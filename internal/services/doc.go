// Package services defines shared utilities consumed by the turn executors
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp turn IDs, routed operations, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (missing sensors, malformed recordings, single-class tables, language
//     model outages) so callers can branch on errors.Is instead of strings.
//
// Use these helpers when wiring new executor logic so operational behaviour
// (error handling, observability) stays uniform across the assistant.
package services

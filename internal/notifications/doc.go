// Package notifications delivers analysis milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover analysis completion, analysis failure, and
// errors so the orchestrator can emit consistent messages without duplicating
// HTTP glue; per-class toggles in [notifications] suppress unwanted events.
//
// Extend this package if you need alternative transports; callers depend only
// on the simple Service interface.
package notifications

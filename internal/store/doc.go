// Package store persists conversational turns and cached feature
// vectors in SQLite. The schema is embedded and versioned; a version
// mismatch refuses to open rather than migrating silently.
package store

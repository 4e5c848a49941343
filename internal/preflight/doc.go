// Package preflight provides readiness checks for the paths and
// services the assistant depends on.
//
// These checks run in two contexts:
//   - The CLI "faultscope status" command runs RunAll to display a
//     health table before the user starts a session.
//   - The HTTP API exposes the same results under /api/status so chat
//     front ends can surface degraded components.
//
// Checks never mutate anything; a failed check is a display row, not an
// error.
package preflight

// Package turn orchestrates one conversational exchange end to end.
//
// Execute routes the request through the language model, validates the
// extracted parameters against the catalog snapshot, dispatches to the
// matching executor (analysis, visualization, or chat), narrates the
// outcome, and persists the turn through its state transitions
// (awaiting_input, routed, executing, completed or failed). Every turn
// runs under the configured deadline and failures stay contained to
// that turn: the catalog, the configuration, and earlier turns are
// never touched.
//
// Feature extraction fans out over a bounded worker pool and memoizes
// results in the store under the catalog fingerprint, with a file lock
// serializing concurrent cache fills. Narration survives language model
// outages by degrading to a deterministic fallback that still carries
// the computed tool output.
package turn

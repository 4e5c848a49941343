// Package narrator turns executed turn work into conversational replies.
//
// The responder prompt carries the user query, an internal guidance
// block selected by the turn's flag, and the rendered tool output
// (analysis report or signal/spectrum profile). Replies come from the
// language model; when the endpoint is unreachable, Fallback produces a
// deterministic template that still carries the tool output, so an LLM
// outage degrades narration without losing results.
package narrator

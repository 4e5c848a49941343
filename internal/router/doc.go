// Package router classifies natural language requests into the closed
// operation set the turn executor understands: feature importance
// analysis, data visualization, and general chat.
//
// Classification is delegated to a language model via a vocabulary-aware
// system prompt, then every extracted parameter is cross-validated
// against the catalog snapshot. Mismatches never fail the turn; they
// downgrade to a Clarification the narrator turns into a corrective
// reply. An unparseable model payload routes to general chat. Only
// transport failures surface as errors (ErrUpstreamLLM), so the caller
// can fall back separately when the model endpoint is down.
package router

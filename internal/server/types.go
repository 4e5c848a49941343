package server

import "faultscope/internal/turn"

// TurnRequest is the POST /api/turn body.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text"`
}

// TurnResponse mirrors turn.Result for transport.
type TurnResponse struct {
	TurnID         int64          `json:"turn_id"`
	RunID          string         `json:"run_id"`
	ConversationID string         `json:"conversation_id"`
	State          string         `json:"state"`
	Operation      string         `json:"operation,omitempty"`
	Flag           string         `json:"flag,omitempty"`
	Response       string         `json:"response"`
	Clarification  string         `json:"clarification,omitempty"`
	Degraded       bool           `json:"degraded,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Artifact       *turn.Artifact `json:"artifact,omitempty"`
}

// CheckStatus is one preflight row in a status response.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// TurnCounts aggregates persisted turns per lifecycle bucket.
type TurnCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StatusResponse is the GET /api/status body.
type StatusResponse struct {
	Ready  bool          `json:"ready"`
	Checks []CheckStatus `json:"checks"`
	Turns  *TurnCounts   `json:"turns,omitempty"`
}

// SessionSummary is one indexed session in a catalog response.
type SessionSummary struct {
	ID          string `json:"id"`
	Condition   string `json:"condition,omitempty"`
	FaultDetail string `json:"fault_detail,omitempty"`
	Streams     int    `json:"streams"`
}

// LabelSummary groups sessions under their condition label.
type LabelSummary struct {
	Label    string           `json:"label"`
	Sessions []SessionSummary `json:"sessions"`
}

// CatalogResponse is the GET /api/catalog body. Zero-valued when no
// dataset is indexed.
type CatalogResponse struct {
	Root         string         `json:"root,omitempty"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	Sessions     int            `json:"sessions"`
	Labels       []LabelSummary `json:"labels,omitempty"`
	SensorNames  []string       `json:"sensor_names,omitempty"`
	SensorTypes  []string       `json:"sensor_types,omitempty"`
	Conditions   []string       `json:"conditions,omitempty"`
	FaultDetails []string       `json:"fault_details,omitempty"`
}

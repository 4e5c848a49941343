package store

import (
	"strings"
	"time"
)

// State is the lifecycle of one conversational turn.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateRouted        State = "routed"
	StateExecuting     State = "executing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

var allStates = []State{
	StateAwaitingInput,
	StateRouted,
	StateExecuting,
	StateCompleted,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// legalTransitions encodes the only moves a turn may make. Terminal
// states have no outgoing edges; a failure is reachable from any live
// state.
var legalTransitions = map[State][]State{
	StateAwaitingInput: {StateRouted, StateFailed},
	StateRouted:        {StateExecuting, StateCompleted, StateFailed},
	StateExecuting:     {StateCompleted, StateFailed},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a turn in this state is finished.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from one state to another is
// legal.
func CanTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Turn is one request/response exchange persisted in SQLite. ParamsJSON
// holds the routed intent parameters; ArtifactJSON holds the computed
// chart or analysis payload when the turn produced one.
type Turn struct {
	ID             int64
	ConversationID string
	State          State
	Request        string
	Intent         string
	ParamsJSON     string
	Response       string
	ArtifactJSON   string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetFailed marks the turn failed with a user-facing message.
func (t *Turn) SetFailed(message string) {
	t.State = StateFailed
	t.ErrorMessage = message
}

// HealthSummary describes aggregated turn counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Active    int
	Completed int
	Failed    int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	IntegrityCheck   bool
	TotalTurns       int
	CachedVectors    int
	Error            string
}

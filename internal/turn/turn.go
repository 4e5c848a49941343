package turn

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"faultscope/internal/analysis"
	"faultscope/internal/catalog"
	"faultscope/internal/config"
	"faultscope/internal/narrator"
	"faultscope/internal/notifications"
	"faultscope/internal/plot"
	"faultscope/internal/router"
	"faultscope/internal/services"
	"faultscope/internal/services/llm"
	"faultscope/internal/store"
)

// Outcome is what an executor hands back for narration: the internal
// flag steering the responder, the tool output it narrates from, and
// the artifact attached to the turn.
type Outcome struct {
	Flag       string
	ToolOutput string
	Artifact   *Artifact
}

// Executor runs one routed operation.
type Executor interface {
	Execute(ctx context.Context, intent *router.Intent) (*Outcome, error)
}

// Artifact is the structured payload a turn can produce alongside its
// narrated response.
type Artifact struct {
	Kind     string            `json:"kind"`
	Analysis *AnalysisArtifact `json:"analysis,omitempty"`
	Chart    *plot.ChartData   `json:"chart,omitempty"`
}

// AnalysisArtifact is the serializable summary of one analysis run.
type AnalysisArtifact struct {
	Algorithm      string          `json:"algorithm"`
	Ranking        []RankedFeature `json:"ranking"`
	SensorScores   []SensorScore   `json:"sensor_scores"`
	Sessions       int             `json:"sessions"`
	OKSessions     int             `json:"ok_sessions"`
	KOSessions     int             `json:"ko_sessions"`
	FoldsUsed      int             `json:"folds_used"`
	CrossValidated bool            `json:"cross_validated"`
}

// RankedFeature is one (feature, sensor) ranking entry in an artifact.
type RankedFeature struct {
	Feature     string  `json:"feature"`
	Sensor      string  `json:"sensor"`
	Importance  float64 `json:"importance"`
	Accuracy    float64 `json:"sensor_accuracy"`
	GlobalScore float64 `json:"global_score"`
}

// SensorScore is one sensor's model accuracy in an artifact.
type SensorScore struct {
	Sensor   string  `json:"sensor"`
	Accuracy float64 `json:"accuracy"`
}

// Result is the outcome of one executed turn.
type Result struct {
	TurnID         int64                 `json:"turn_id"`
	RunID          string                `json:"run_id"`
	ConversationID string                `json:"conversation_id"`
	State          store.State           `json:"state"`
	Operation      router.Operation      `json:"operation,omitempty"`
	Flag           string                `json:"flag,omitempty"`
	Response       string                `json:"response"`
	Artifact       *Artifact             `json:"artifact,omitempty"`
	Clarification  *router.Clarification `json:"clarification,omitempty"`
	Degraded       bool                  `json:"degraded,omitempty"`
	ErrorCode      string                `json:"error_code,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
}

// Failed reports whether the turn ended in the failed state.
func (r *Result) Failed() bool { return r.State == store.StateFailed }

// Orchestrator runs conversational turns: route, validate, execute,
// narrate, persist. One orchestrator serves one catalog snapshot; the
// snapshot is never mutated by a turn.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	router   *router.Router
	narrator *narrator.Narrator
	notifier notifications.Service
	logger   *slog.Logger

	catalog   *catalog.Catalog
	executors map[router.Operation]Executor
	sleep     func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	lastRequest time.Time
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithNotifier replaces the configured notifier (used in tests).
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithExecutor overrides the executor for one operation.
func WithExecutor(op router.Operation, exec Executor) Option {
	return func(o *Orchestrator) {
		if exec != nil {
			o.executors[op] = exec
		}
	}
}

// WithSleeper replaces the throttle sleep, letting tests observe waits
// without real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New builds an orchestrator over the given collaborators. The catalog
// may be nil when no dataset is indexed; technical requests then
// complete with a missing-dataset reply instead of executing.
func New(cfg *config.Config, st *store.Store, rtr *router.Router, narr *narrator.Narrator, cat *catalog.Catalog, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &Orchestrator{
		cfg:      cfg,
		store:    st,
		router:   rtr,
		narrator: narr,
		notifier: notifications.NewService(cfg),
		logger:   logger.With("component", "turn"),
		catalog:  cat,
		sleep:    sleepContext,
	}
	o.executors = map[router.Operation]Executor{
		router.OpFeatureImportance: analysisExecutor{o},
		router.OpVisualization:     visualExecutor{o},
		router.OpGeneralChat:       chatExecutor{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the snapshot this orchestrator serves, possibly nil.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// Execute runs one turn synchronously: the request is routed, executed,
// narrated, and persisted through its state transitions under the
// configured turn deadline. The returned error is non-nil only when the
// turn could not be recorded at all; execution failures come back as a
// failed Result.
func (o *Orchestrator) Execute(ctx context.Context, conversationID, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "turn", "execute", "empty request", nil)
	}
	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}

	if err := o.throttle(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout())
	defer cancel()

	result := &Result{
		RunID:          uuid.NewString(),
		ConversationID: conversationID,
	}
	logger := o.logger.With("run_id", result.RunID)

	history := o.conversationHistory(ctx, conversationID)

	row, err := o.store.NewTurn(ctx, conversationID, text)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "turn", "execute", "create turn", err)
	}
	result.TurnID = row.ID
	logger = logger.With("turn_id", row.ID)

	intent, err := o.router.Route(ctx, text, history, o.catalog)
	if err != nil {
		err = o.classifyDeadline(ctx, err)
		logger.Warn("routing failed", "error", err)
		o.notifyError(ctx, "routing", err)
		fallback := narrator.Fallback(narrator.Input{Query: text})
		return o.fail(ctx, row, result, err, fallback), nil
	}

	result.Operation = intent.Operation
	row.State = store.StateRouted
	row.Intent = string(intent.Operation)
	row.ParamsJSON = encodeParams(intent)
	if err := o.store.UpdateTurn(ctx, row); err != nil {
		return nil, services.Wrap(services.ErrTransient, "turn", "execute", "persist routed state", err)
	}

	if intent.NeedsClarification() {
		result.Clarification = intent.Clarification
		logger.Info("turn needs clarification", "flag", intent.Clarification.Flag)
		return o.complete(ctx, row, result, narrator.Input{
			Query:      text,
			Flag:       intent.Clarification.Flag,
			ToolOutput: intent.Clarification.Detail,
			History:    history,
		}, nil), nil
	}

	if !o.datasetReady() && intent.Operation != router.OpGeneralChat {
		logger.Info("technical request without an indexed dataset")
		return o.complete(ctx, row, result, narrator.Input{
			Query:   text,
			Flag:    narrator.FlagMissingDataset,
			History: history,
		}, nil), nil
	}

	row.State = store.StateExecuting
	if err := o.store.UpdateTurn(ctx, row); err != nil {
		return nil, services.Wrap(services.ErrTransient, "turn", "execute", "persist executing state", err)
	}

	exec, ok := o.executors[intent.Operation]
	if !ok {
		err := services.Wrap(services.ErrValidation, "turn", "execute",
			"no executor for operation "+string(intent.Operation), nil)
		return o.fail(ctx, row, result, err, ""), nil
	}

	outcome, execErr := exec.Execute(ctx, intent)
	if execErr != nil {
		execErr = o.classifyDeadline(ctx, execErr)
		logger.Warn("execution failed",
			"operation", string(intent.Operation),
			"error", execErr)
		if intent.Operation == router.OpFeatureImportance {
			o.notifyAnalysisFailed(ctx, execErr)
		} else {
			o.notifyError(ctx, string(intent.Operation), execErr)
		}
		return o.fail(ctx, row, result, execErr, ""), nil
	}

	result.Flag = outcome.Flag
	result.Artifact = outcome.Artifact
	completed := o.complete(ctx, row, result, narrator.Input{
		Query:      text,
		Flag:       outcome.Flag,
		ToolOutput: outcome.ToolOutput,
		History:    history,
	}, outcome.Artifact)

	if intent.Operation == router.OpFeatureImportance && completed.State == store.StateCompleted {
		o.notifyAnalysisComplete(ctx, outcome.Artifact)
	}
	logger.Info("turn finished",
		"state", string(completed.State),
		"operation", string(completed.Operation),
		"degraded", completed.Degraded)
	return completed, nil
}

// complete narrates the outcome and moves the turn to completed. A
// narrator outage degrades to the templated fallback; the artifact is
// kept either way.
func (o *Orchestrator) complete(ctx context.Context, row *store.Turn, result *Result, in narrator.Input, artifact *Artifact) *Result {
	if result.Flag == "" {
		result.Flag = in.Flag
	}
	reply, err := o.narrator.Narrate(ctx, in)
	if err != nil {
		o.logger.Warn("narration degraded to fallback", "error", err)
		reply = narrator.Fallback(in)
		result.Degraded = true
	}

	row.State = store.StateCompleted
	row.Response = reply
	row.ErrorMessage = ""
	if artifact != nil {
		row.ArtifactJSON = encodeArtifact(artifact)
	}
	if err := o.store.UpdateTurn(ctx, row); err != nil {
		o.logger.Error("persist completed turn", "turn_id", row.ID, "error", err)
	}

	result.State = store.StateCompleted
	result.Response = reply
	return result
}

// fail moves the turn to failed. The optional reply still gives the
// user something actionable when the failure has a stock explanation.
func (o *Orchestrator) fail(ctx context.Context, row *store.Turn, result *Result, cause error, reply string) *Result {
	row.SetFailed(cause.Error())
	row.Response = reply
	if err := o.store.UpdateTurn(ctx, row); err != nil {
		o.logger.Error("persist failed turn", "turn_id", row.ID, "error", err)
	}

	result.State = store.StateFailed
	result.Response = reply
	result.ErrorCode = services.Code(cause)
	result.ErrorMessage = cause.Error()
	return result
}

// classifyDeadline rebrands errors caused by the expired turn deadline
// so callers see a timeout instead of a generic cancellation.
func (o *Orchestrator) classifyDeadline(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "turn", "execute",
			"turn exceeded its deadline", err)
	}
	return err
}

// throttle enforces the minimum gap between consecutive requests by
// sleeping out the remainder, mirroring the conversational front end
// this replaces.
func (o *Orchestrator) throttle(ctx context.Context) error {
	gap := time.Duration(o.cfg.Workflow.MinRequestSeconds) * time.Second
	if gap <= 0 {
		o.recordRequest()
		return nil
	}

	o.mu.Lock()
	wait := time.Duration(0)
	if !o.lastRequest.IsZero() {
		if elapsed := time.Since(o.lastRequest); elapsed < gap {
			wait = gap - elapsed
		}
	}
	o.lastRequest = time.Now()
	o.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	if err := o.sleep(ctx, wait); err != nil {
		return services.Wrap(services.ErrTransient, "turn", "throttle", "interrupted while pacing requests", err)
	}
	return nil
}

func (o *Orchestrator) recordRequest() {
	o.mu.Lock()
	o.lastRequest = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) turnTimeout() time.Duration {
	seconds := o.cfg.Workflow.TurnTimeoutSeconds
	if seconds <= 0 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}

func (o *Orchestrator) datasetReady() bool {
	return o.catalog != nil && o.catalog.SessionCount() > 0
}

// conversationHistory replays recent completed turns as chat messages,
// oldest first. History is advisory; a read failure just means the
// model answers without context.
func (o *Orchestrator) conversationHistory(ctx context.Context, conversationID string) []llm.Message {
	limit := o.cfg.Workflow.HistoryTurns
	if limit <= 0 {
		return nil
	}
	turns, err := o.store.RecentTurns(ctx, conversationID, limit)
	if err != nil {
		o.logger.Warn("conversation history unavailable", "error", err)
		return nil
	}
	var messages []llm.Message
	for _, t := range turns {
		if t.State != store.StateCompleted || t.Response == "" {
			continue
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.Request},
			llm.Message{Role: llm.RoleAssistant, Content: t.Response})
	}
	return messages
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func encodeParams(intent *router.Intent) string {
	record := struct {
		Operation     string                 `json:"operation"`
		Irrelevant    bool                   `json:"irrelevant,omitempty"`
		Vague         bool                   `json:"vague,omitempty"`
		Analysis      *router.AnalysisParams `json:"analysis,omitempty"`
		Visual        *router.VisualParams   `json:"visual,omitempty"`
		Clarification *router.Clarification  `json:"clarification,omitempty"`
		Advisories    []string               `json:"advisories,omitempty"`
	}{
		Operation:     string(intent.Operation),
		Irrelevant:    intent.Irrelevant,
		Vague:         intent.Vague,
		Analysis:      intent.Analysis,
		Visual:        intent.Visual,
		Clarification: intent.Clarification,
		Advisories:    intent.Advisories,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(payload)
}

func encodeArtifact(artifact *Artifact) string {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return ""
	}
	return string(payload)
}

func (o *Orchestrator) notifyError(ctx context.Context, contextLabel string, cause error) {
	if o.notifier == nil || cause == nil {
		return
	}
	if err := o.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"context": contextLabel,
		"error":   cause.Error(),
	}); err != nil {
		o.logger.Debug("error notification failed", "error", err)
	}
}

func (o *Orchestrator) notifyAnalysisFailed(ctx context.Context, cause error) {
	if o.notifier == nil || cause == nil {
		return
	}
	if err := o.notifier.Publish(ctx, notifications.EventAnalysisFailed, notifications.Payload{
		"error": cause.Error(),
	}); err != nil {
		o.logger.Debug("analysis failure notification failed", "error", err)
	}
}

func (o *Orchestrator) notifyAnalysisComplete(ctx context.Context, artifact *Artifact) {
	if o.notifier == nil || artifact == nil || artifact.Analysis == nil {
		return
	}
	payload := notifications.Payload{
		"algorithm": analysis.DisplayName(artifact.Analysis.Algorithm),
		"sessions":  artifact.Analysis.Sessions,
	}
	if len(artifact.Analysis.SensorScores) > 0 {
		payload["bestSensor"] = artifact.Analysis.SensorScores[0].Sensor
	}
	if err := o.notifier.Publish(ctx, notifications.EventAnalysisCompleted, payload); err != nil {
		o.logger.Debug("analysis completion notification failed", "error", err)
	}
}

package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"faultscope/internal/analysis"
	"faultscope/internal/catalog"
	"faultscope/internal/services"
	"faultscope/internal/services/llm"
)

// Operation is one of the closed set of actions a turn can execute.
type Operation string

const (
	OpFeatureImportance Operation = "feature_importance_analysis"
	OpVisualization     Operation = "data_visualization"
	OpGeneralChat       Operation = "general_chat"
)

// ChartKind selects the visualization flavor within OpVisualization.
type ChartKind string

const (
	ChartTimeSeries        ChartKind = "time_series"
	ChartFrequencySpectrum ChartKind = "frequency_spectrum"
)

// Clarification flags carried to the narrator when a request cannot run
// as stated. The turn still completes; the reply asks for a correction.
const (
	FlagMissingSensor    = "MISSING_SENSOR"
	FlagBadType          = "BAD_TYPE"
	FlagBadCondition     = "BAD_CONDITION"
	FlagBadLabel         = "BAD_LABEL"
	FlagBadSession       = "BAD_SESSION"
	FlagInvalidAlgorithm = "INVALID_ALGORITHM"
	FlagVague            = "VAGUE"
	FlagTooManyTargets   = "TOO_MANY_TARGETS"
)

// SensorTarget names one sensor, optionally narrowed to a type.
type SensorTarget struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func (t SensorTarget) String() string {
	if t.Type == "" {
		return t.Name
	}
	return t.Name + " (" + t.Type + ")"
}

// AnalysisParams configures a feature importance run.
type AnalysisParams struct {
	Global    bool           `json:"global"`
	Targets   []SensorTarget `json:"targets,omitempty"`
	Algorithm string         `json:"algorithm"`
}

// VisualParams configures a chart request. Empty filter fields match
// anything; SessionID overrides the other filters.
type VisualParams struct {
	Kind        ChartKind    `json:"kind"`
	Target      SensorTarget `json:"target"`
	LabelSubset string       `json:"label_subset,omitempty"`
	Condition   string       `json:"condition,omitempty"`
	FaultDetail string       `json:"fault_detail,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
}

// Clarification asks the user to correct an unusable parameter.
type Clarification struct {
	Flag   string `json:"flag"`
	Detail string `json:"detail"`
}

// Intent is the routed form of one user request.
type Intent struct {
	Operation  Operation
	Irrelevant bool
	Vague      bool
	Reasoning  string

	Analysis *AnalysisParams
	Visual   *VisualParams

	// Clarification, when set, stops execution; the turn completes with
	// a clarifying reply instead. Advisories are carried to the narrator
	// while execution proceeds.
	Clarification *Clarification
	Advisories    []string

	// Raw is the undecoded model payload, kept for logs.
	Raw string
}

// NeedsClarification reports whether execution should be skipped in
// favor of a clarifying reply.
func (i *Intent) NeedsClarification() bool {
	return i.Clarification != nil
}

// Router classifies user requests into the closed operation set using a
// language model, then cross-validates extracted parameters against the
// catalog snapshot.
type Router struct {
	client *llm.Client
	logger *slog.Logger
}

// New builds a router over the given chat client.
func New(client *llm.Client, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{client: client, logger: logger.With("component", "router")}
}

// Route classifies one request. The catalog may be nil when no dataset
// is indexed yet; parameter validation is skipped in that case and the
// orchestrator reports the missing dataset instead.
//
// Failure modes are asymmetric on purpose: a transport failure returns
// ErrUpstreamLLM so the caller can degrade, while an unparseable or
// unrecognized model payload routes to general chat and never errors.
func (r *Router) Route(ctx context.Context, text string, history []llm.Message, cat *catalog.Catalog) (*Intent, error) {
	var vocab catalog.Vocabulary
	if cat != nil {
		vocab = cat.Vocabulary()
	}

	payload, err := r.client.CompleteJSON(ctx, BuildPrompt(vocab), text, history...)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamLLM, "router", "route", "intent completion failed", err)
	}

	var decoded routerPayload
	if err := llm.DecodeLLMJSON(payload, &decoded); err != nil {
		r.logger.Warn("unparseable router payload, routing to chat", "error", err)
		return &Intent{Operation: OpGeneralChat, Raw: payload}, nil
	}

	intent := buildIntent(&decoded, payload)
	if cat != nil {
		validateIntent(intent, cat)
	}

	r.logger.Debug("routed request",
		"operation", string(intent.Operation),
		"vague", intent.Vague,
		"clarification", clarificationFlag(intent))
	return intent, nil
}

func clarificationFlag(intent *Intent) string {
	if intent.Clarification == nil {
		return ""
	}
	return intent.Clarification.Flag
}

// buildIntent maps the raw payload onto the closed operation set. The
// model speaks the five historical categories; the two chart categories
// fold into OpVisualization with a kind parameter, and anything
// unrecognized falls back to chat.
func buildIntent(decoded *routerPayload, raw string) *Intent {
	intent := &Intent{
		Operation: OpGeneralChat,
		Vague:     decoded.IsVague,
		Reasoning: strings.TrimSpace(decoded.Reasoning),
		Raw:       raw,
	}

	switch strings.ToLower(strings.TrimSpace(decoded.Category)) {
	case "feature_importance_analysis":
		intent.Operation = OpFeatureImportance
		intent.Analysis = buildAnalysisParams(decoded.analysisConfig())
	case "time_series":
		intent.Operation = OpVisualization
		intent.Visual = buildVisualParams(decoded.visualConfig(), ChartTimeSeries, intent)
	case "frequency_spectrum":
		intent.Operation = OpVisualization
		intent.Visual = buildVisualParams(decoded.visualConfig(), ChartFrequencySpectrum, intent)
	case "data_visualization":
		intent.Operation = OpVisualization
		intent.Visual = buildVisualParams(decoded.visualConfig(), ChartTimeSeries, intent)
	case "irrelevant_request":
		intent.Irrelevant = true
	case "normal_conversation", "":
	default:
	}
	return intent
}

func buildAnalysisParams(cfg *analysisConfig) *AnalysisParams {
	params := &AnalysisParams{Global: true, Algorithm: analysis.AlgorithmRandomForest}
	if cfg == nil {
		return params
	}

	if algorithm := strings.ToLower(strings.TrimSpace(cfg.Algorithm)); algorithm != "" {
		params.Algorithm = algorithm
	}
	for _, pair := range cfg.Targets {
		name := strings.TrimSpace(pair.Name)
		if name == "" {
			continue
		}
		params.Targets = append(params.Targets, SensorTarget{
			Name: name,
			Type: strings.TrimSpace(pair.Type),
		})
	}
	if cfg.Global != nil {
		params.Global = *cfg.Global
	}
	if len(params.Targets) == 0 {
		params.Global = true
	}
	return params
}

// buildVisualParams keeps one target per chart. Several pairs sharing a
// name collapse to that name with an unspecified type; genuinely
// distinct pairs keep the first and flag the rest for the narrator.
func buildVisualParams(cfg *visualConfig, kind ChartKind, intent *Intent) *VisualParams {
	params := &VisualParams{Kind: kind}
	if cfg == nil {
		return params
	}

	var pairs []SensorTarget
	for _, pair := range cfg.Targets {
		name := strings.TrimSpace(pair.Name)
		if name == "" {
			continue
		}
		pairs = append(pairs, SensorTarget{Name: name, Type: strings.TrimSpace(pair.Type)})
	}
	if len(pairs) > 0 {
		sameName := true
		for _, pair := range pairs[1:] {
			if !strings.EqualFold(pair.Name, pairs[0].Name) {
				sameName = false
				break
			}
		}
		switch {
		case sameName && len(pairs) > 1:
			params.Target = SensorTarget{Name: pairs[0].Name}
		default:
			params.Target = pairs[0]
			if len(pairs) > 1 {
				intent.Advisories = append(intent.Advisories, FlagTooManyTargets)
			}
		}
	}

	params.LabelSubset = strings.TrimSpace(cfg.Subset)
	params.Condition = strings.TrimSpace(cfg.Condition)
	params.FaultDetail = strings.TrimSpace(cfg.FaultDetail)
	params.SessionID = strings.TrimSpace(cfg.sessionID())

	// An explicit session identifies the data on its own.
	if params.SessionID != "" {
		params.Condition = ""
		params.FaultDetail = ""
	}
	return params
}

// validateIntent cross-checks extracted parameters against the catalog
// and downgrades the first mismatch to a clarification. Checks run in
// the same precedence the reply templates expect: vagueness, algorithm,
// then data identifiers.
func validateIntent(intent *Intent, cat *catalog.Catalog) {
	switch intent.Operation {
	case OpFeatureImportance:
		validateAnalysis(intent, cat)
	case OpVisualization:
		validateVisual(intent, cat)
	}
}

func validateAnalysis(intent *Intent, cat *catalog.Catalog) {
	params := intent.Analysis
	if intent.Vague {
		intent.Clarification = &Clarification{
			Flag:   FlagVague,
			Detail: "the request does not name an analyzable sensor or scope",
		}
		return
	}
	if !validAlgorithm(params.Algorithm) {
		intent.Clarification = &Clarification{
			Flag:   FlagInvalidAlgorithm,
			Detail: fmt.Sprintf("algorithm %q is not supported", params.Algorithm),
		}
		return
	}

	for i, target := range params.Targets {
		name, ok := cat.ResolveSensorName(target.Name)
		if !ok {
			intent.Clarification = &Clarification{
				Flag:   FlagMissingSensor,
				Detail: fmt.Sprintf("sensor %q is not in the indexed dataset", target.Name),
			}
			return
		}
		params.Targets[i].Name = name

		if target.Type == "" {
			continue
		}
		sensorType, ok := cat.ResolveSensorType(target.Type)
		if !ok || !catalogHasStream(cat, name, sensorType) {
			intent.Clarification = &Clarification{
				Flag:   FlagBadType,
				Detail: fmt.Sprintf("sensor %q has no %q stream in the indexed dataset", name, target.Type),
			}
			return
		}
		params.Targets[i].Type = sensorType
	}
}

func validateVisual(intent *Intent, cat *catalog.Catalog) {
	params := intent.Visual
	if params.Target.Name == "" {
		intent.Clarification = &Clarification{
			Flag:   FlagMissingSensor,
			Detail: "no sensor was named for the chart",
		}
		return
	}

	name, ok := cat.ResolveSensorName(params.Target.Name)
	if !ok {
		intent.Clarification = &Clarification{
			Flag:   FlagMissingSensor,
			Detail: fmt.Sprintf("sensor %q is not in the indexed dataset", params.Target.Name),
		}
		return
	}
	params.Target.Name = name

	if params.Condition != "" {
		condition, ok := cat.ResolveCondition(params.Condition)
		if !ok {
			intent.Clarification = &Clarification{
				Flag:   FlagBadCondition,
				Detail: fmt.Sprintf("condition %q does not appear in any session metadata", params.Condition),
			}
			return
		}
		params.Condition = condition
	}
	if params.FaultDetail != "" {
		fault, ok := cat.ResolveFaultDetail(params.FaultDetail)
		if !ok {
			intent.Clarification = &Clarification{
				Flag:   FlagBadLabel,
				Detail: fmt.Sprintf("fault detail %q does not appear in any session metadata", params.FaultDetail),
			}
			return
		}
		params.FaultDetail = fault
	}
	if params.LabelSubset != "" {
		label, ok := cat.ResolveLabel(params.LabelSubset)
		if !ok {
			intent.Clarification = &Clarification{
				Flag:   FlagBadLabel,
				Detail: fmt.Sprintf("label %q is not a dataset class", params.LabelSubset),
			}
			return
		}
		params.LabelSubset = label
	}

	session, ok := cat.SelectSession(catalog.SessionFilter{
		SessionID:   params.SessionID,
		Label:       params.LabelSubset,
		Condition:   params.Condition,
		FaultDetail: params.FaultDetail,
	})
	if !ok {
		intent.Clarification = &Clarification{
			Flag:   FlagBadSession,
			Detail: "no session matches the requested identifier and filters",
		}
		return
	}

	if params.Target.Type != "" {
		sensorType, resolved := cat.ResolveSensorType(params.Target.Type)
		if resolved {
			params.Target.Type = sensorType
		}
	}
	if _, ok := session.StreamByNameType(params.Target.Name, params.Target.Type); !ok {
		flag := FlagMissingSensor
		detail := fmt.Sprintf("session %s did not record sensor %q", session.ID, params.Target.Name)
		if params.Target.Type != "" {
			flag = FlagBadType
			detail = fmt.Sprintf("session %s has no %s stream for sensor %q", session.ID, params.Target.Type, params.Target.Name)
		}
		intent.Clarification = &Clarification{Flag: flag, Detail: detail}
	}
}

func validAlgorithm(algorithm string) bool {
	switch algorithm {
	case analysis.AlgorithmRandomForest, analysis.AlgorithmDecisionTree, analysis.AlgorithmLogistic:
		return true
	default:
		return false
	}
}

func catalogHasStream(cat *catalog.Catalog, name, sensorType string) bool {
	for _, session := range cat.AllSessions() {
		if _, ok := session.StreamByNameType(name, sensorType); ok {
			return true
		}
	}
	return false
}

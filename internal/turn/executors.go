package turn

import (
	"context"
	"fmt"
	"strings"

	"faultscope/internal/analysis"
	"faultscope/internal/catalog"
	"faultscope/internal/features"
	"faultscope/internal/narrator"
	"faultscope/internal/plot"
	"faultscope/internal/router"
	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

// analysisExecutor runs one feature-importance analysis over the cached
// or freshly extracted feature table.
type analysisExecutor struct {
	o *Orchestrator
}

func (e analysisExecutor) Execute(ctx context.Context, intent *router.Intent) (*Outcome, error) {
	params := intent.Analysis
	if params == nil {
		params = &router.AnalysisParams{Global: true, Algorithm: e.o.cfg.Analysis.Algorithm}
	}

	var targets []router.SensorTarget
	if !params.Global {
		targets = params.Targets
	}
	result, err := e.o.RunAnalysis(ctx, params.Algorithm, targets)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Flag:       narrator.FlagAnalysisSuccess,
		ToolOutput: narrator.ReportText(result),
		Artifact:   analysisArtifact(result, e.o.cfg.Analysis.TopN),
	}, nil
}

// RunAnalysis extracts (or reuses) the feature table and ranks feature
// importance. An empty target list means a global run over every
// sensor; otherwise the table is narrowed to the named sensors first.
func (o *Orchestrator) RunAnalysis(ctx context.Context, algorithm string, targets []router.SensorTarget) (*analysis.Result, error) {
	vectors, err := o.ExtractFeatures(ctx)
	if err != nil {
		return nil, err
	}

	vectors = rectangularVectors(vectors, o.logger)
	if len(targets) > 0 {
		vectors = filterVectors(vectors, targets)
		if len(vectors) == 0 {
			return nil, services.Wrap(services.ErrNotFound, "turn", "analyze",
				"no extracted features match the requested sensors", nil)
		}
	}

	if strings.TrimSpace(algorithm) == "" {
		algorithm = o.cfg.Analysis.Algorithm
	}
	return analysis.Analyze(vectors, analysis.Params{
		Algorithm: algorithm,
		OKLabel:   o.cfg.Dataset.OKLabel,
		KOLabel:   o.cfg.Dataset.KOLabel,
		Trees:     o.cfg.Analysis.Trees,
		Folds:     o.cfg.Analysis.CVFolds,
		Seed:      o.cfg.Analysis.Seed,
	})
}

func analysisArtifact(result *analysis.Result, topN int) *Artifact {
	if topN <= 0 {
		topN = 10
	}
	ranking := make([]RankedFeature, 0, topN)
	for _, entry := range result.TopFeatures(topN) {
		ranking = append(ranking, RankedFeature{
			Feature:     entry.Feature,
			Sensor:      entry.Sensor,
			Importance:  entry.Importance,
			Accuracy:    entry.Accuracy,
			GlobalScore: entry.GlobalScore,
		})
	}
	scores := make([]SensorScore, 0, len(result.SensorScores))
	for _, score := range result.SensorScores {
		scores = append(scores, SensorScore{Sensor: score.Sensor, Accuracy: score.Accuracy})
	}
	return &Artifact{
		Kind: "analysis",
		Analysis: &AnalysisArtifact{
			Algorithm:      result.Diagnostics.Algorithm,
			Ranking:        ranking,
			SensorScores:   scores,
			Sessions:       result.Diagnostics.Sessions,
			OKSessions:     result.Diagnostics.OKSessions,
			KOSessions:     result.Diagnostics.KOSessions,
			FoldsUsed:      result.Diagnostics.FoldsUsed,
			CrossValidated: result.Diagnostics.CrossValidated,
		},
	}
}

// visualExecutor loads one session's stream and builds a chart artifact
// plus the statistical summary the narrator reads from.
type visualExecutor struct {
	o *Orchestrator
}

func (e visualExecutor) Execute(ctx context.Context, intent *router.Intent) (*Outcome, error) {
	params := intent.Visual
	if params == nil || params.Target.Name == "" {
		return nil, services.Wrap(services.ErrValidation, "turn", "visualize", "no chart target", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chart, tool, err := e.o.BuildChart(params)
	if err != nil {
		return nil, err
	}

	flag := narrator.FlagAnalysisSuccess
	if len(intent.Advisories) > 0 {
		flag = intent.Advisories[0]
	}
	return &Outcome{
		Flag:       flag,
		ToolOutput: tool,
		Artifact:   &Artifact{Kind: "chart", Chart: chart},
	}, nil
}

// BuildChart selects the session matching the request, loads the target
// stream, and renders the chart artifact together with its textual
// summary.
func (o *Orchestrator) BuildChart(params *router.VisualParams) (*plot.ChartData, string, error) {
	if !o.datasetReady() {
		return nil, "", services.Wrap(services.ErrNotFound, "turn", "visualize", "no dataset indexed", nil)
	}

	session, ok := o.catalog.SelectSession(catalog.SessionFilter{
		SessionID:   params.SessionID,
		Label:       params.LabelSubset,
		Condition:   params.Condition,
		FaultDetail: params.FaultDetail,
	})
	if !ok {
		return nil, "", services.Wrap(services.ErrNotFound, "turn", "visualize",
			"no session matches the requested filters", nil)
	}

	stream, ok := resolveStream(session, params.Target)
	if !ok {
		return nil, "", services.Wrap(services.ErrNotFound, "turn", "visualize",
			fmt.Sprintf("session %s has no stream for sensor %s", session.ID, params.Target), nil)
	}

	series, err := timeseries.LoadStream(session, stream)
	if err != nil {
		return nil, "", err
	}

	okLabel := o.cfg.Dataset.OKLabel
	switch params.Kind {
	case router.ChartFrequencySpectrum:
		chart, err := plot.SpectrumChart(series, plot.DefaultMaxPoints)
		if err != nil {
			return nil, "", err
		}
		spectrum, err := features.ComputeSpectrum(series.Columns[0].Values, series.SamplingRateHz)
		if err != nil {
			return nil, "", err
		}
		tool := narrator.SpectrumContext(session.Label, okLabel) + "\n" +
			narrator.FrequencySummary(spectrum, series.SensorName, series.SensorType)
		return chart, tool, nil
	default:
		chart := plot.TimeSeriesChart(series, plot.DefaultMaxPoints)
		tool := narrator.SignalContext(session.ID, session.Label, okLabel) +
			narrator.SignalSummary(series)
		return chart, tool, nil
	}
}

func resolveStream(session *catalog.Session, target router.SensorTarget) (*catalog.SensorStream, bool) {
	if target.Type != "" {
		return session.StreamByNameType(target.Name, target.Type)
	}
	streams := session.StreamsNamed(target.Name)
	if len(streams) == 0 {
		return nil, false
	}
	return streams[0], true
}

// chatExecutor handles conversation that needs no tool run.
type chatExecutor struct{}

func (chatExecutor) Execute(ctx context.Context, intent *router.Intent) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flag := narrator.FlagNormalConversation
	if intent.Irrelevant {
		flag = narrator.FlagIrrelevantRequest
	}
	return &Outcome{Flag: flag}, nil
}

package turn_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"faultscope/internal/catalog"
	"faultscope/internal/config"
	"faultscope/internal/narrator"
	"faultscope/internal/router"
	"faultscope/internal/services/llm"
	"faultscope/internal/store"
	"faultscope/internal/testsupport"
	"faultscope/internal/turn"
)

// fixedModel serves the given content as every chat completion reply.
func fixedModel(t *testing.T, content string) (*llm.Client, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	return llm.NewClient(llm.Config{BaseURL: server.URL, Model: "test-model"}), server.Close
}

const chatRouting = `{
	"category": "normal_conversation",
	"is_vague": false,
	"reasoning": "greeting",
	"parameters": {"analysis_config": null, "visual_config": null}
}`

const analysisRouting = `{
	"category": "feature_importance_analysis",
	"is_vague": false,
	"reasoning": "global ranking",
	"parameters": {"analysis_config": {"global": true, "target_sensors": [], "algorithm": "rf"}, "visual_config": null}
}`

type fixture struct {
	cfg   *config.Config
	store *store.Store
	cat   *catalog.Catalog
	orch  *turn.Orchestrator
}

func newFixture(t *testing.T, routerPayload, narratorReply string, opts ...turn.Option) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteDataset(t, cfg.Dataset.Root, 2)
	st := testsupport.MustOpenStore(t, cfg)

	cat, _, err := catalog.Index(cfg.Dataset.Root)
	if err != nil {
		t.Fatalf("index dataset: %v", err)
	}

	routerClient, closeRouter := fixedModel(t, routerPayload)
	t.Cleanup(closeRouter)
	narratorClient, closeNarrator := fixedModel(t, narratorReply)
	t.Cleanup(closeNarrator)

	orch := turn.New(cfg, st,
		router.New(routerClient, nil),
		narrator.New(narratorClient, nil),
		cat, nil, opts...)

	return &fixture{cfg: cfg, store: st, cat: cat, orch: orch}
}

func TestExecuteChatTurn(t *testing.T) {
	fx := newFixture(t, chatRouting, "Hello! Ask me about your sensors.")

	result, err := fx.orch.Execute(context.Background(), "conv-1", "hi there")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != store.StateCompleted {
		t.Fatalf("state = %s, want completed", result.State)
	}
	if result.Operation != router.OpGeneralChat {
		t.Fatalf("operation = %s", result.Operation)
	}
	if result.Response != "Hello! Ask me about your sensors." {
		t.Fatalf("unexpected response %q", result.Response)
	}
	if result.Degraded {
		t.Fatal("chat turn should not be degraded")
	}

	row, err := fx.store.GetTurn(context.Background(), result.TurnID)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if row.State != store.StateCompleted || row.Response == "" {
		t.Fatalf("persisted turn = %+v", row)
	}
	if row.Intent != string(router.OpGeneralChat) {
		t.Fatalf("persisted intent = %q", row.Intent)
	}
}

func TestExecuteAnalysisTurnProducesArtifact(t *testing.T) {
	fx := newFixture(t, analysisRouting, "The accelerometer separates the classes best.")

	result, err := fx.orch.Execute(context.Background(), "conv-1", "which sensor is most discriminative?")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != store.StateCompleted {
		t.Fatalf("state = %s, error = %s", result.State, result.ErrorMessage)
	}
	if result.Operation != router.OpFeatureImportance {
		t.Fatalf("operation = %s", result.Operation)
	}
	if result.Flag != narrator.FlagAnalysisSuccess {
		t.Fatalf("flag = %q", result.Flag)
	}
	if result.Artifact == nil || result.Artifact.Analysis == nil {
		t.Fatal("expected an analysis artifact")
	}
	artifact := result.Artifact.Analysis
	if artifact.Algorithm != "rf" {
		t.Fatalf("artifact algorithm = %q", artifact.Algorithm)
	}
	if artifact.Sessions != 4 || len(artifact.Ranking) == 0 {
		t.Fatalf("artifact = %+v", artifact)
	}

	row, err := fx.store.GetTurn(context.Background(), result.TurnID)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if row.ArtifactJSON == "" {
		t.Fatal("artifact not persisted")
	}
}

func TestExecuteClarificationCompletesTurn(t *testing.T) {
	routing := `{
		"category": "feature_importance_analysis",
		"is_vague": false,
		"reasoning": "unknown sensor",
		"parameters": {"analysis_config": {"global": false, "target_sensors": [["GHOST", "ACC"]], "algorithm": "rf"}, "visual_config": null}
	}`
	fx := newFixture(t, routing, "I could not find that sensor; did you mean IIS3DWB?")

	result, err := fx.orch.Execute(context.Background(), "conv-1", "analyze the GHOST sensor")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != store.StateCompleted {
		t.Fatalf("state = %s", result.State)
	}
	if result.Clarification == nil || result.Clarification.Flag != router.FlagMissingSensor {
		t.Fatalf("clarification = %+v", result.Clarification)
	}
	if result.Artifact != nil {
		t.Fatal("clarified turn must not execute")
	}
}

func TestExecuteDegradesWhenNarratorUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteDataset(t, cfg.Dataset.Root, 2)
	st := testsupport.MustOpenStore(t, cfg)
	cat, _, err := catalog.Index(cfg.Dataset.Root)
	if err != nil {
		t.Fatalf("index dataset: %v", err)
	}

	routerClient, closeRouter := fixedModel(t, chatRouting)
	t.Cleanup(closeRouter)
	narratorClient := llm.NewClient(
		llm.Config{BaseURL: "http://127.0.0.1:1", Model: "down", Timeout: time.Second},
		llm.WithRetryMaxAttempts(1))

	orch := turn.New(cfg, st, router.New(routerClient, nil), narrator.New(narratorClient, nil), cat, nil)

	result, err := orch.Execute(context.Background(), "conv-1", "hello?")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != store.StateCompleted {
		t.Fatalf("state = %s", result.State)
	}
	if !result.Degraded {
		t.Fatal("expected a degraded turn")
	}
	if result.Response == "" {
		t.Fatal("fallback reply missing")
	}
}

func TestExecuteFailsWhenRouterUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteDataset(t, cfg.Dataset.Root, 2)
	st := testsupport.MustOpenStore(t, cfg)
	cat, _, err := catalog.Index(cfg.Dataset.Root)
	if err != nil {
		t.Fatalf("index dataset: %v", err)
	}

	downClient := llm.NewClient(
		llm.Config{BaseURL: "http://127.0.0.1:1", Model: "down", Timeout: time.Second},
		llm.WithRetryMaxAttempts(1))
	narratorClient, closeNarrator := fixedModel(t, "unused")
	t.Cleanup(closeNarrator)

	orch := turn.New(cfg, st, router.New(downClient, nil), narrator.New(narratorClient, nil), cat, nil)

	result, err := orch.Execute(context.Background(), "conv-1", "rank the sensors")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() {
		t.Fatalf("state = %s, want failed", result.State)
	}
	if result.ErrorCode == "" || result.ErrorMessage == "" {
		t.Fatalf("error fields missing: %+v", result)
	}
	if result.Response == "" {
		t.Fatal("router outage should still produce a stock reply")
	}

	row, err := st.GetTurn(context.Background(), result.TurnID)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if row.State != store.StateFailed || row.ErrorMessage == "" {
		t.Fatalf("persisted turn = %+v", row)
	}
}

func TestExecuteFailsWithTimeoutOnSlowModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteDataset(t, cfg.Dataset.Root, 2)
	cfg.Workflow.TurnTimeoutSeconds = 1
	st := testsupport.MustOpenStore(t, cfg)
	cat, _, err := catalog.Index(cfg.Dataset.Root)
	if err != nil {
		t.Fatalf("index dataset: %v", err)
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	slowClient := llm.NewClient(
		llm.Config{BaseURL: slow.URL, Model: "slow"},
		llm.WithRetryMaxAttempts(1))
	narratorClient, closeNarrator := fixedModel(t, "unused")
	t.Cleanup(closeNarrator)

	orch := turn.New(cfg, st, router.New(slowClient, nil), narrator.New(narratorClient, nil), cat, nil)

	result, err := orch.Execute(context.Background(), "conv-1", "rank the sensors")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() {
		t.Fatalf("state = %s, want failed", result.State)
	}
	if result.ErrorCode != "timeout" {
		t.Fatalf("error code = %q, want timeout", result.ErrorCode)
	}

	row, err := st.GetTurn(context.Background(), result.TurnID)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if row.State != store.StateFailed {
		t.Fatalf("persisted state = %s", row.State)
	}
}

func TestExecuteMissingDatasetShortCircuits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	routerClient, closeRouter := fixedModel(t, analysisRouting)
	t.Cleanup(closeRouter)
	narratorClient, closeNarrator := fixedModel(t, "Point me at a dataset first.")
	t.Cleanup(closeNarrator)

	orch := turn.New(cfg, st, router.New(routerClient, nil), narrator.New(narratorClient, nil), nil, nil)

	result, err := orch.Execute(context.Background(), "conv-1", "which sensor is best?")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != store.StateCompleted {
		t.Fatalf("state = %s", result.State)
	}
	if result.Flag != narrator.FlagMissingDataset {
		t.Fatalf("flag = %q", result.Flag)
	}
	if result.Artifact != nil {
		t.Fatal("no analysis should run without a dataset")
	}
}

func TestExecuteRejectsEmptyRequest(t *testing.T) {
	fx := newFixture(t, chatRouting, "unused")

	if _, err := fx.orch.Execute(context.Background(), "conv-1", "   "); err == nil {
		t.Fatal("expected an error for a blank request")
	}
}

func TestExecuteThrottlesBackToBackRequests(t *testing.T) {
	var waits []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	fx := newFixture(t, chatRouting, "ok", turn.WithSleeper(sleeper))
	fx.cfg.Workflow.MinRequestSeconds = 5

	for i := 0; i < 2; i++ {
		if _, err := fx.orch.Execute(context.Background(), "conv-1", "hi"); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
	if len(waits) != 1 || waits[0] <= 0 {
		t.Fatalf("waits = %v, want one positive wait", waits)
	}
}

func TestExecuteKeepsConversationHistory(t *testing.T) {
	fx := newFixture(t, chatRouting, "Sure.")

	for _, text := range []string{"first question", "second question"} {
		if _, err := fx.orch.Execute(context.Background(), "conv-7", text); err != nil {
			t.Fatalf("Execute %q: %v", text, err)
		}
	}

	turns, err := fx.store.RecentTurns(context.Background(), "conv-7", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	for _, row := range turns {
		if row.State != store.StateCompleted {
			t.Fatalf("turn %d state = %s", row.ID, row.State)
		}
	}
	if !strings.Contains(turns[0].Request+turns[1].Request, "first question") {
		t.Fatalf("requests = %q, %q", turns[0].Request, turns[1].Request)
	}
}

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"faultscope/internal/features"
	"faultscope/internal/store"
	"faultscope/internal/testsupport"
)

func TestOpenCreatesSchemaAndInsertsTurns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	turn, err := st.NewTurn(ctx, "conv-1", "which sensor detects faults best?")
	if err != nil {
		t.Fatalf("NewTurn failed: %v", err)
	}
	if turn.ID == 0 {
		t.Fatal("expected turn ID to be assigned")
	}
	if turn.State != store.StateAwaitingInput {
		t.Fatalf("expected awaiting_input, got %s", turn.State)
	}
	if turn.CreatedAt.IsZero() || turn.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	fetched, err := st.GetTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if fetched == nil || fetched.Request != turn.Request {
		t.Fatalf("unexpected fetched turn %+v", fetched)
	}

	missing, err := st.GetTurn(ctx, turn.ID+100)
	if err != nil {
		t.Fatalf("GetTurn for missing id failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing turn, got %+v", missing)
	}
}

func TestUpdateTurnEnforcesTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	turn := testsupport.NewTurn(t, st, "conv-1", "show the spectrum")

	turn.State = store.StateCompleted
	if err := st.UpdateTurn(ctx, turn); err == nil {
		t.Fatal("expected awaiting_input -> completed to be rejected")
	}

	turn.State = store.StateRouted
	turn.Intent = "data_visualization"
	if err := st.UpdateTurn(ctx, turn); err != nil {
		t.Fatalf("awaiting_input -> routed failed: %v", err)
	}
	turn.State = store.StateExecuting
	if err := st.UpdateTurn(ctx, turn); err != nil {
		t.Fatalf("routed -> executing failed: %v", err)
	}
	turn.State = store.StateCompleted
	turn.Response = "done"
	if err := st.UpdateTurn(ctx, turn); err != nil {
		t.Fatalf("executing -> completed failed: %v", err)
	}

	turn.State = store.StateExecuting
	if err := st.UpdateTurn(ctx, turn); err == nil {
		t.Fatal("expected transitions out of a terminal state to be rejected")
	}
}

func TestRecentTurnsReturnsChronologicalTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewTurn(t, st, "conv-1", "first")
	second := testsupport.NewTurn(t, st, "conv-1", "second")
	third := testsupport.NewTurn(t, st, "conv-1", "third")
	testsupport.NewTurn(t, st, "conv-2", "other conversation")

	turns, err := st.RecentTurns(ctx, "conv-1", 2)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].ID != second.ID || turns[1].ID != third.ID {
		t.Fatalf("expected chronological tail [%d %d], got [%d %d]",
			second.ID, third.ID, turns[0].ID, turns[1].ID)
	}
	_ = first
}

func TestFeatureCacheRoundTripAndInvalidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	vectors := []*features.Vector{
		{
			SessionID:  "s01",
			Label:      "OK",
			SensorName: "IIS3DWB",
			SensorType: "ACC",
			Values:     map[string]float64{"rms": 1.5, "mean": 0.1},
		},
		{
			SessionID:  "s02",
			Label:      "KO",
			SensorName: "IIS3DWB",
			SensorType: "ACC",
			Values:     map[string]float64{"rms": 9.5, "mean": 0.2},
		},
	}
	if err := st.StoreVectors(ctx, "fp-a", vectors); err != nil {
		t.Fatalf("StoreVectors failed: %v", err)
	}

	cached, err := st.CachedVectors(ctx, "fp-a")
	if err != nil {
		t.Fatalf("CachedVectors failed: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("expected 2 cached vectors, got %d", len(cached))
	}
	if cached[0].SessionID != "s01" || cached[0].Values["rms"] != 1.5 {
		t.Fatalf("unexpected first cached vector %+v", cached[0])
	}

	other, err := st.CachedVectors(ctx, "fp-b")
	if err != nil {
		t.Fatalf("CachedVectors for other fingerprint failed: %v", err)
	}
	if other != nil {
		t.Fatalf("expected no vectors for unknown fingerprint, got %d", len(other))
	}

	if err := st.StoreVectors(ctx, "fp-b", vectors[:1]); err != nil {
		t.Fatalf("StoreVectors with new fingerprint failed: %v", err)
	}
	stale, err := st.CachedVectors(ctx, "fp-a")
	if err != nil {
		t.Fatalf("CachedVectors after invalidation failed: %v", err)
	}
	if stale != nil {
		t.Fatal("expected old fingerprint entries to be dropped")
	}
}

func TestFailStaleExecuting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	turn := testsupport.NewTurn(t, st, "conv-1", "analyze")
	turn.State = store.StateRouted
	if err := st.UpdateTurn(ctx, turn); err != nil {
		t.Fatalf("to routed: %v", err)
	}
	turn.State = store.StateExecuting
	if err := st.UpdateTurn(ctx, turn); err != nil {
		t.Fatalf("to executing: %v", err)
	}

	affected, err := st.FailStaleExecuting(ctx, time.Now().Add(time.Hour), "assistant restarted")
	if err != nil {
		t.Fatalf("FailStaleExecuting failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 stale turn, got %d", affected)
	}
	failed, err := st.GetTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if failed.State != store.StateFailed || failed.ErrorMessage != "assistant restarted" {
		t.Fatalf("unexpected turn after reclaim %+v", failed)
	}
}

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	path := st.Path()
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("raw close failed: %v", err)
	}

	_, err = store.Open(cfg)
	if err == nil {
		t.Fatal("expected schema mismatch error")
	}
	if !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

package analysis_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"faultscope/internal/analysis"
	"faultscope/internal/features"
	"faultscope/internal/services"
)

func vec(session, label, sensor, sensorType string, overrides map[string]float64) *features.Vector {
	values := map[string]float64{}
	for _, name := range features.Names() {
		values[name] = 0.5
	}
	for name, value := range overrides {
		values[name] = value
	}
	return &features.Vector{
		SessionID:  session,
		Label:      label,
		SensorName: sensor,
		SensorType: sensorType,
		Values:     values,
	}
}

// separableVectors builds a dataset where only VIB_ACC rms separates the
// classes; every other column is constant.
func separableVectors(perClass int) []*features.Vector {
	var out []*features.Vector
	for i := 0; i < perClass; i++ {
		okID := fmt.Sprintf("ok%02d", i)
		koID := fmt.Sprintf("ko%02d", i)
		out = append(out,
			vec(okID, "OK", "VIB", "ACC", map[string]float64{features.FeatureRMS: 1.0 + 0.01*float64(i)}),
			vec(okID, "OK", "MIC", "AUD", nil),
			vec(koID, "KO", "VIB", "ACC", map[string]float64{features.FeatureRMS: 10.0 + 0.01*float64(i)}),
			vec(koID, "KO", "MIC", "AUD", nil),
		)
	}
	return out
}

func TestAnalyzeRanksSeparatingFeatureFirst(t *testing.T) {
	result, err := analysis.Analyze(separableVectors(8), analysis.Params{
		Algorithm: analysis.AlgorithmRandomForest,
		OKLabel:   "OK",
		KOLabel:   "KO",
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	top := result.Ranking[0]
	if top.Feature != features.FeatureRMS || top.Sensor != "VIB_ACC" {
		t.Fatalf("expected VIB_ACC rms on top, got %s/%s", top.Sensor, top.Feature)
	}
	if top.Importance < 0.99 {
		t.Fatalf("expected importance concentrated on rms, got %v", top.Importance)
	}
	if top.Accuracy < 0.99 {
		t.Fatalf("expected near-perfect accuracy on separable data, got %v", top.Accuracy)
	}
	if result.BestSensor() != "VIB_ACC" {
		t.Fatalf("expected VIB_ACC as best sensor, got %s", result.BestSensor())
	}
	if !result.Diagnostics.CrossValidated || result.Diagnostics.FoldsUsed < 2 {
		t.Fatalf("expected cross-validated diagnostics, got %+v", result.Diagnostics)
	}
	if result.Diagnostics.OKSessions != 8 || result.Diagnostics.KOSessions != 8 {
		t.Fatalf("unexpected class counts %+v", result.Diagnostics)
	}
}

func TestAnalyzeOtherAlgorithmsAgreeOnSeparableData(t *testing.T) {
	for _, algorithm := range []string{analysis.AlgorithmDecisionTree, analysis.AlgorithmLogistic} {
		result, err := analysis.Analyze(separableVectors(8), analysis.Params{
			Algorithm: algorithm,
			OKLabel:   "OK",
			KOLabel:   "KO",
		})
		if err != nil {
			t.Fatalf("%s: Analyze returned error: %v", algorithm, err)
		}
		top := result.Ranking[0]
		if top.Feature != features.FeatureRMS || top.Sensor != "VIB_ACC" {
			t.Fatalf("%s: expected VIB_ACC rms on top, got %s/%s", algorithm, top.Sensor, top.Feature)
		}
		if top.Accuracy < 0.9 {
			t.Fatalf("%s: expected high accuracy, got %v", algorithm, top.Accuracy)
		}
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	params := analysis.Params{Algorithm: analysis.AlgorithmRandomForest, OKLabel: "OK", KOLabel: "KO", Seed: 42}

	first, err := analysis.Analyze(separableVectors(6), params)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := analysis.Analyze(separableVectors(6), params)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if len(first.Ranking) != len(second.Ranking) {
		t.Fatalf("ranking lengths differ: %d vs %d", len(first.Ranking), len(second.Ranking))
	}
	for i := range first.Ranking {
		a, b := first.Ranking[i], second.Ranking[i]
		if a.Feature != b.Feature || a.Sensor != b.Sensor {
			t.Fatalf("ranking order differs at %d: %s/%s vs %s/%s", i, a.Sensor, a.Feature, b.Sensor, b.Feature)
		}
		if math.Abs(a.GlobalScore-b.GlobalScore) > 1e-12 {
			t.Fatalf("scores differ at %d: %v vs %v", i, a.GlobalScore, b.GlobalScore)
		}
	}
}

func TestAnalyzeRequiresBothClasses(t *testing.T) {
	vectors := []*features.Vector{
		vec("s01", "OK", "VIB", "ACC", nil),
		vec("s02", "OK", "VIB", "ACC", nil),
	}

	_, err := analysis.Analyze(vectors, analysis.Params{OKLabel: "OK", KOLabel: "KO"})
	if err == nil {
		t.Fatal("expected class-diversity error")
	}
	if !errors.Is(err, services.ErrClassDiversity) {
		t.Fatalf("expected class-diversity marker, got %v", err)
	}
}

func TestAnalyzeRejectsUnknownAlgorithm(t *testing.T) {
	_, err := analysis.Analyze(separableVectors(2), analysis.Params{
		Algorithm: "svm",
		OKLabel:   "OK",
		KOLabel:   "KO",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestBuildTableRejectsRaggedSensorSets(t *testing.T) {
	vectors := []*features.Vector{
		vec("s01", "OK", "VIB", "ACC", nil),
		vec("s01", "OK", "MIC", "AUD", nil),
		vec("s02", "KO", "VIB", "ACC", nil),
	}

	_, err := analysis.BuildTable(vectors, "OK", "KO")
	if err == nil {
		t.Fatal("expected ragged-table error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestBuildTableRejectsIncompleteVector(t *testing.T) {
	broken := vec("s01", "OK", "VIB", "ACC", nil)
	delete(broken.Values, features.FeatureKurtosis)
	vectors := []*features.Vector{
		broken,
		vec("s02", "KO", "VIB", "ACC", nil),
	}

	_, err := analysis.BuildTable(vectors, "OK", "KO")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestBuildTableOrdersRowsAndColumns(t *testing.T) {
	vectors := []*features.Vector{
		vec("s02", "KO", "VIB", "ACC", map[string]float64{features.FeatureMean: 2}),
		vec("s01", "OK", "VIB", "ACC", map[string]float64{features.FeatureMean: 1}),
	}

	table, err := analysis.BuildTable(vectors, "OK", "KO")
	if err != nil {
		t.Fatalf("BuildTable returned error: %v", err)
	}
	if table.SessionIDs[0] != "s01" || table.SessionIDs[1] != "s02" {
		t.Fatalf("expected sorted session rows, got %v", table.SessionIDs)
	}
	if table.Classes[0] != 0 || table.Classes[1] != 1 {
		t.Fatalf("unexpected classes %v", table.Classes)
	}
	if got := table.Value(0, "VIB_ACC", features.FeatureMean); got != 1 {
		t.Fatalf("unexpected cell value %v", got)
	}
	if got := analysis.QualifiedColumn("VIB_ACC", "rms"); got != "VIB_ACC_rms" {
		t.Fatalf("unexpected qualified column %q", got)
	}
}

package catalog_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"faultscope/internal/catalog"
	"faultscope/internal/services"
)

type sensorSpec struct {
	key  string
	rate float64
}

func writeSession(t *testing.T, root, label, id, condition, fault string, sensors []sensorSpec) string {
	t.Helper()
	sessionPath := filepath.Join(root, label, id)
	if err := os.MkdirAll(sessionPath, 0o755); err != nil {
		t.Fatalf("mkdir session: %v", err)
	}

	sensorDocs := map[string]any{}
	for _, sensor := range sensors {
		entry := map[string]any{
			"units":   "g",
			"columns": []string{"Time [s]", "X [g]", "Y [g]"},
		}
		if sensor.rate > 0 {
			entry["sampling_rate_hz"] = sensor.rate
		}
		sensorDocs[sensor.key] = entry
		dataPath := filepath.Join(sessionPath, sensor.key+".csv")
		if err := os.WriteFile(dataPath, []byte("Time,X,Y\n0,1,2\n"), 0o644); err != nil {
			t.Fatalf("write sensor file: %v", err)
		}
	}

	doc := map[string]any{
		"session_info": map[string]any{
			"condition":      condition,
			"fault_detail":   fault,
			"acquisition_id": "acq-" + id,
		},
		"sensors": sensorDocs,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sessionPath, "metadata.json"), raw, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return sessionPath
}

func TestIndexBuildsCatalogAndVocabulary(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "OK", "s01", "nominal", "none", []sensorSpec{
		{key: "IIS3DWB_ACC", rate: 26667},
		{key: "IMP23ABSU_MIC", rate: 192000},
	})
	writeSession(t, root, "KO", "s02", "degraded", "bearing_wear", []sensorSpec{
		{key: "IIS3DWB_ACC", rate: 26667},
	})

	cat, warnings, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("Index returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if got := cat.Labels(); len(got) != 2 || got[0] != "KO" || got[1] != "OK" {
		t.Fatalf("expected sorted labels [KO OK], got %v", got)
	}
	if cat.SessionCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", cat.SessionCount())
	}

	session, ok := cat.SessionByID("s01")
	if !ok {
		t.Fatal("expected session s01")
	}
	if session.AcquisitionID != "acq-s01" {
		t.Fatalf("unexpected acquisition id %q", session.AcquisitionID)
	}
	if len(session.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(session.Streams))
	}
	stream, ok := session.Stream("IIS3DWB_ACC")
	if !ok {
		t.Fatal("expected IIS3DWB_ACC stream")
	}
	if stream.SensorName != "IIS3DWB" || stream.SensorType != "ACC" {
		t.Fatalf("unexpected name/type %q/%q", stream.SensorName, stream.SensorType)
	}
	if stream.SamplingRateHz != 26667 {
		t.Fatalf("unexpected sampling rate %v", stream.SamplingRateHz)
	}

	vocab := cat.Vocabulary()
	if len(vocab.SensorNames) != 2 || vocab.SensorNames[0] != "IIS3DWB" || vocab.SensorNames[1] != "IMP23ABSU" {
		t.Fatalf("unexpected sensor names %v", vocab.SensorNames)
	}
	if len(vocab.SensorTypes) != 2 || vocab.SensorTypes[0] != "ACC" || vocab.SensorTypes[1] != "MIC" {
		t.Fatalf("unexpected sensor types %v", vocab.SensorTypes)
	}
	if len(vocab.Conditions) != 2 || vocab.Conditions[0] != "degraded" {
		t.Fatalf("unexpected conditions %v", vocab.Conditions)
	}
	if len(vocab.FaultDetails) != 2 || vocab.FaultDetails[0] != "bearing_wear" {
		t.Fatalf("unexpected fault details %v", vocab.FaultDetails)
	}
}

func TestIndexExcludesBadSessionsWithOneWarningEach(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "OK", "good", "nominal", "none", []sensorSpec{{key: "ISM330DHCX_GYRO", rate: 6667}})

	noMetadata := filepath.Join(root, "OK", "no_metadata")
	if err := os.MkdirAll(noMetadata, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	badJSON := filepath.Join(root, "OK", "bad_json")
	if err := os.MkdirAll(badJSON, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badJSON, "metadata.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat, warnings, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("Index returned error: %v", err)
	}
	if cat.SessionCount() != 1 {
		t.Fatalf("expected only the good session, got %d", cat.SessionCount())
	}
	if len(warnings) != 2 {
		t.Fatalf("expected exactly one warning per bad session, got %v", warnings)
	}
	seen := map[string]int{}
	for _, warning := range warnings {
		if warning.Sensor != "" {
			t.Fatalf("expected session-level warnings, got %v", warning)
		}
		seen[warning.SessionPath]++
	}
	if seen[noMetadata] != 1 || seen[badJSON] != 1 {
		t.Fatalf("unexpected warning distribution %v", seen)
	}
}

func TestIndexSkipsBrokenStreamsButKeepsSession(t *testing.T) {
	root := t.TempDir()
	sessionPath := writeSession(t, root, "KO", "s10", "degraded", "imbalance", []sensorSpec{
		{key: "IIS3DWB_ACC", rate: 26667},
		{key: "STTS22H_TEMP", rate: 0}, // invalid sampling rate
	})
	// Referenced in metadata but absent on disk.
	meta := filepath.Join(sessionPath, "metadata.json")
	raw, err := os.ReadFile(meta)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	doc["sensors"].(map[string]any)["IMP23ABSU_MIC"] = map[string]any{"sampling_rate_hz": 192000.0}
	raw, err = json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	if err := os.WriteFile(meta, raw, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	cat, warnings, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("Index returned error: %v", err)
	}
	session, ok := cat.SessionByID("s10")
	if !ok {
		t.Fatal("expected session to survive stream problems")
	}
	if len(session.Streams) != 1 || session.Streams[0].Key != "IIS3DWB_ACC" {
		t.Fatalf("expected only the valid stream, got %+v", session.Streams)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 stream warnings, got %v", warnings)
	}
	for _, warning := range warnings {
		if warning.Sensor == "" {
			t.Fatalf("expected stream-level warning, got %v", warning)
		}
	}
}

func TestIndexIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "OK", "s01", "nominal", "none", []sensorSpec{{key: "IIS3DWB_ACC", rate: 26667}})
	writeSession(t, root, "KO", "s02", "degraded", "misalignment", []sensorSpec{{key: "IIS3DWB_ACC", rate: 26667}})

	first, _, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("first Index: %v", err)
	}
	second, _, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Fatalf("fingerprints differ: %s vs %s", first.Fingerprint(), second.Fingerprint())
	}
	if first.SessionCount() != second.SessionCount() {
		t.Fatalf("session counts differ: %d vs %d", first.SessionCount(), second.SessionCount())
	}
}

func TestIndexMissingRoot(t *testing.T) {
	_, _, err := catalog.Index(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestSelectSessionPriorityAndDeterminism(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "KO", "s20", "degraded", "bearing_wear", []sensorSpec{{key: "IIS3DWB_ACC", rate: 26667}})
	writeSession(t, root, "KO", "s21", "degraded", "bearing_wear", []sensorSpec{{key: "IIS3DWB_ACC", rate: 26667}})
	writeSession(t, root, "OK", "s22", "nominal", "none", []sensorSpec{{key: "IIS3DWB_ACC", rate: 26667}})

	cat, _, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	byAcq, ok := cat.SelectSession(catalog.SessionFilter{SessionID: "acq-s21"})
	if !ok || byAcq.ID != "s21" {
		t.Fatalf("expected acquisition-id lookup to find s21, got %+v ok=%v", byAcq, ok)
	}

	first, ok := cat.SelectSession(catalog.SessionFilter{Condition: "degraded"})
	if !ok || first.ID != "s20" {
		t.Fatalf("expected first degraded session s20, got %+v ok=%v", first, ok)
	}
	again, _ := cat.SelectSession(catalog.SessionFilter{Condition: "degraded"})
	if again.ID != first.ID {
		t.Fatalf("selection not deterministic: %s vs %s", again.ID, first.ID)
	}

	if _, ok := cat.SelectSession(catalog.SessionFilter{Condition: "unknown"}); ok {
		t.Fatal("expected no match for unknown condition")
	}

	byLabel, ok := cat.SelectSession(catalog.SessionFilter{Label: "ok"})
	if !ok || byLabel.ID != "s22" {
		t.Fatalf("expected case-insensitive label match s22, got %+v ok=%v", byLabel, ok)
	}
}

func TestResolveVocabularyIgnoresCase(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "OK", "s01", "nominal", "none", []sensorSpec{{key: "IMP23ABSU_MIC", rate: 192000}})

	cat, _, err := catalog.Index(root)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	name, ok := cat.ResolveSensorName("imp23absu")
	if !ok || name != "IMP23ABSU" {
		t.Fatalf("expected canonical sensor name, got %q ok=%v", name, ok)
	}
	if _, ok := cat.ResolveSensorName("nonexistent"); ok {
		t.Fatal("expected no match for unknown sensor")
	}
	sensorType, ok := cat.ResolveSensorType("mic")
	if !ok || sensorType != "MIC" {
		t.Fatalf("expected canonical sensor type, got %q ok=%v", sensorType, ok)
	}
}

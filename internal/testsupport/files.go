package testsupport

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// SensorSpec describes one synthetic sensor stream to place in a test
// session. Columns must start with Time; Rows are aligned sample rows.
type SensorSpec struct {
	Key     string
	Rate    float64
	Units   string
	Columns []string
	Rows    [][]float64
}

// SineSensor builds a single-axis sensor whose value column is a sine of
// the given frequency and amplitude with a small DC offset per label use.
func SineSensor(key string, rate, freqHz, amplitude, offset float64, n int) SensorSpec {
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		rows[i] = []float64{t, offset + amplitude*math.Sin(2*math.Pi*freqHz*t)}
	}
	return SensorSpec{
		Key:     key,
		Rate:    rate,
		Units:   "g",
		Columns: []string{"Time", "A_x [g]"},
		Rows:    rows,
	}
}

// WriteSession materializes one session directory with metadata.json and
// a CSV file per sensor, returning the session path.
func WriteSession(t testing.TB, root, label, session, condition, fault string, sensors ...SensorSpec) string {
	t.Helper()

	sessionPath := filepath.Join(root, label, session)
	if err := os.MkdirAll(sessionPath, 0o755); err != nil {
		t.Fatalf("mkdir session %s: %v", sessionPath, err)
	}

	sensorDocs := map[string]any{}
	for _, sensor := range sensors {
		units := sensor.Units
		if units == "" {
			units = "g"
		}
		sensorDocs[sensor.Key] = map[string]any{
			"sensor_name":      strings.SplitN(sensor.Key, "_", 2)[0],
			"sensor_type":      strings.SplitN(sensor.Key, "_", 2)[1],
			"units":            units,
			"columns":          sensor.Columns,
			"sampling_rate_hz": sensor.Rate,
		}
		writeCSV(t, filepath.Join(sessionPath, sensor.Key+".csv"), sensor.Columns, sensor.Rows)
	}

	doc := map[string]any{
		"session_info": map[string]any{
			"condition":      condition,
			"fault_detail":   fault,
			"acquisition_id": "acq-" + session,
		},
		"sensors": sensorDocs,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal metadata for %s: %v", sessionPath, err)
	}
	if err := os.WriteFile(filepath.Join(sessionPath, "metadata.json"), raw, 0o644); err != nil {
		t.Fatalf("write metadata for %s: %v", sessionPath, err)
	}
	return sessionPath
}

// WriteDataset builds a small two-class dataset with the given number of
// sessions per label. OK sessions carry a low-frequency low-amplitude
// sine, KO sessions a higher-frequency high-amplitude one, so analyses
// over the tree separate cleanly.
func WriteDataset(t testing.TB, root string, perClass int) {
	t.Helper()
	for i := 0; i < perClass; i++ {
		WriteSession(t, root, "OK", fmt.Sprintf("ok_%03d", i), "nominal", "none",
			SineSensor("IIS3DWB_ACC", 1000, 35, 1.0+0.01*float64(i), 0, 256))
		WriteSession(t, root, "KO", fmt.Sprintf("ko_%03d", i), "degraded", "bearing_wear",
			SineSensor("IIS3DWB_ACC", 1000, 140, 6.0+0.01*float64(i), 0, 256))
	}
}

func writeCSV(t testing.TB, path string, columns []string, rows [][]float64) {
	t.Helper()

	var b strings.Builder
	b.WriteString(strings.Join(columns, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv %s: %v", path, err)
	}
}

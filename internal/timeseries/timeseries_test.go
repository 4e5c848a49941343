package timeseries_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"faultscope/internal/catalog"
	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

func sessionWithFile(t *testing.T, key, fileName, content string) *catalog.Session {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write data file: %v", err)
	}
	name, sensorType, _ := splitKey(key)
	return &catalog.Session{
		ID:    "s01",
		Label: "OK",
		Path:  dir,
		Streams: []*catalog.SensorStream{{
			Key:            key,
			SensorName:     name,
			SensorType:     sensorType,
			Units:          "g",
			SamplingRateHz: 100,
			FilePath:       path,
		}},
	}
}

func splitKey(key string) (string, string, bool) {
	for i := range key {
		if key[i] == '_' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

func TestLoadCSVSeriesDropsTagColumns(t *testing.T) {
	content := "Time,A_x [g],A_y [g],SW_TAG_0\n" +
		"0.00,1.0,4.0,0\n" +
		"0.01,2.0,5.0,0\n" +
		"0.02,3.0,6.0,1\n"
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", content)

	series, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", series.Len())
	}
	if series.SensorName != "IIS3DWB" || series.SensorType != "ACC" {
		t.Fatalf("unexpected descriptor %s/%s", series.SensorName, series.SensorType)
	}
	if len(series.Columns) != 2 {
		t.Fatalf("expected tag column dropped, got %v", series.ColumnNames())
	}
	column, ok := series.Column("A_x [g]")
	if !ok {
		t.Fatalf("expected A_x column, have %v", series.ColumnNames())
	}
	if column.Values[2] != 3.0 {
		t.Fatalf("unexpected value %v", column.Values[2])
	}
	if series.Time[1] != 0.01 {
		t.Fatalf("unexpected time value %v", series.Time[1])
	}
	if got := series.Duration(); got < 0.0199 || got > 0.0201 {
		t.Fatalf("unexpected duration %v", got)
	}
}

func TestLoadMissingSensorFails(t *testing.T) {
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", "Time,A_x\n0,1\n")

	_, err := timeseries.Load(session, "IMP23ABSU", "MIC")
	if err == nil {
		t.Fatal("expected error for missing sensor")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestLoadRejectsNonMonotonicTime(t *testing.T) {
	content := "Time,A_x\n0.0,1\n0.2,2\n0.1,3\n"
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", content)

	_, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if err == nil {
		t.Fatal("expected error for decreasing time")
	}
	if !errors.Is(err, services.ErrMalformedData) {
		t.Fatalf("expected malformed-data marker, got %v", err)
	}
}

func TestLoadRejectsMissingTimeColumn(t *testing.T) {
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", "A_x,A_y\n1,2\n")

	_, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if !errors.Is(err, services.ErrMalformedData) {
		t.Fatalf("expected malformed-data marker, got %v", err)
	}
}

func TestLoadRejectsMissingValueColumns(t *testing.T) {
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", "Time,SW_TAG_0\n0,1\n")

	_, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if !errors.Is(err, services.ErrMalformedData) {
		t.Fatalf("expected malformed-data marker, got %v", err)
	}
}

func TestLoadRejectsNonNumericCell(t *testing.T) {
	session := sessionWithFile(t, "IIS3DWB_ACC", "IIS3DWB_ACC.csv", "Time,A_x\n0,1\n0.01,oops\n")

	_, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if !errors.Is(err, services.ErrMalformedData) {
		t.Fatalf("expected malformed-data marker, got %v", err)
	}
}

func TestLoadParquetSeries(t *testing.T) {
	type row struct {
		Time float64 `parquet:"Time"`
		Ax   float64 `parquet:"A_x"`
		Ay   float64 `parquet:"A_y"`
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "IIS3DWB_ACC.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet: %v", err)
	}
	writer := parquet.NewGenericWriter[row](f)
	rows := []row{
		{Time: 0.00, Ax: 1, Ay: -1},
		{Time: 0.01, Ax: 2, Ay: -2},
		{Time: 0.02, Ax: 3, Ay: -3},
		{Time: 0.03, Ax: 4, Ay: -4},
	}
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close parquet file: %v", err)
	}

	session := &catalog.Session{
		ID:    "s02",
		Label: "KO",
		Path:  dir,
		Streams: []*catalog.SensorStream{{
			Key:            "IIS3DWB_ACC",
			SensorName:     "IIS3DWB",
			SensorType:     "ACC",
			SamplingRateHz: 100,
			FilePath:       path,
		}},
	}

	series, err := timeseries.Load(session, "IIS3DWB", "ACC")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if series.Len() != 4 {
		t.Fatalf("expected 4 samples, got %d", series.Len())
	}
	ax, ok := series.Column("A_x")
	if !ok {
		t.Fatalf("expected A_x column, have %v", series.ColumnNames())
	}
	if ax.Values[3] != 4 {
		t.Fatalf("unexpected value %v", ax.Values[3])
	}
	ay, _ := series.Column("A_y")
	if ay.Values[0] != -1 {
		t.Fatalf("unexpected value %v", ay.Values[0])
	}
}

package timeseries

import (
	"fmt"
	"path/filepath"
	"strings"

	"faultscope/internal/catalog"
	"faultscope/internal/services"
)

// table is the raw decoded file before shape validation.
type table struct {
	names []string
	cols  [][]float64
}

// Load resolves a sensor within a session and loads its stream. The
// sensor type may be empty when the name alone is unambiguous enough;
// the first matching stream in key order wins.
func Load(session *catalog.Session, sensorName, sensorType string) (*Series, error) {
	stream, ok := session.StreamByNameType(sensorName, sensorType)
	if !ok {
		detail := sensorName
		if sensorType != "" {
			detail = sensorName + "_" + sensorType
		}
		return nil, services.Wrap(services.ErrNotFound, "timeseries", "load",
			fmt.Sprintf("sensor %s not present in session %s", detail, session.ID), nil)
	}
	return LoadStream(session, stream)
}

// LoadStream loads one catalog stream into an aligned Series. Loading is
// read-only; a malformed file yields an error and no partial series.
func LoadStream(session *catalog.Session, stream *catalog.SensorStream) (*Series, error) {
	var tbl *table
	var err error
	switch ext := strings.ToLower(filepath.Ext(stream.FilePath)); ext {
	case ".csv":
		tbl, err = readCSVTable(stream.FilePath)
	case ".parquet":
		tbl, err = readParquetTable(stream.FilePath)
	default:
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "load",
			fmt.Sprintf("unsupported data format %q for %s", ext, stream.FilePath), nil)
	}
	if err != nil {
		return nil, err
	}
	return buildSeries(session, stream, tbl)
}

func buildSeries(session *catalog.Session, stream *catalog.SensorStream, tbl *table) (*Series, error) {
	timeIdx := -1
	for i, name := range tbl.names {
		if isTimeHeader(name) {
			timeIdx = i
			break
		}
	}
	if timeIdx == -1 {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "load",
			fmt.Sprintf("%s has no Time column", stream.FilePath), nil)
	}

	timeValues := tbl.cols[timeIdx]
	for i := 1; i < len(timeValues); i++ {
		if timeValues[i] < timeValues[i-1] {
			return nil, services.Wrap(services.ErrMalformedData, "timeseries", "load",
				fmt.Sprintf("%s Time column decreases at row %d", stream.FilePath, i), nil)
		}
	}

	columns := make([]Column, 0, len(tbl.names)-1)
	for i, name := range tbl.names {
		if i == timeIdx || isTagHeader(name) {
			continue
		}
		columns = append(columns, Column{Name: name, Values: tbl.cols[i]})
	}
	if len(columns) == 0 {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "load",
			fmt.Sprintf("%s has no value columns", stream.FilePath), nil)
	}

	return &Series{
		SessionID:      session.ID,
		Label:          session.Label,
		SensorKey:      stream.Key,
		SensorName:     stream.SensorName,
		SensorType:     stream.SensorType,
		Units:          stream.Units,
		SamplingRateHz: stream.SamplingRateHz,
		Time:           timeValues,
		Columns:        columns,
	}, nil
}

package timeseries

import "strings"

// Series is one sensor stream loaded into memory: a time column in
// seconds plus one or more aligned value columns. A Series is built for
// the duration of a single request and never written back to disk.
type Series struct {
	SessionID      string
	Label          string
	SensorKey      string
	SensorName     string
	SensorType     string
	Units          string
	SamplingRateHz float64
	Time           []float64
	Columns        []Column
}

// Column is one aligned value column. Name keeps the on-disk header,
// units suffix included.
type Column struct {
	Name   string
	Values []float64
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Time) }

// Duration returns the recording span in seconds, zero when fewer than
// two samples exist.
func (s *Series) Duration() float64 {
	if len(s.Time) < 2 {
		return 0
	}
	return s.Time[len(s.Time)-1] - s.Time[0]
}

// Column returns the value column with the given header name.
func (s *Series) Column(name string) (Column, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the value column headers in file order.
func (s *Series) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, column := range s.Columns {
		out[i] = column.Name
	}
	return out
}

// BaseName strips a units suffix from a column header, so "A_x [g]"
// becomes "A_x".
func BaseName(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return header
	}
	return fields[0]
}

// isTimeHeader reports whether a header names the time axis. Headers may
// carry a units suffix ("Time [s]").
func isTimeHeader(header string) bool {
	return BaseName(header) == "Time"
}

// isTagHeader reports whether a header names a firmware annotation
// column rather than measured data.
func isTagHeader(header string) bool {
	base := BaseName(header)
	return strings.HasPrefix(base, "SW_TAG") || strings.HasPrefix(base, "HW_TAG")
}

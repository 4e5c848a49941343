package plot

import (
	"fmt"

	"faultscope/internal/features"
	"faultscope/internal/timeseries"
)

// Kind distinguishes the two chart artifact shapes.
type Kind string

const (
	KindTimeSeries Kind = "time_series"
	KindSpectrum   Kind = "frequency_spectrum"
)

// DefaultMaxPoints bounds the number of points per chart series so
// artifacts stay practical to ship over the API. High-rate streams are
// decimated to this budget.
const DefaultMaxPoints = 2048

// Point is one (x, y) sample of a chart series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChartSeries is one named line of a chart.
type ChartSeries struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// ChartData is a render-ready chart artifact. It carries everything a
// front end needs to draw the figure; no pixels are produced here.
type ChartData struct {
	Kind      Kind          `json:"kind"`
	Title     string        `json:"title"`
	Subtitle  string        `json:"subtitle,omitempty"`
	XLabel    string        `json:"x_label"`
	YLabel    string        `json:"y_label"`
	XMax      float64       `json:"x_max,omitempty"`
	SessionID string        `json:"session_id"`
	Label     string        `json:"label"`
	Sensor    string        `json:"sensor"`
	Type      string        `json:"type"`
	Units     string        `json:"units,omitempty"`
	Series    []ChartSeries `json:"series"`
}

// TimeSeriesChart builds the raw-signal chart for one loaded stream: one
// line per value column over the recording's time axis.
func TimeSeriesChart(series *timeseries.Series, maxPoints int) *ChartData {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	chart := &ChartData{
		Kind:      KindTimeSeries,
		Title:     fmt.Sprintf("Sensor: %s | Type: %s", series.SensorName, series.SensorType),
		Subtitle:  fmt.Sprintf("Acquisition ID: %s", series.SessionID),
		XLabel:    "Time [seconds]",
		YLabel:    fmt.Sprintf("Value [%s]", orNA(series.Units)),
		SessionID: series.SessionID,
		Label:     series.Label,
		Sensor:    series.SensorName,
		Type:      series.SensorType,
		Units:     series.Units,
	}

	for _, column := range series.Columns {
		points := make([]Point, len(column.Values))
		for i, v := range column.Values {
			points[i] = Point{X: timeAt(series, i), Y: v}
		}
		chart.Series = append(chart.Series, ChartSeries{
			Name:   column.Name,
			Points: Downsample(points, maxPoints),
		})
	}
	return chart
}

// SpectrumChart builds the frequency-domain chart for one loaded stream:
// one line per value column, magnitudes up to the Nyquist frequency.
func SpectrumChart(series *timeseries.Series, maxPoints int) (*ChartData, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	chart := &ChartData{
		Kind:      KindSpectrum,
		Title:     fmt.Sprintf("Frequency Spectrum: %s (%s)", series.SensorName, series.SensorType),
		Subtitle:  fmt.Sprintf("Acquisition ID: %s", series.SessionID),
		XLabel:    "Frequency [Hz]",
		YLabel:    fmt.Sprintf("Magnitude [%s]", orNA(series.Units)),
		XMax:      series.SamplingRateHz / 2,
		SessionID: series.SessionID,
		Label:     series.Label,
		Sensor:    series.SensorName,
		Type:      series.SensorType,
		Units:     series.Units,
	}

	for _, column := range series.Columns {
		spectrum, err := features.ComputeSpectrum(column.Values, series.SamplingRateHz)
		if err != nil {
			return nil, err
		}
		points := make([]Point, len(spectrum.Frequencies))
		for i := range spectrum.Frequencies {
			points[i] = Point{X: spectrum.Frequencies[i], Y: spectrum.Magnitudes[i]}
		}
		chart.Series = append(chart.Series, ChartSeries{
			Name:   column.Name,
			Points: Downsample(points, maxPoints),
		})
	}
	return chart, nil
}

// Downsample decimates a point series to at most maxPoints, always
// keeping the first and last sample so the x extent is preserved.
func Downsample(points []Point, maxPoints int) []Point {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}
	if maxPoints == 1 {
		return points[:1]
	}

	out := make([]Point, 0, maxPoints)
	step := float64(len(points)-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= len(points) {
			idx = len(points) - 1
		}
		out = append(out, points[idx])
	}
	out[len(out)-1] = points[len(points)-1]
	return out
}

func timeAt(series *timeseries.Series, i int) float64 {
	if i < len(series.Time) {
		return series.Time[i]
	}
	if series.SamplingRateHz > 0 {
		return float64(i) / series.SamplingRateHz
	}
	return float64(i)
}

func orNA(units string) string {
	if units == "" {
		return "N/A"
	}
	return units
}

package plot_test

import (
	"errors"
	"math"
	"testing"

	"faultscope/internal/plot"
	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

func sineStream(rate, freqHz float64, n int) *timeseries.Series {
	time := make([]float64, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		time[i] = t
		values[i] = 2 * math.Sin(2*math.Pi*freqHz*t)
	}
	return &timeseries.Series{
		SessionID:      "sess_001",
		Label:          "KO",
		SensorKey:      "IIS3DWB_ACC",
		SensorName:     "IIS3DWB",
		SensorType:     "ACC",
		Units:          "g",
		SamplingRateHz: rate,
		Time:           time,
		Columns:        []timeseries.Column{{Name: "A_x [g]", Values: values}},
	}
}

func TestTimeSeriesChartShapesSeries(t *testing.T) {
	stream := sineStream(1000, 50, 256)
	stream.Columns = append(stream.Columns, timeseries.Column{
		Name:   "A_y [g]",
		Values: make([]float64, 256),
	})

	chart := plot.TimeSeriesChart(stream, 0)
	if chart.Kind != plot.KindTimeSeries {
		t.Fatalf("unexpected kind %s", chart.Kind)
	}
	if chart.Title != "Sensor: IIS3DWB | Type: ACC" {
		t.Fatalf("unexpected title %q", chart.Title)
	}
	if chart.Subtitle != "Acquisition ID: sess_001" {
		t.Fatalf("unexpected subtitle %q", chart.Subtitle)
	}
	if chart.XLabel != "Time [seconds]" || chart.YLabel != "Value [g]" {
		t.Fatalf("unexpected axis labels %q / %q", chart.XLabel, chart.YLabel)
	}
	if len(chart.Series) != 2 {
		t.Fatalf("expected 2 chart series, got %d", len(chart.Series))
	}
	if chart.Series[0].Name != "A_x [g]" || chart.Series[1].Name != "A_y [g]" {
		t.Fatalf("unexpected series names %q, %q", chart.Series[0].Name, chart.Series[1].Name)
	}
	first := chart.Series[0].Points[0]
	if first.X != 0 {
		t.Fatalf("expected time axis starting at 0, got %v", first.X)
	}
	last := chart.Series[0].Points[len(chart.Series[0].Points)-1]
	if got, want := last.X, 255.0/1000.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected last time %v, got %v", want, got)
	}
}

func TestSpectrumChartPeaksAtSineFrequency(t *testing.T) {
	// 1024 samples at 1024 Hz puts 50 Hz exactly on a bin.
	chart, err := plot.SpectrumChart(sineStream(1024, 50, 1024), 0)
	if err != nil {
		t.Fatalf("SpectrumChart returned error: %v", err)
	}
	if chart.Kind != plot.KindSpectrum {
		t.Fatalf("unexpected kind %s", chart.Kind)
	}
	if chart.XMax != 512 {
		t.Fatalf("expected Nyquist x limit 512, got %v", chart.XMax)
	}

	points := chart.Series[0].Points
	best := points[0]
	for _, p := range points {
		if p.Y > best.Y {
			best = p
		}
	}
	if math.Abs(best.X-50) > 1 {
		t.Fatalf("expected spectral peak near 50 Hz, got %v", best.X)
	}
	if math.Abs(best.Y-2) > 0.1 {
		t.Fatalf("expected peak magnitude near 2, got %v", best.Y)
	}
}

func TestSpectrumChartRejectsShortStream(t *testing.T) {
	short := sineStream(1000, 50, 1)
	if _, err := plot.SpectrumChart(short, 0); !errors.Is(err, services.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	points := make([]plot.Point, 10000)
	for i := range points {
		points[i] = plot.Point{X: float64(i), Y: float64(i) * 2}
	}

	out := plot.Downsample(points, 100)
	if len(out) != 100 {
		t.Fatalf("expected 100 points, got %d", len(out))
	}
	if out[0] != points[0] {
		t.Fatalf("first point not preserved: %+v", out[0])
	}
	if out[len(out)-1] != points[len(points)-1] {
		t.Fatalf("last point not preserved: %+v", out[len(out)-1])
	}
	for i := 1; i < len(out); i++ {
		if out[i].X <= out[i-1].X {
			t.Fatalf("downsampled x not increasing at %d: %v <= %v", i, out[i].X, out[i-1].X)
		}
	}

	small := plot.Downsample(points[:5], 100)
	if len(small) != 5 {
		t.Fatalf("short series must pass through, got %d points", len(small))
	}
}

func TestTimeSeriesChartHonorsPointBudget(t *testing.T) {
	chart := plot.TimeSeriesChart(sineStream(1000, 50, 9000), 256)
	if len(chart.Series[0].Points) != 256 {
		t.Fatalf("expected 256 points after decimation, got %d", len(chart.Series[0].Points))
	}
}

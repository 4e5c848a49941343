package narrator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/stat"

	"faultscope/internal/analysis"
	"faultscope/internal/features"
	"faultscope/internal/timeseries"
)

// reportTopFeatures bounds the ranking table handed to the model so the
// prompt stays small.
const reportTopFeatures = 5

// ReportText renders one analysis result as the tool output block for
// narration: a sensor reliability table, a short diagnostics line, and
// the top predictive features by global weighted score.
func ReportText(result *analysis.Result) string {
	var b strings.Builder
	b.WriteString("### AUTOMATED ANALYSIS REPORT ###\n\n")

	b.WriteString("--- SENSOR RELIABILITY (Model Accuracy) ---\n")
	reliability := table.NewWriter()
	reliability.AppendHeader(table.Row{"Sensor", "Accuracy"})
	for _, score := range result.SensorScores {
		reliability.AppendRow(table.Row{score.Sensor, num(score.Accuracy, 3)})
	}
	b.WriteString(reliability.RenderMarkdown())
	b.WriteString("\n\n")

	d := result.Diagnostics
	fmt.Fprintf(&b, "Algorithm: %s | Sessions: %d (OK %d / KO %d) | ",
		analysis.DisplayName(d.Algorithm), d.Sessions, d.OKSessions, d.KOSessions)
	if d.CrossValidated {
		fmt.Fprintf(&b, "%d-fold cross-validation.", d.FoldsUsed)
	} else {
		b.WriteString("resubstitution estimate (too few sessions for cross-validation).")
	}
	b.WriteString("\nAccuracy values are indicative orderings, not a certified model.\n\n")

	b.WriteString("--- TOP PREDICTIVE FEATURES (Global Weighted Score) ---\n")
	top := table.NewWriter()
	top.AppendHeader(table.Row{"Sensor", "Feature", "Sensor_Accuracy", "Global_Score"})
	for _, ranked := range result.TopFeatures(reportTopFeatures) {
		top.AppendRow(table.Row{
			ranked.Sensor,
			ranked.Feature,
			num(ranked.Accuracy, 3),
			num(ranked.GlobalScore, 4),
		})
	}
	b.WriteString(top.RenderMarkdown())
	b.WriteString("\n")

	return b.String()
}

// SignalSummary condenses one loaded stream into the statistical profile
// the responder reads: per-axis magnitude, spread, shape, and trend.
func SignalSummary(series *timeseries.Series) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data Profile for %s (%s):\n", series.SensorName, series.SensorType)

	for _, column := range series.Columns {
		values := column.Values
		if len(values) == 0 {
			continue
		}

		mean := stat.Mean(values, nil)
		std := stat.StdDev(values, nil)
		skew := stat.Skew(values, nil)
		kurt := stat.ExKurtosis(values, nil)
		rms := rootMeanSquare(values)
		slope := trendSlope(series, values)

		trend := "stable/flat"
		if math.Abs(slope) >= 1e-4 {
			trend = "rising"
			if slope < 0 {
				trend = "falling"
			}
		}
		shape := "symmetric"
		if math.Abs(skew) >= 0.5 {
			shape = "right-leaning"
			if skew < 0 {
				shape = "left-leaning"
			}
		}

		fmt.Fprintf(&b, "- %s Axis: RMS=%s, Kurtosis=%s, Std=%s (thickness), Skewness=%s (%s), Slope=%s (%s), Mean=%s\n",
			timeseries.BaseName(column.Name),
			num(rms, 4), num(kurt, 2), num(std, 4), num(skew, 2), shape, num(slope, 6), trend, num(mean, 4))
	}
	return b.String()
}

// FrequencySummary condenses one spectrum into the profile the responder
// reads: dominant line, centroid, and the strongest peaks.
func FrequencySummary(spectrum *features.Spectrum, sensorName, sensorType string) string {
	peakFreq, peakMag := spectrum.Peak()

	var b strings.Builder
	fmt.Fprintf(&b, "Frequency Profile for %s (%s):\n", sensorName, sensorType)
	fmt.Fprintf(&b, "- Dominant Frequency: %s Hz (Magnitude: %s)\n", num(peakFreq, 2), num(peakMag, 4))
	fmt.Fprintf(&b, "- Spectral Centroid: %s Hz (Overall energy balance)\n", num(spectrum.Centroid(), 2))
	b.WriteString("- Top Peaks identified:\n")
	for _, peak := range spectrum.TopPeaks(3) {
		fmt.Fprintf(&b, "  * %s Hz (Mag: %s)\n", num(peak.FrequencyHz, 2), num(peak.Amplitude, 4))
	}
	return b.String()
}

// SignalContext is the header line for a time-series tool output.
func SignalContext(sessionID, label, okLabel string) string {
	condition := "Condition: KO (Faulty State)"
	if strings.EqualFold(label, okLabel) {
		condition = "Condition: OK (Normal State)"
	}
	return fmt.Sprintf("Analysis for Acquisition: **%s**\n%s\n", sessionID, condition)
}

// SpectrumContext is the header line for a frequency-spectrum tool output.
func SpectrumContext(label, okLabel string) string {
	if strings.EqualFold(label, okLabel) {
		return "This observation belongs to the OK (normal) category"
	}
	return "This observation belongs to the KO (faulty) category"
}

func rootMeanSquare(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(values)))
}

func trendSlope(series *timeseries.Series, values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	times := series.Time
	if len(times) < len(values) {
		times = make([]float64, len(values))
		rate := series.SamplingRateHz
		if rate <= 0 {
			rate = 1
		}
		for i := range times {
			times[i] = float64(i) / rate
		}
	}
	_, slope := stat.LinearRegression(times[:len(values)], values, nil, false)
	return slope
}

func num(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

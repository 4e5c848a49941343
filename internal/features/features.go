package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

// Canonical feature names. Every extracted vector carries exactly this
// set, so feature tables built from different sensors always align.
const (
	FeatureMean             = "mean"
	FeatureStd              = "std"
	FeatureSkewness         = "skewness"
	FeatureKurtosis         = "kurtosis"
	FeaturePeakToPeak       = "peak_to_peak"
	FeatureRMS              = "rms"
	FeatureFFTPeakFreq      = "fft_peak_freq"
	FeatureFFTPeakAmplitude = "fft_peak_amplitude"
)

// MinWindow is the hard floor on samples per stream; below it no
// meaningful statistics exist.
const MinWindow = 2

// Names returns the canonical feature names in presentation order.
func Names() []string {
	return []string{
		FeatureMean,
		FeatureStd,
		FeatureSkewness,
		FeatureKurtosis,
		FeaturePeakToPeak,
		FeatureRMS,
		FeatureFFTPeakFreq,
		FeatureFFTPeakAmplitude,
	}
}

// Vector is the fixed feature set extracted from one sensor stream of
// one session.
type Vector struct {
	SessionID  string
	Label      string
	SensorName string
	SensorType string
	Values     map[string]float64
}

// Value returns the named feature.
func (v *Vector) Value(name string) (float64, bool) {
	value, ok := v.Values[name]
	return value, ok
}

// Extract computes the fixed feature set for one loaded series. Streams
// shorter than minSamples (floored at MinWindow) are rejected so that
// downstream statistics never run on degenerate input. Multi-axis
// sensors are folded into per-sensor scalars: magnitude-like features
// combine axes by Euclidean norm, shape-like features by averaging, and
// the spectral peak is the strongest peak across all axes.
func Extract(series *timeseries.Series, minSamples int) (*Vector, error) {
	if minSamples < MinWindow {
		minSamples = MinWindow
	}
	if series.Len() < minSamples {
		return nil, services.Wrap(services.ErrInsufficientData, "features", "extract",
			fmt.Sprintf("sensor %s in session %s has %d samples, need at least %d",
				series.SensorKey, series.SessionID, series.Len(), minSamples), nil)
	}

	axes := make([]axisStats, 0, len(series.Columns))
	for _, column := range series.Columns {
		axes = append(axes, computeAxis(column.Values, series.SamplingRateHz))
	}

	return &Vector{
		SessionID:  series.SessionID,
		Label:      series.Label,
		SensorName: series.SensorName,
		SensorType: series.SensorType,
		Values:     foldAxes(axes),
	}, nil
}

type axisStats struct {
	mean       float64
	std        float64
	skewness   float64
	kurtosis   float64
	peakToPeak float64
	rms        float64
	peakFreq   float64
	peakAmp    float64
}

func computeAxis(values []float64, sampleRate float64) axisStats {
	stats := axisStats{
		mean:       stat.Mean(values, nil),
		std:        sanitize(stat.StdDev(values, nil)),
		skewness:   sanitize(stat.Skew(values, nil)),
		kurtosis:   sanitize(stat.ExKurtosis(values, nil)),
		peakToPeak: floats.Max(values) - floats.Min(values),
	}

	sumSquares := 0.0
	for _, v := range values {
		sumSquares += v * v
	}
	stats.rms = math.Sqrt(sumSquares / float64(len(values)))

	if spectrum, err := ComputeSpectrum(values, sampleRate); err == nil {
		stats.peakFreq, stats.peakAmp = spectrum.Peak()
	}
	return stats
}

// foldAxes reduces per-axis statistics to one scalar per feature. A
// single-axis sensor keeps its values untouched.
func foldAxes(axes []axisStats) map[string]float64 {
	if len(axes) == 1 {
		a := axes[0]
		return map[string]float64{
			FeatureMean:             a.mean,
			FeatureStd:              a.std,
			FeatureSkewness:         a.skewness,
			FeatureKurtosis:         a.kurtosis,
			FeaturePeakToPeak:       a.peakToPeak,
			FeatureRMS:              a.rms,
			FeatureFFTPeakFreq:      a.peakFreq,
			FeatureFFTPeakAmplitude: a.peakAmp,
		}
	}

	means := make([]float64, len(axes))
	stds := make([]float64, len(axes))
	peaks := make([]float64, len(axes))
	rmss := make([]float64, len(axes))
	skews := make([]float64, len(axes))
	kurts := make([]float64, len(axes))
	bestFreq, bestAmp := 0.0, math.Inf(-1)
	for i, a := range axes {
		means[i] = a.mean
		stds[i] = a.std
		peaks[i] = a.peakToPeak
		rmss[i] = a.rms
		skews[i] = a.skewness
		kurts[i] = a.kurtosis
		if a.peakAmp > bestAmp {
			bestFreq, bestAmp = a.peakFreq, a.peakAmp
		}
	}
	if math.IsInf(bestAmp, -1) {
		bestFreq, bestAmp = 0, 0
	}

	return map[string]float64{
		FeatureMean:             floats.Norm(means, 2),
		FeatureStd:              floats.Norm(stds, 2),
		FeatureSkewness:         stat.Mean(skews, nil),
		FeatureKurtosis:         stat.Mean(kurts, nil),
		FeaturePeakToPeak:       floats.Norm(peaks, 2),
		FeatureRMS:              floats.Norm(rmss, 2),
		FeatureFFTPeakFreq:      bestFreq,
		FeatureFFTPeakAmplitude: bestAmp,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

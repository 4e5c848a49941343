package features_test

import (
	"errors"
	"math"
	"testing"

	"faultscope/internal/features"
	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

func sineSeries(freqHz, amplitude, sampleRate float64, n int) *timeseries.Series {
	times := make([]float64, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		times[i] = t
		values[i] = amplitude * math.Sin(2*math.Pi*freqHz*t)
	}
	return &timeseries.Series{
		SessionID:      "s01",
		Label:          "OK",
		SensorKey:      "IIS3DWB_ACC",
		SensorName:     "IIS3DWB",
		SensorType:     "ACC",
		SamplingRateHz: sampleRate,
		Time:           times,
		Columns:        []timeseries.Column{{Name: "A_x [g]", Values: values}},
	}
}

func TestExtractSineWaveFindsSpectralPeak(t *testing.T) {
	const (
		freq       = 50.0
		amplitude  = 2.0
		sampleRate = 1000.0
		n          = 1000
	)
	series := sineSeries(freq, amplitude, sampleRate, n)

	vector, err := features.Extract(series, 0)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	binWidth := sampleRate / float64(n)
	peakFreq := vector.Values[features.FeatureFFTPeakFreq]
	if math.Abs(peakFreq-freq) > binWidth {
		t.Fatalf("peak frequency %v not within one bin of %v", peakFreq, freq)
	}
	peakAmp := vector.Values[features.FeatureFFTPeakAmplitude]
	if math.Abs(peakAmp-amplitude) > 0.05*amplitude {
		t.Fatalf("peak amplitude %v not within 5%% of %v", peakAmp, amplitude)
	}
	if mean := vector.Values[features.FeatureMean]; math.Abs(mean) > 1e-9 {
		t.Fatalf("expected near-zero mean, got %v", mean)
	}
	wantRMS := amplitude / math.Sqrt2
	if rms := vector.Values[features.FeatureRMS]; math.Abs(rms-wantRMS) > 0.01*wantRMS {
		t.Fatalf("expected RMS near %v, got %v", wantRMS, rms)
	}
	if ptp := vector.Values[features.FeaturePeakToPeak]; math.Abs(ptp-2*amplitude) > 0.01*2*amplitude {
		t.Fatalf("expected peak-to-peak near %v, got %v", 2*amplitude, ptp)
	}
}

func TestExtractVectorCarriesCanonicalNameSet(t *testing.T) {
	vector, err := features.Extract(sineSeries(10, 1, 100, 200), 0)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	names := features.Names()
	if len(vector.Values) != len(names) {
		t.Fatalf("expected %d features, got %d", len(names), len(vector.Values))
	}
	for _, name := range names {
		if _, ok := vector.Value(name); !ok {
			t.Fatalf("missing feature %q", name)
		}
	}
}

func TestExtractRejectsShortSeries(t *testing.T) {
	series := sineSeries(10, 1, 100, 3)

	_, err := features.Extract(series, 8)
	if err == nil {
		t.Fatal("expected error for short series")
	}
	if !errors.Is(err, services.ErrInsufficientData) {
		t.Fatalf("expected insufficient-data marker, got %v", err)
	}
}

func TestExtractConstantSeries(t *testing.T) {
	n := 64
	times := make([]float64, n)
	values := make([]float64, n)
	for i := range values {
		times[i] = float64(i) / 100
		values[i] = 3.5
	}
	series := &timeseries.Series{
		SessionID:      "s01",
		Label:          "OK",
		SensorName:     "STTS22H",
		SensorType:     "TEMP",
		SamplingRateHz: 100,
		Time:           times,
		Columns:        []timeseries.Column{{Name: "Temperature", Values: values}},
	}

	vector, err := features.Extract(series, 0)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got := vector.Values[features.FeatureStd]; got != 0 {
		t.Fatalf("expected zero std, got %v", got)
	}
	if got := vector.Values[features.FeatureSkewness]; got != 0 {
		t.Fatalf("expected sanitized skewness, got %v", got)
	}
	if got := vector.Values[features.FeatureKurtosis]; got != 0 {
		t.Fatalf("expected sanitized kurtosis, got %v", got)
	}
	if got := vector.Values[features.FeatureRMS]; math.Abs(got-3.5) > 1e-9 {
		t.Fatalf("expected RMS 3.5, got %v", got)
	}
	if got := vector.Values[features.FeatureFFTPeakAmplitude]; got > 1e-9 {
		t.Fatalf("expected flat spectrum, got peak %v", got)
	}
}

func TestExtractFoldsMultiAxisSensors(t *testing.T) {
	n := 512
	times := make([]float64, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / 1000
		times[i] = t
		x[i] = 3 + math.Sin(2*math.Pi*40*t)
		y[i] = 4 + math.Sin(2*math.Pi*40*t)
	}
	series := &timeseries.Series{
		SessionID:      "s02",
		Label:          "KO",
		SensorName:     "ISM330DHCX",
		SensorType:     "ACC",
		SamplingRateHz: 1000,
		Time:           times,
		Columns: []timeseries.Column{
			{Name: "A_x [g]", Values: x},
			{Name: "A_y [g]", Values: y},
		},
	}

	vector, err := features.Extract(series, 0)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	// Means fold as the magnitude of the (3, 4) mean vector.
	if got := vector.Values[features.FeatureMean]; math.Abs(got-5) > 0.05 {
		t.Fatalf("expected folded mean near 5, got %v", got)
	}
	if got := vector.Values[features.FeatureFFTPeakFreq]; math.Abs(got-40) > 1000.0/float64(n) {
		t.Fatalf("expected folded spectral peak near 40 Hz, got %v", got)
	}
}

func TestSpectrumCentroidAndTopPeaks(t *testing.T) {
	const (
		sampleRate = 1000.0
		n          = 1000
	)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		values[i] = 2*math.Sin(2*math.Pi*50*t) + math.Sin(2*math.Pi*120*t)
	}

	spectrum, err := features.ComputeSpectrum(values, sampleRate)
	if err != nil {
		t.Fatalf("ComputeSpectrum returned error: %v", err)
	}

	peaks := spectrum.TopPeaks(2)
	if len(peaks) != 2 {
		t.Fatalf("expected 2 peaks, got %d", len(peaks))
	}
	if math.Abs(peaks[0].FrequencyHz-50) > 1 || math.Abs(peaks[0].Amplitude-2) > 0.1 {
		t.Fatalf("unexpected first peak %+v", peaks[0])
	}
	if math.Abs(peaks[1].FrequencyHz-120) > 1 || math.Abs(peaks[1].Amplitude-1) > 0.1 {
		t.Fatalf("unexpected second peak %+v", peaks[1])
	}

	wantCentroid := (50.0*2 + 120.0*1) / 3.0
	if got := spectrum.Centroid(); math.Abs(got-wantCentroid) > 2 {
		t.Fatalf("expected centroid near %v, got %v", wantCentroid, got)
	}
}

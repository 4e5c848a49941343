package features

import (
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"faultscope/internal/services"
)

// Spectrum is the one-sided magnitude spectrum of a de-meaned signal.
// Index 0 is the DC bin; amplitudes are scaled by 2/n so a pure sine of
// amplitude A shows a peak close to A.
type Spectrum struct {
	Frequencies []float64
	Magnitudes  []float64
	SampleRate  float64
}

// SpectralPeak is one spectral line reported to narration and plotting.
type SpectralPeak struct {
	FrequencyHz float64
	Amplitude   float64
}

// ComputeSpectrum transforms one value column. The signal is de-meaned
// first so the DC bin does not dwarf the physical content.
func ComputeSpectrum(values []float64, sampleRate float64) (*Spectrum, error) {
	n := len(values)
	if n < MinWindow {
		return nil, services.Wrap(services.ErrInsufficientData, "features", "spectrum",
			fmt.Sprintf("%d samples, need at least %d", n, MinWindow), nil)
	}
	if sampleRate <= 0 {
		return nil, services.Wrap(services.ErrValidation, "features", "spectrum",
			fmt.Sprintf("non-positive sampling rate %v", sampleRate), nil)
	}

	mean := stat.Mean(values, nil)
	demeaned := make([]float64, n)
	for i, v := range values {
		demeaned[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, demeaned)

	frequencies := make([]float64, len(coeffs))
	magnitudes := make([]float64, len(coeffs))
	scale := 2.0 / float64(n)
	for i, coeff := range coeffs {
		frequencies[i] = fft.Freq(i) * sampleRate
		magnitudes[i] = cmplx.Abs(coeff) * scale
	}
	return &Spectrum{Frequencies: frequencies, Magnitudes: magnitudes, SampleRate: sampleRate}, nil
}

// Peak returns the dominant spectral line, excluding the DC bin. The
// lowest-frequency bin wins ties so the result is deterministic.
func (s *Spectrum) Peak() (freqHz, amplitude float64) {
	bestIdx := -1
	bestAmp := 0.0
	for i := 1; i < len(s.Magnitudes); i++ {
		if bestIdx == -1 || s.Magnitudes[i] > bestAmp {
			bestIdx, bestAmp = i, s.Magnitudes[i]
		}
	}
	if bestIdx == -1 {
		return 0, 0
	}
	return s.Frequencies[bestIdx], bestAmp
}

// Centroid returns the amplitude-weighted mean frequency, excluding the
// DC bin. Zero when the spectrum carries no energy.
func (s *Spectrum) Centroid() float64 {
	var weighted, total float64
	for i := 1; i < len(s.Magnitudes); i++ {
		weighted += s.Frequencies[i] * s.Magnitudes[i]
		total += s.Magnitudes[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// TopPeaks returns the k strongest spectral lines excluding DC, in
// descending amplitude order with frequency breaking ties.
func (s *Spectrum) TopPeaks(k int) []SpectralPeak {
	if k <= 0 || len(s.Magnitudes) < 2 {
		return nil
	}
	peaks := make([]SpectralPeak, 0, len(s.Magnitudes)-1)
	for i := 1; i < len(s.Magnitudes); i++ {
		peaks = append(peaks, SpectralPeak{FrequencyHz: s.Frequencies[i], Amplitude: s.Magnitudes[i]})
	}
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Amplitude != peaks[j].Amplitude {
			return peaks[i].Amplitude > peaks[j].Amplitude
		}
		return peaks[i].FrequencyHz < peaks[j].FrequencyHz
	})
	if len(peaks) > k {
		peaks = peaks[:k]
	}
	return peaks
}

// Package fingerprint computes spectrograms, peaks, and landmark hash pairs
// from PCM sample slices.
package fingerprint

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/audio"
)

// SpectrogramConfig controls STFT framing and peak extraction.
type SpectrogramConfig struct {
	SampleRate        int
	WindowSize        int
	HopSize           int
	Percentile        float64
	PeakNeighborhoodT int
	PeakNeighborhoodF int
	PeakDensity       float64
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() SpectrogramConfig {
	return SpectrogramConfig{
		SampleRate:        22050,
		WindowSize:        2048,
		HopSize:           512,
		Percentile:        85,
		PeakNeighborhoodT: 3,
		PeakNeighborhoodF: 20,
		PeakDensity:       30,
	}
}

// Extractor holds the precomputed analysis window for one worker. It is not
// safe for concurrent use; each goroutine should own its own Extractor.
type Extractor struct {
	cfg    SpectrogramConfig
	window []float64
}

// NewExtractor builds an Extractor with a Hann window sized to cfg.WindowSize.
func NewExtractor(cfg SpectrogramConfig) *Extractor {
	return &Extractor{
		cfg:    cfg,
		window: window.Hann(cfg.WindowSize),
	}
}

// Spectrogram computes the log-magnitude STFT of samples, one row per frame,
// one column per frequency bin (only the first half of the FFT, since the
// input is real-valued). Input shorter than WindowSize yields a 0-row result,
// not an error. Returns an error wrapping ErrCorruptInput when more than 1%
// of samples are non-finite.
func (e *Extractor) Spectrogram(samples []float64) ([][]float64, error) {
	ws := e.cfg.WindowSize
	hs := e.cfg.HopSize

	clean, nonFinite := sanitize(samples)
	if len(clean) > 0 && float64(nonFinite)/float64(len(clean)) > 0.01 {
		return nil, fmt.Errorf("spectrogram: %d/%d samples non-finite: %w", nonFinite, len(clean), ErrCorruptInput)
	}

	if len(clean) < ws {
		return [][]float64{}, nil
	}

	nFrames := (len(clean)-ws)/hs + 1
	rows := make([][]float64, nFrames)

	for i := 0; i < nFrames; i++ {
		start := i * hs
		rows[i] = e.frameRow(clean[start : start+ws])
	}
	return rows, nil
}

// StreamingPeaks accumulates chunks into a ring buffer of PCM samples,
// computing one spectrogram row per WindowSize samples as soon as HopSize
// lets the window slide forward, and emits peaks on the returned channel
// once chunks is drained and closed. This satisfies the same tolerance for
// a streaming chunk sequence that Spectrogram gives a fully-loaded slice,
// without holding the whole track in memory up front. Isolated non-finite
// samples are zeroed per chunk; StreamingPeaks does not track a running
// corrupt-sample ratio the way Spectrogram does, since a stream has no
// known total length to compute one against.
func (e *Extractor) StreamingPeaks(chunks <-chan []float64) <-chan Peak {
	out := make(chan Peak)
	go func() {
		defer close(out)

		ws := e.cfg.WindowSize
		hs := e.cfg.HopSize
		ring := audio.NewRingBuffer(ws * 4)
		var rows [][]float64

		for chunk := range chunks {
			clean, _ := sanitize(chunk)
			ring.Push(clean)
			for ring.Len() >= ws {
				rows = append(rows, e.frameRow(ring.Peek(ws)))
				ring.Drain(hs)
			}
		}

		for _, p := range ExtractPeaks(rows, e.cfg) {
			out <- p
		}
	}()
	return out
}

// frameRow windows raw (length WindowSize) and returns its log-magnitude
// spectrum over the first half of the FFT.
func (e *Extractor) frameRow(raw []float64) []float64 {
	ws := len(raw)
	windowed := make([]float64, ws)
	for j := 0; j < ws; j++ {
		windowed[j] = raw[j] * e.window[j]
	}
	spectrum := fft.FFTReal(windowed)
	half := ws / 2
	row := make([]float64, half)
	for k := 0; k < half; k++ {
		row[k] = math.Log1p(cabs(spectrum[k]))
	}
	return row
}

func cabs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// sanitize zeroes non-finite samples in place on a copy and counts them.
func sanitize(samples []float64) ([]float64, int) {
	out := make([]float64, len(samples))
	n := 0
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			n++
			out[i] = 0
			continue
		}
		out[i] = s
	}
	return out, n
}

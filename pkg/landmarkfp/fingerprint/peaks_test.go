package fingerprint

import (
	"math"
	"testing"
)

// sweep builds a synthetic spectrogram with a single strong tone sweeping
// up in frequency bin over time, plus low-level noise everywhere else.
func sweep(nFrames, nBins int) [][]float64 {
	spec := make([][]float64, nFrames)
	for t := range spec {
		row := make([]float64, nBins)
		for f := range row {
			row[f] = 0.01
		}
		bin := (t * nBins / nFrames) % nBins
		row[bin] = 5.0
		spec[t] = row
	}
	return spec
}

func TestExtractPeaksFindsSweepTone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeakDensity = 1000
	spec := sweep(200, 256)

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) == 0 {
		t.Fatal("expected peaks on a strong sweep tone, got none")
	}
	for i := 1; i < len(peaks); i++ {
		if peaks[i].TFrame < peaks[i-1].TFrame {
			t.Fatal("peaks not sorted by TFrame ascending")
		}
	}
}

func TestExtractPeaksDensityCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeakDensity = 2
	cfg.SampleRate = 512
	cfg.HopSize = 512 // 1 frame per second
	spec := sweep(10, 64)

	peaks := ExtractPeaks(spec, cfg)
	buckets := make(map[uint32]int)
	for _, p := range peaks {
		buckets[p.TFrame]++
	}
	for bucket, n := range buckets {
		if n > 2 {
			t.Fatalf("bucket %d has %d peaks, want <= 2", bucket, n)
		}
	}
}

func TestExtractPeaksEmptySpectrogram(t *testing.T) {
	cfg := DefaultConfig()
	if peaks := ExtractPeaks(nil, cfg); peaks != nil {
		t.Fatalf("expected nil peaks for empty spectrogram, got %v", peaks)
	}
}

func TestIsLocalMaxRejectsNonMaximum(t *testing.T) {
	spec := [][]float64{
		{1, 1, 1},
		{1, 2, 1},
		{1, 1, 1},
	}
	if isLocalMax(spec, 0, 0, 1, 1) {
		t.Fatal("corner should not be local max when center is larger")
	}
	if !isLocalMax(spec, 1, 1, 1, 1) {
		t.Fatal("center with strictly larger value should be local max")
	}
}

func TestRollingPercentileMonotone(t *testing.T) {
	spec := [][]float64{
		{0, 0, 0},
		{1, 1, 1},
		{2, 2, 2},
	}
	low := rollingPercentile(spec, 0, 2, 10)
	high := rollingPercentile(spec, 0, 2, 90)
	if !(low <= high) {
		t.Fatalf("expected low percentile <= high percentile, got %v > %v", low, high)
	}
	if math.IsNaN(low) || math.IsNaN(high) {
		t.Fatal("percentile should not be NaN")
	}
}

package fingerprint

import (
	"errors"
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return samples
}

func TestSpectrogramShortInputReturnsEmpty(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	spec, err := e.Spectrogram(make([]float64, cfg.WindowSize-1))
	if err != nil {
		t.Fatalf("unexpected error for short input: %v", err)
	}
	if len(spec) != 0 {
		t.Fatalf("expected 0 rows for input shorter than window, got %d", len(spec))
	}
}

func TestSpectrogramFrameCount(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	samples := sineWave(440, cfg.SampleRate, cfg.WindowSize*3)
	spec, err := e.Spectrogram(samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (len(samples)-cfg.WindowSize)/cfg.HopSize + 1
	if len(spec) != want {
		t.Fatalf("expected %d frames, got %d", want, len(spec))
	}
	if len(spec[0]) != cfg.WindowSize/2 {
		t.Fatalf("expected %d bins, got %d", cfg.WindowSize/2, len(spec[0]))
	}
}

func TestSpectrogramToleratesIsolatedNonFiniteSamples(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	samples := sineWave(440, cfg.SampleRate, cfg.WindowSize*2)
	samples[5] = math.NaN()
	samples[100] = math.Inf(1)

	if _, err := e.Spectrogram(samples); err != nil {
		t.Fatalf("expected isolated non-finite samples to be tolerated, got %v", err)
	}
}

func TestSpectrogramEscalatesHeavyCorruption(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	samples := sineWave(440, cfg.SampleRate, cfg.WindowSize*2)
	for i := range samples {
		if i%10 == 0 {
			samples[i] = math.NaN()
		}
	}

	_, err := e.Spectrogram(samples)
	if !errors.Is(err, ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestStreamingPeaksMatchesWholeBufferPeaks(t *testing.T) {
	cfg := DefaultConfig()
	samples := sineWave(440, cfg.SampleRate, cfg.WindowSize*6)

	e := NewExtractor(cfg)
	spec, err := e.Spectrogram(samples)
	if err != nil {
		t.Fatalf("Spectrogram: %v", err)
	}
	want := ExtractPeaks(spec, cfg)

	chunks := make(chan []float64)
	go func() {
		defer close(chunks)
		const chunkSize = 256
		for i := 0; i < len(samples); i += chunkSize {
			end := i + chunkSize
			if end > len(samples) {
				end = len(samples)
			}
			chunks <- samples[i:end]
		}
	}()

	streaming := NewExtractor(cfg)
	var got []Peak
	for p := range streaming.StreamingPeaks(chunks) {
		got = append(got, p)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d peaks from streaming, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peak %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestStreamingPeaksEmptyOnShortStream(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	chunks := make(chan []float64, 1)
	chunks <- make([]float64, cfg.WindowSize-1)
	close(chunks)

	var got []Peak
	for p := range e.StreamingPeaks(chunks) {
		got = append(got, p)
	}
	if len(got) != 0 {
		t.Fatalf("expected no peaks for a stream shorter than one window, got %d", len(got))
	}
}

// Package audio provides the reference PCM decoder adapter and a ring
// buffer for streaming ingestion.
package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadWAV decodes a WAV file into mono float64 samples normalized to
// [-1, 1], downmixing multi-channel input by averaging channels. This is
// the reference decoder adapter; any caller supplying its own
// (sampleRate int, mono []float64) pair satisfies the same contract.
func ReadWAV(path string) (samples []float64, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav file: %w", err)
	}
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	scale := fullScale(buf.SourceBitDepth)
	nFrames := len(buf.Data) / channels
	mono := make([]float64, nFrames)

	for i := 0; i < nFrames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = (sum / float64(channels)) / scale
	}

	return mono, buf.Format.SampleRate, nil
}

func fullScale(bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return 128
	case 24:
		return 8388608
	case 32:
		return 2147483648
	default:
		return 32768
	}
}

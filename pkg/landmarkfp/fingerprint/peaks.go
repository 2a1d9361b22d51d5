package fingerprint

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Peak is a local spectrogram maximum at frame TFrame, frequency bin FBin.
type Peak struct {
	TFrame uint32
	FBin   uint16
}

// ExtractPeaks finds local maxima in spectrogram, gates them against a
// rolling percentile threshold, and caps density per second of audio.
// Output is sorted by TFrame ascending, then FBin ascending.
func ExtractPeaks(spectrogram [][]float64, cfg SpectrogramConfig) []Peak {
	nFrames := len(spectrogram)
	if nFrames == 0 || len(spectrogram[0]) == 0 {
		return nil
	}
	nBins := len(spectrogram[0])

	dt := cfg.PeakNeighborhoodT
	df := cfg.PeakNeighborhoodF

	// A generous rolling window (the time neighborhood plus one second of
	// frames on each side of t) gives the percentile gate enough local context
	// without re-sorting the whole track for every frame.
	framesPerSecond := cfg.SampleRate / cfg.HopSize
	if framesPerSecond < 1 {
		framesPerSecond = 1
	}
	rollHalf := dt + framesPerSecond
	if rollHalf < 1 {
		rollHalf = 1
	}

	candidates := make([]Peak, 0, nFrames)

	for t := 0; t < nFrames; t++ {
		lo := t - rollHalf
		if lo < 0 {
			lo = 0
		}
		hi := t + rollHalf
		if hi >= nFrames {
			hi = nFrames - 1
		}
		threshold := rollingPercentile(spectrogram, lo, hi, cfg.Percentile)

		for f := 0; f < nBins; f++ {
			mag := spectrogram[t][f]
			if mag < threshold {
				continue
			}
			if !isLocalMax(spectrogram, t, f, dt, df) {
				continue
			}
			candidates = append(candidates, Peak{TFrame: uint32(t), FBin: uint16(f)})
		}
	}

	return capDensity(candidates, spectrogram, framesPerSecond, cfg.PeakDensity)
}

func isLocalMax(spec [][]float64, t, f, dt, df int) bool {
	nFrames := len(spec)
	nBins := len(spec[0])
	center := spec[t][f]
	for ti := t - dt; ti <= t+dt; ti++ {
		if ti < 0 || ti >= nFrames {
			continue
		}
		row := spec[ti]
		for fi := f - df; fi <= f+df; fi++ {
			if fi < 0 || fi >= nBins {
				continue
			}
			if ti == t && fi == f {
				continue
			}
			if row[fi] > center {
				return false
			}
		}
	}
	return true
}

// rollingPercentile computes the Pth percentile magnitude over frames
// [lo,hi] of spec, flattened across all bins.
func rollingPercentile(spec [][]float64, lo, hi int, percentile float64) float64 {
	nBins := len(spec[0])
	vals := make([]float64, 0, (hi-lo+1)*nBins)
	for t := lo; t <= hi; t++ {
		vals = append(vals, spec[t]...)
	}
	sort.Float64s(vals)
	if len(vals) == 0 {
		return 0
	}
	return stat.Quantile(percentile/100.0, stat.Empirical, vals, nil)
}

// capDensity buckets peaks into 1-second windows and keeps the loudest
// density peaks per bucket, tie-breaking on lower FBin then lower TFrame.
func capDensity(peaks []Peak, spec [][]float64, framesPerSecond int, density float64) []Peak {
	buckets := make(map[int][]Peak)
	for _, p := range peaks {
		b := int(p.TFrame) / framesPerSecond
		buckets[b] = append(buckets[b], p)
	}

	maxPerBucket := int(density)
	out := make([]Peak, 0, len(peaks))
	for _, bucket := range buckets {
		sort.Slice(bucket, func(i, j int) bool {
			mi := spec[bucket[i].TFrame][bucket[i].FBin]
			mj := spec[bucket[j].TFrame][bucket[j].FBin]
			if mi != mj {
				return mi > mj
			}
			if bucket[i].FBin != bucket[j].FBin {
				return bucket[i].FBin < bucket[j].FBin
			}
			return bucket[i].TFrame < bucket[j].TFrame
		})
		if len(bucket) > maxPerBucket {
			bucket = bucket[:maxPerBucket]
		}
		out = append(out, bucket...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TFrame != out[j].TFrame {
			return out[i].TFrame < out[j].TFrame
		}
		return out[i].FBin < out[j].FBin
	})
	return out
}

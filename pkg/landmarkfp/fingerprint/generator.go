package fingerprint

import "sort"

// Fingerprint is one packed landmark hash anchored at a point in time.
// TrackID is zero for query-mode fingerprints, which are never persisted
// against a real track.
type Fingerprint struct {
	Hash       uint32
	AnchorTime uint32
	TrackID    uint32
}

// PairConfig bounds the anchor/target pairing window.
type PairConfig struct {
	DeltaTMin int
	DeltaTMax int
	FanOut    int
}

// DefaultPairConfig returns the stock pairing window.
func DefaultPairConfig() PairConfig {
	return PairConfig{DeltaTMin: 1, DeltaTMax: 100, FanOut: 5}
}

// GeneratePairs performs windowed anchor/target pairing over peaks, already
// assumed sorted by TFrame then FBin (ExtractPeaks guarantees this). For
// each anchor it pairs with up to FanOut targets whose frame delta falls in
// [DeltaTMin, DeltaTMax], chosen by ascending (TFrame, FBin). Output is
// ordered by anchor TFrame ascending.
func GeneratePairs(peaks []Peak, trackID uint32, cfg PairConfig, layout HashLayout) []Fingerprint {
	out := make([]Fingerprint, 0, len(peaks)*cfg.FanOut)

	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < cfg.FanOut; j++ {
			target := peaks[j]
			delta := int(target.TFrame) - int(anchor.TFrame)
			if delta < cfg.DeltaTMin {
				continue
			}
			if delta > cfg.DeltaTMax {
				break
			}
			hash := PackHash(anchor, target, layout)
			out = append(out, Fingerprint{
				Hash:       hash,
				AnchorTime: anchor.TFrame,
				TrackID:    trackID,
			})
			paired++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnchorTime < out[j].AnchorTime
	})
	return out
}

package fingerprint

import "testing"

func TestGeneratePairsRespectsWindow(t *testing.T) {
	layout := DefaultHashLayout()
	cfg := PairConfig{DeltaTMin: 5, DeltaTMax: 10, FanOut: 3}

	peaks := []Peak{
		{TFrame: 0, FBin: 1},
		{TFrame: 3, FBin: 2},  // delta 3, too close
		{TFrame: 6, FBin: 3},  // delta 6, in window
		{TFrame: 9, FBin: 4},  // delta 9, in window
		{TFrame: 20, FBin: 5}, // delta 20, too far
	}

	// Anchor 0 pairs with frames 6 and 9; anchor 3 pairs with frame 9
	// (delta 6); no later anchor has a target in [5, 10].
	pairs := GeneratePairs(peaks, 7, cfg, layout)
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs in total, got %d", len(pairs))
	}
	anchorZero := 0
	for _, p := range pairs {
		if p.TrackID != 7 {
			t.Fatalf("expected TrackID 7, got %d", p.TrackID)
		}
		if p.AnchorTime == 0 {
			anchorZero++
		} else if p.AnchorTime != 3 {
			t.Fatalf("expected AnchorTime 0 or 3, got %d", p.AnchorTime)
		}
	}
	if anchorZero != 2 {
		t.Fatalf("expected 2 pairs from anchor 0, got %d", anchorZero)
	}
}

func TestGeneratePairsCapsFanOut(t *testing.T) {
	layout := DefaultHashLayout()
	cfg := PairConfig{DeltaTMin: 1, DeltaTMax: 100, FanOut: 2}

	peaks := []Peak{
		{TFrame: 0, FBin: 1},
		{TFrame: 1, FBin: 1},
		{TFrame: 2, FBin: 1},
		{TFrame: 3, FBin: 1},
	}

	pairs := GeneratePairs(peaks, 0, cfg, layout)
	anchorZero := 0
	for _, p := range pairs {
		if p.AnchorTime == 0 {
			anchorZero++
		}
	}
	if anchorZero != 2 {
		t.Fatalf("expected FanOut=2 pairs for anchor 0, got %d", anchorZero)
	}
}

func TestGeneratePairsQueryModeTrackIDZero(t *testing.T) {
	layout := DefaultHashLayout()
	cfg := DefaultPairConfig()
	peaks := []Peak{{TFrame: 0, FBin: 1}, {TFrame: 5, FBin: 2}}

	pairs := GeneratePairs(peaks, 0, cfg, layout)
	for _, p := range pairs {
		if p.TrackID != 0 {
			t.Fatalf("expected query-mode TrackID 0, got %d", p.TrackID)
		}
	}
}

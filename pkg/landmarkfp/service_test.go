package landmarkfp

import (
	"math"
	"testing"
)

func TestConfidenceZeroOnNoMatch(t *testing.T) {
	if c := confidence(0, 100, 100); c != 0 {
		t.Fatalf("expected 0 confidence for zero match count, got %v", c)
	}
}

func TestConfidenceMonotoneInRatio(t *testing.T) {
	low := confidence(2, 100, 100)
	high := confidence(40, 100, 100)
	if !(low < high) {
		t.Fatalf("expected confidence to increase with match ratio: low=%v high=%v", low, high)
	}
}

func TestConfidenceBoundedAt100(t *testing.T) {
	c := confidence(1000, 100, 100)
	if c > 100 || math.IsNaN(c) {
		t.Fatalf("expected confidence clamped to <= 100, got %v", c)
	}
}

func TestConfidencePenalizesThinMatchCount(t *testing.T) {
	thin := confidence(1, 10, 10)
	thicker := confidence(4, 10, 10)
	if !(thin < thicker) {
		t.Fatalf("expected thin match count to be penalized: thin=%v thicker=%v", thin, thicker)
	}
}

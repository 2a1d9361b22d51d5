package landmarkfp

import "time"

// Track mirrors storage.Track at the service boundary.
type Track struct {
	ID         uint32
	Title      string
	Artist     string
	SourceRef  string
	FrameCount uint32
	IngestedAt time.Time
}

// MatchResult is one ranked candidate returned by Recognize, decorated
// with the track metadata and a confidence score the raw matcher.Match
// doesn't carry.
type MatchResult struct {
	TrackID       uint32
	Title         string
	Artist        string
	SourceRef     string
	Score         int
	OffsetFrames  int32
	OffsetSeconds float64
	Confidence    float64
}

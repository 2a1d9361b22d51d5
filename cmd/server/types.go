package main

// TrackDTO represents a track in API responses.
type TrackDTO struct {
	ID         uint32 `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	SourceRef  string `json:"source_ref"`
	FrameCount uint32 `json:"frame_count"`
	IngestedAt string `json:"ingested_at"`
}

// ListTracksResponse is the response for GET /api/tracks.
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// AddTrackResponse is the response for successful track addition.
type AddTrackResponse struct {
	Message string `json:"message"`
	ID      uint32 `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}.
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      uint32 `json:"id"`
}

// MatchResultDTO represents a single ranked match.
type MatchResultDTO struct {
	TrackID       uint32  `json:"track_id"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	SourceRef     string  `json:"source_ref"`
	Score         int     `json:"score"`
	OffsetSeconds float64 `json:"offset_seconds"`
	Confidence    float64 `json:"confidence"`
}

// MatchResponse is the response for POST /api/match.
type MatchResponse struct {
	Matches []MatchResultDTO `json:"matches"`
	Count   int              `json:"count"`
	Partial bool             `json:"partial"`
}

// MetricsResponse provides server health and database metrics.
type MetricsResponse struct {
	Status           string `json:"status"`
	DatabasePath     string `json:"database_path"`
	TrackCount       int    `json:"track_count"`
	FingerprintCount int64  `json:"fingerprint_count"`
	SampleRate       int    `json:"sample_rate"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

package landmarkfp

import (
	"context"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/matcher"
)

// Service is the public contract of the fingerprinting/matching engine.
type Service interface {
	AddTrack(ctx context.Context, audioPath, title, artist, sourceRef string) (trackID uint32, err error)
	Recognize(ctx context.Context, audioPath string, opts matcher.Options) ([]MatchResult, matcher.Status, error)
	GetTrack(trackID uint32) (*Track, error)
	ListTracks() ([]Track, error)
	DeleteTrack(trackID uint32) error
	Close() error
}

// Logger is the leveled logging surface the service depends on; pkg/logger
// satisfies it.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

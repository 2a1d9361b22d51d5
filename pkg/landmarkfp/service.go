package landmarkfp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mdobak/go-xerrors"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/audio"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/fingerprint"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/matcher"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/storage"
	"github.com/arjvr/landmarkfp/pkg/logger"
)

type service struct {
	store  *storage.Store
	log    Logger
	config *Config
}

// NewService builds a Service backed by a gorm/glebarez-sqlite store,
// opening one at cfg.DBPath unless WithStore already supplied one.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = storage.Open(cfg.DBPath, storage.BuildConstants{
			SpectrogramConfig: cfg.SpectrogramConfig,
			PairConfig:        cfg.PairConfig,
			HashLayout:        cfg.HashLayout,
		})
		if err != nil {
			if errors.Is(err, storage.ErrSchemaMismatch) {
				return nil, fmt.Errorf("failed to open store: %w: %w", ErrSchemaMismatch, err)
			}
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	}

	return &service{store: store, log: cfg.Logger, config: cfg}, nil
}

// AddTrack decodes audioPath, extracts peaks, generates its hash pairs,
// and stages then commits them atomically. If sourceRef already belongs to
// a committed track, that track's id is returned and nothing is staged. On
// any failure after staging begins, including ctx being cancelled between
// stages, the staged track is aborted before the error propagates.
func (s *service) AddTrack(ctx context.Context, audioPath, title, artist, sourceRef string) (uint32, error) {
	s.log.Infof("adding track: %q by %q (%s)", title, artist, sourceRef)

	samples, sampleRate, err := audio.ReadWAV(audioPath)
	if err != nil {
		return 0, fmt.Errorf("decoding audio: %w", err)
	}

	peaks, err := s.extractPeaks(samples, sampleRate)
	if err != nil {
		return 0, err
	}
	s.log.Debugf("extracted %d peaks from %s", len(peaks), audioPath)

	frameCount := 0
	if ws, hs := s.config.SpectrogramConfig.WindowSize, s.config.SpectrogramConfig.HopSize; len(samples) >= ws {
		frameCount = (len(samples)-ws)/hs + 1
	}

	trackID, err := s.store.BeginIngest(ctx, title, artist, sourceRef, uint32(frameCount))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrCancelled
		}
		return 0, s.wrapStorageError("begin ingest", err)
	}
	if _, err := s.store.GetTrack(trackID); err == nil {
		s.log.Infof("source ref %q already ingested as track %d", sourceRef, trackID)
		return trackID, nil
	}

	fps := fingerprint.GeneratePairs(peaks, trackID, s.config.PairConfig, s.config.HashLayout)
	if err := s.store.AppendFingerprints(ctx, trackID, fps); err != nil {
		s.abortIngest(trackID, "append fingerprints")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrCancelled
		}
		return 0, s.wrapStorageError("append fingerprints", err)
	}

	if err := ctx.Err(); err != nil {
		s.abortIngest(trackID, "pre-commit cancellation check")
		return 0, ErrCancelled
	}

	if err := s.store.CommitIngest(ctx, trackID); err != nil {
		s.abortIngest(trackID, "commit ingest")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrCancelled
		}
		return 0, s.wrapStorageError("commit ingest", err)
	}

	s.log.Infof("committed track %d with %d fingerprints", trackID, len(fps))
	return trackID, nil
}

// abortIngest releases a staged track after a failure at stage. It takes
// its own context so cleanup completes even when the ingest it is
// unwinding was cancelled via the caller's context.
func (s *service) abortIngest(trackID uint32, stage string) {
	if abortErr := s.store.AbortIngest(context.Background(), trackID); abortErr != nil {
		s.log.Errorf("abort ingest %d after %s failure: %v", trackID, stage, xerrors.New(abortErr))
	}
}

// Recognize decodes audioPath as a query snippet and ranks committed
// tracks by offset-histogram vote count.
func (s *service) Recognize(ctx context.Context, audioPath string, opts matcher.Options) ([]MatchResult, matcher.Status, error) {
	s.log.Infof("recognizing: %s", audioPath)

	samples, sampleRate, err := audio.ReadWAV(audioPath)
	if err != nil {
		return nil, matcher.Complete, fmt.Errorf("decoding audio: %w", err)
	}

	peaks, err := s.extractPeaks(samples, sampleRate)
	if err != nil {
		return nil, matcher.Complete, err
	}
	query := fingerprint.GeneratePairs(peaks, 0, s.config.PairConfig, s.config.HashLayout)
	s.log.Debugf("query has %d peaks, %d hashes", len(peaks), len(query))

	if opts.TrackFPCount == nil {
		opts.TrackFPCount = func(trackID uint32) int {
			n, err := s.store.FingerprintCount(trackID)
			if err != nil {
				s.log.Warnf("fingerprint count for track %d: %v", trackID, xerrors.New(err))
				return 0
			}
			return n
		}
	}

	result, err := matcher.Recognize(ctx, query, s.store, opts)
	if err != nil {
		if errors.Is(err, matcher.ErrCancelled) {
			return nil, matcher.Complete, ErrCancelled
		}
		return nil, matcher.Complete, s.wrapStorageError("recognize", err)
	}

	out := make([]MatchResult, 0, len(result.Matches))
	for _, m := range result.Matches {
		track, err := s.store.GetTrack(m.TrackID)
		if err != nil {
			s.log.Warnf("track %d metadata lookup: %v", m.TrackID, xerrors.New(err))
			continue
		}
		out = append(out, MatchResult{
			TrackID:       m.TrackID,
			Title:         track.Title,
			Artist:        track.Artist,
			SourceRef:     track.SourceRef,
			Score:         m.Count,
			OffsetFrames:  m.Offset,
			OffsetSeconds: matcher.OffsetSeconds(m.Offset, s.config.SpectrogramConfig.HopSize, s.config.SpectrogramConfig.SampleRate),
			Confidence:    confidence(m.Count, m.QueryFPCount, m.TrackFPCount),
		})
	}

	s.log.Infof("recognize complete: %d matches, status=%v", len(out), result.Status)
	return out, result.Status, nil
}

// GetTrack returns a committed track's metadata.
func (s *service) GetTrack(trackID uint32) (*Track, error) {
	t, err := s.store.GetTrack(trackID)
	if err != nil {
		return nil, s.wrapStorageError("get track", err)
	}
	return &Track{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		SourceRef:  t.SourceRef,
		FrameCount: t.FrameCount,
		IngestedAt: t.IngestedAt,
	}, nil
}

// ListTracks returns all committed tracks.
func (s *service) ListTracks() ([]Track, error) {
	rows, err := s.store.ListTracks()
	if err != nil {
		return nil, s.wrapStorageError("list tracks", err)
	}
	out := make([]Track, len(rows))
	for i, r := range rows {
		out[i] = Track{
			ID:         r.ID,
			Title:      r.Title,
			Artist:     r.Artist,
			SourceRef:  r.SourceRef,
			FrameCount: r.FrameCount,
			IngestedAt: r.IngestedAt,
		}
	}
	return out, nil
}

// DeleteTrack removes a track and all its fingerprints.
func (s *service) DeleteTrack(trackID uint32) error {
	if err := s.store.DeleteTrack(trackID); err != nil {
		return s.wrapStorageError("delete track", err)
	}
	return nil
}

// Close releases the underlying store.
func (s *service) Close() error {
	return s.store.Close()
}

func (s *service) extractPeaks(samples []float64, sampleRate int) ([]fingerprint.Peak, error) {
	cfg := s.config.SpectrogramConfig
	cfg.SampleRate = sampleRate

	extractor := fingerprint.NewExtractor(cfg)
	spec, err := extractor.Spectrogram(samples)
	if err != nil {
		if errors.Is(err, fingerprint.ErrCorruptInput) {
			return nil, fmt.Errorf("%w", ErrCorruptInput)
		}
		return nil, fmt.Errorf("spectrogram: %w", err)
	}
	return fingerprint.ExtractPeaks(spec, cfg), nil
}

// wrapStorageError attaches a captured stack trace to the log line for a
// storage failure (without changing the error's errors.Is identity) and
// returns it wrapped so callers can still errors.Is against ErrStorageError.
func (s *service) wrapStorageError(op string, err error) error {
	s.log.Errorf("%s: %v", op, xerrors.New(err))
	if errors.Is(err, storage.ErrSchemaMismatch) {
		return fmt.Errorf("%s: %w: %w", op, ErrSchemaMismatch, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageError, err)
}

// confidence scores a match's strength on a 0-100 scale, weighting the
// raw vote ratio against the smaller of the query/track fingerprint
// counts, with a sigmoid to separate weak coincidental overlap from a
// real match, and a penalty for statistically thin vote counts.
func confidence(matchCount, queryFPCount, trackFPCount int) float64 {
	if matchCount == 0 || queryFPCount == 0 || trackFPCount == 0 {
		return 0
	}

	minFPCount := queryFPCount
	if trackFPCount < minFPCount {
		minFPCount = trackFPCount
	}
	ratio := float64(matchCount) / float64(minFPCount)

	const (
		steepness = 20.0
		midpoint  = 0.15
	)
	exponent := -steepness * (ratio - midpoint)
	score := 100.0 / (1.0 + math.Exp(exponent))

	if ratio > 0.30 {
		score = math.Min(100.0, score+(ratio-0.30)*50)
	}
	if matchCount < 5 {
		score *= float64(matchCount) / 5.0
	}
	return score
}

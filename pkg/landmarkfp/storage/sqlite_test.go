package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/fingerprint"
)

func testConstants() BuildConstants {
	return BuildConstants{
		SpectrogramConfig: fingerprint.DefaultConfig(),
		PairConfig:        fingerprint.DefaultPairConfig(),
		HashLayout:        fingerprint.DefaultHashLayout(),
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite3")
	s, err := Open(path, testConstants())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginIngestIsIdempotentOnSourceRef(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.BeginIngest(ctx, "Song", "Artist", "ref-1", 1000)
	if err != nil {
		t.Fatalf("BeginIngest: %v", err)
	}
	if err := s.CommitIngest(ctx, id1); err != nil {
		t.Fatalf("CommitIngest: %v", err)
	}

	id2, err := s.BeginIngest(ctx, "Song Again", "Artist Again", "ref-1", 2000)
	if err != nil {
		t.Fatalf("BeginIngest (repeat): %v", err)
	}
	if id2 != id1 {
		t.Fatalf("expected idempotent BeginIngest to return id %d, got %d", id1, id2)
	}
}

func TestAppendCommitLookupAtomicity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trackID, err := s.BeginIngest(ctx, "Song", "Artist", "ref-atomic", 1000)
	if err != nil {
		t.Fatalf("BeginIngest: %v", err)
	}

	fps := []fingerprint.Fingerprint{
		{Hash: 42, AnchorTime: 0, TrackID: trackID},
		{Hash: 42, AnchorTime: 10, TrackID: trackID},
	}
	if err := s.AppendFingerprints(ctx, trackID, fps); err != nil {
		t.Fatalf("AppendFingerprints: %v", err)
	}

	postings, err := s.Lookup(ctx, 42)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected uncommitted fingerprints invisible to Lookup, got %d", len(postings))
	}

	if err := s.CommitIngest(ctx, trackID); err != nil {
		t.Fatalf("CommitIngest: %v", err)
	}

	postings, err = s.Lookup(ctx, 42)
	if err != nil {
		t.Fatalf("Lookup after commit: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 committed postings, got %d", len(postings))
	}
}

func TestAbortIngestDiscardsStagedData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trackID, err := s.BeginIngest(ctx, "Song", "Artist", "ref-abort", 1000)
	if err != nil {
		t.Fatalf("BeginIngest: %v", err)
	}
	if err := s.AppendFingerprints(ctx, trackID, []fingerprint.Fingerprint{{Hash: 7, AnchorTime: 0, TrackID: trackID}}); err != nil {
		t.Fatalf("AppendFingerprints: %v", err)
	}

	if err := s.AbortIngest(ctx, trackID); err != nil {
		t.Fatalf("AbortIngest: %v", err)
	}

	postings, err := s.Lookup(ctx, 7)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected aborted fingerprints gone, got %d", len(postings))
	}
	if _, err := s.GetTrack(trackID); err == nil {
		t.Fatal("expected aborted track to be gone")
	}
}

// TestCancelMidIngestAbortsBeforeReleasingResources exercises the contract
// that a cancelled ingest is abortable between stages: CommitIngest refuses
// to run against an already-cancelled context, and AbortIngest then clears
// the staged track and fingerprints, leaving Lookup and GetTrack as if the
// ingest never started.
func TestCancelMidIngestAbortsBeforeReleasingResources(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trackID, err := s.BeginIngest(ctx, "Song", "Artist", "ref-cancel", 1000)
	if err != nil {
		t.Fatalf("BeginIngest: %v", err)
	}
	if err := s.AppendFingerprints(ctx, trackID, []fingerprint.Fingerprint{
		{Hash: 99, AnchorTime: 0, TrackID: trackID},
	}); err != nil {
		t.Fatalf("AppendFingerprints: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.CommitIngest(cancelled, trackID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected CommitIngest to refuse a cancelled context, got %v", err)
	}

	if err := s.AbortIngest(context.Background(), trackID); err != nil {
		t.Fatalf("AbortIngest: %v", err)
	}

	if postings, err := s.Lookup(ctx, 99); err != nil || len(postings) != 0 {
		t.Fatalf("expected aborted fingerprints gone, got %v postings, err %v", postings, err)
	}
	if _, err := s.GetTrack(trackID); err == nil {
		t.Fatal("expected aborted track to be gone")
	}
}

func TestOpenDetectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.sqlite3")

	s, err := Open(path, testConstants())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	bad := testConstants()
	bad.SpectrogramConfig.WindowSize = bad.SpectrogramConfig.WindowSize * 2

	_, err = Open(path, bad)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestFingerprintCountOnlyCommitted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trackID, err := s.BeginIngest(ctx, "Song", "Artist", "ref-count", 1000)
	if err != nil {
		t.Fatalf("BeginIngest: %v", err)
	}
	if err := s.AppendFingerprints(ctx, trackID, []fingerprint.Fingerprint{
		{Hash: 1, AnchorTime: 0, TrackID: trackID},
		{Hash: 2, AnchorTime: 5, TrackID: trackID},
	}); err != nil {
		t.Fatalf("AppendFingerprints: %v", err)
	}

	if n, _ := s.FingerprintCount(trackID); n != 0 {
		t.Fatalf("expected 0 committed fingerprints before commit, got %d", n)
	}

	if err := s.CommitIngest(ctx, trackID); err != nil {
		t.Fatalf("CommitIngest: %v", err)
	}
	if n, err := s.FingerprintCount(trackID); err != nil || n != 2 {
		t.Fatalf("expected 2 committed fingerprints, got %d, err %v", n, err)
	}
}

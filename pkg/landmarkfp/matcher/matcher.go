// Package matcher implements the offset-histogram voting algorithm that
// turns a set of query fingerprints into ranked track matches.
package matcher

import (
	"context"
	"errors"
	"sort"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/fingerprint"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/storage"
)

// Lookuper is the narrow interface matcher depends on: just hash lookup,
// not the full storage.Store surface (ingest, track metadata, etc). This
// lets matcher compose independently of the persistence choice; any type
// with this one method, not just *storage.Store, can stand in.
type Lookuper interface {
	Lookup(ctx context.Context, hash uint32) ([]storage.Posting, error)
}

// ErrCancelled is returned when ctx is cancelled mid-scan; no partial
// result is returned alongside it.
var ErrCancelled = errors.New("matcher: cancelled")

// Status reports whether Recognize completed its full scan.
type Status int

const (
	// Complete means every query fingerprint was scanned.
	Complete Status = iota
	// Partial means a deadline was exceeded mid-scan; the ranking
	// reflects only the fingerprints scanned so far.
	Partial
)

// Match is one candidate track, ranked by vote count.
type Match struct {
	TrackID      uint32
	Offset       int32
	Count        int
	QueryFPCount int
	TrackFPCount int
}

// Result is the outcome of a Recognize call.
type Result struct {
	Matches []Match
	Status  Status
}

// Options bounds and shapes a Recognize call.
type Options struct {
	MinSupport int
	TopK       int
	// Deadline, when non-nil and exceeded mid-scan, causes Recognize to
	// return whatever ranking is available so far with Status=Partial
	// instead of an error.
	Deadline context.Context
	// TrackFPCount, when non-nil, supplies the committed fingerprint
	// count for a track id, used only to populate Match.TrackFPCount
	// for confidence scoring at the caller's boundary.
	TrackFPCount func(trackID uint32) int
}

// Recognize runs the offset-histogram algorithm: for each query
// fingerprint it looks up postings by hash, and for every (track, anchor)
// occurrence increments that track's vote for the implied offset δ =
// posting.AnchorTime - query.AnchorTime. The track's best (δ*, C*) is
// tracked incrementally rather than built then scanned. Tracks whose C*
// falls below opts.MinSupport are dropped; survivors are ranked by C*
// descending, ties broken by lower TrackID, and ties at the TopK boundary
// are all included.
func Recognize(ctx context.Context, queryFingerprints []fingerprint.Fingerprint, index Lookuper, opts Options) (Result, error) {
	type trackState struct {
		offsets map[int32]int
		bestOff int32
		bestCnt int
	}
	tracks := make(map[uint32]*trackState)

	status := Complete

batchLoop:
	for i, qfp := range queryFingerprints {
		if i%64 == 0 {
			select {
			case <-ctx.Done():
				return Result{}, ErrCancelled
			default:
			}
			if opts.Deadline != nil {
				select {
				case <-opts.Deadline.Done():
					status = Partial
					break batchLoop
				default:
				}
			}
		}

		postings, err := index.Lookup(ctx, qfp.Hash)
		if err != nil {
			return Result{}, err
		}

		for _, p := range postings {
			offset := int32(p.AnchorTime) - int32(qfp.AnchorTime)

			st, ok := tracks[p.TrackID]
			if !ok {
				st = &trackState{offsets: make(map[int32]int)}
				tracks[p.TrackID] = st
			}
			st.offsets[offset]++
			if st.offsets[offset] > st.bestCnt {
				st.bestCnt = st.offsets[offset]
				st.bestOff = offset
			}
		}
	}

	minSupport := opts.MinSupport
	matches := make([]Match, 0, len(tracks))
	for trackID, st := range tracks {
		if st.bestCnt < minSupport {
			continue
		}
		m := Match{
			TrackID:      trackID,
			Offset:       st.bestOff,
			Count:        st.bestCnt,
			QueryFPCount: len(queryFingerprints),
		}
		if opts.TrackFPCount != nil {
			m.TrackFPCount = opts.TrackFPCount(trackID)
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return matches[i].TrackID < matches[j].TrackID
	})

	if opts.TopK > 0 && len(matches) > opts.TopK {
		cutoff := matches[opts.TopK-1].Count
		end := opts.TopK
		for end < len(matches) && matches[end].Count == cutoff {
			end++
		}
		matches = matches[:end]
	}

	return Result{Matches: matches, Status: status}, nil
}

// OffsetSeconds converts a frame offset to seconds given hop size and
// sample rate, the derivation point for the otherwise frame-indexed
// matcher boundary.
func OffsetSeconds(offset int32, hopSize, sampleRate int) float64 {
	return float64(offset) * float64(hopSize) / float64(sampleRate)
}

// Package storage implements the inverted-index store over a relational
// table layout: a tracks table, a fingerprints table, and a single-row
// meta header recording the build-time DSP/hash-layout constants the store
// was created with.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp/fingerprint"
)

// Track is the public, decoded shape of a tracks row.
type Track struct {
	ID         uint32
	Title      string
	Artist     string
	SourceRef  string
	FrameCount uint32
	IngestedAt time.Time
}

// Posting is one (track, anchor time) occurrence returned for a hash.
type Posting struct {
	TrackID    uint32
	AnchorTime uint32
}

// ErrSchemaMismatch is returned by Open when an existing database's meta
// header disagrees with the build-time DSP/hash-layout constants.
var ErrSchemaMismatch = errors.New("storage: schema mismatch")

type trackRow struct {
	ID         uint32 `gorm:"primaryKey;autoIncrement"`
	Title      string
	Artist     string
	SourceRef  string `gorm:"uniqueIndex"`
	FrameCount uint32
	IngestedAt time.Time
	Committed  bool `gorm:"index"`
}

type fingerprintRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Hash       uint32 `gorm:"index:idx_hash"`
	TrackID    uint32 `gorm:"index:idx_track"`
	AnchorTime uint32
	Committed  bool `gorm:"index:idx_hash"`
}

type metaRow struct {
	ID                int `gorm:"primaryKey"`
	HashLayoutVersion int
	SampleRate        int
	WindowSize        int
	HopSize           int
	WindowType        string
	PeakNeighborhoodT int
	PeakNeighborhoodF int
	Percentile        float64
	PeakDensity       float64
	DeltaTMin         int
	DeltaTMax         int
	FanOut            int
	FreqBits          int
	DeltaBits         int
}

// BuildConstants is the set of DSP/hash-layout constants a store compares
// its header against on Open.
type BuildConstants struct {
	SpectrogramConfig fingerprint.SpectrogramConfig
	PairConfig        fingerprint.PairConfig
	HashLayout        fingerprint.HashLayout
}

func (c BuildConstants) toRow() metaRow {
	return metaRow{
		ID:                1,
		HashLayoutVersion: fingerprint.HashLayoutVersion,
		SampleRate:        c.SpectrogramConfig.SampleRate,
		WindowSize:        c.SpectrogramConfig.WindowSize,
		HopSize:           c.SpectrogramConfig.HopSize,
		WindowType:        "hann",
		PeakNeighborhoodT: c.SpectrogramConfig.PeakNeighborhoodT,
		PeakNeighborhoodF: c.SpectrogramConfig.PeakNeighborhoodF,
		Percentile:        c.SpectrogramConfig.Percentile,
		PeakDensity:       c.SpectrogramConfig.PeakDensity,
		DeltaTMin:         c.PairConfig.DeltaTMin,
		DeltaTMax:         c.PairConfig.DeltaTMax,
		FanOut:            c.PairConfig.FanOut,
		FreqBits:          c.HashLayout.FreqBits,
		DeltaBits:         c.HashLayout.DeltaBits,
	}
}

// Store is the gorm/glebarez-sqlite-backed inverted index.
type Store struct {
	db *gorm.DB
	sq *sql.DB

	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

// Open opens (creating if absent) a SQLite-backed store at dbPath. On a
// fresh database the meta header is written from constants; on an
// existing database it is compared field-by-field against constants and
// ErrSchemaMismatch is returned on disagreement.
func Open(dbPath string, constants BuildConstants) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&trackRow{}, &fingerprintRow{}, &metaRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	want := constants.toRow()
	var existing metaRow
	err = db.First(&existing, 1).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&want).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("writing meta header: %w", err)
		}
	case err != nil:
		sqlDB.Close()
		return nil, fmt.Errorf("reading meta header: %w", err)
	default:
		if existing != want {
			sqlDB.Close()
			return nil, fmt.Errorf("%w: on-disk header %+v, build constants %+v", ErrSchemaMismatch, existing, want)
		}
	}

	return &Store{db: db, sq: sqlDB, locks: make(map[uint32]*sync.Mutex)}, nil
}

func (s *Store) lockFor(trackID uint32) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[trackID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[trackID] = l
	}
	return l
}

// BeginIngest registers a track as staged (committed=false) and returns its
// id. If a committed track already exists with the same SourceRef,
// BeginIngest is idempotent: it returns that track's id without staging a
// new one.
func (s *Store) BeginIngest(ctx context.Context, title, artist, sourceRef string, frameCount uint32) (trackID uint32, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var existing trackRow
	err = s.db.WithContext(ctx).Where("source_ref = ? AND committed = ?", sourceRef, true).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("checking existing track: %w", err)
	}

	row := trackRow{
		Title:      title,
		Artist:     artist,
		SourceRef:  sourceRef,
		FrameCount: frameCount,
		IngestedAt: time.Now(),
		Committed:  false,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("staging track: %w", err)
	}
	return row.ID, nil
}

// AppendFingerprints stages fingerprints for trackID with committed=false.
// Ingest for a given trackID is serialized; distinct track ids append
// fully in parallel.
func (s *Store) AppendFingerprints(ctx context.Context, trackID uint32, fps []fingerprint.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(trackID)
	lock.Lock()
	defer lock.Unlock()

	rows := make([]fingerprintRow, len(fps))
	for i, fp := range fps {
		rows[i] = fingerprintRow{
			Hash:       fp.Hash,
			TrackID:    trackID,
			AnchorTime: fp.AnchorTime,
			Committed:  false,
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 1000).Error; err != nil {
		return fmt.Errorf("staging fingerprints: %w", err)
	}
	return nil
}

// CommitIngest atomically promotes a staged track and all its staged
// fingerprints to committed=true in one transaction.
func (s *Store) CommitIngest(ctx context.Context, trackID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(trackID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&trackRow{}).Where("id = ?", trackID).Update("committed", true).Error; err != nil {
			return fmt.Errorf("committing track: %w", err)
		}
		if err := tx.Model(&fingerprintRow{}).Where("track_id = ?", trackID).Update("committed", true).Error; err != nil {
			return fmt.Errorf("committing fingerprints: %w", err)
		}
		return nil
	})
}

// AbortIngest discards a staged track and all its staged fingerprints.
// It takes its own context rather than reusing a cancelled caller context,
// since cleanup must run to completion regardless of why the ingest it is
// unwinding was cancelled.
func (s *Store) AbortIngest(ctx context.Context, trackID uint32) error {
	lock := s.lockFor(trackID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ? AND committed = ?", trackID, false).Delete(&fingerprintRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ? AND committed = ?", trackID, false).Delete(&trackRow{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// Lookup returns committed postings for hash. Uncommitted, in-flight
// ingests are invisible to Lookup because they are filtered by the query
// itself, not by any lock held against the store.
func (s *Store) Lookup(ctx context.Context, hash uint32) ([]Posting, error) {
	var rows []fingerprintRow
	err := s.db.WithContext(ctx).
		Where("hash = ? AND committed = ?", hash, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("looking up hash %d: %w", hash, err)
	}
	out := make([]Posting, len(rows))
	for i, r := range rows {
		out[i] = Posting{TrackID: r.TrackID, AnchorTime: r.AnchorTime}
	}
	return out, nil
}

// GetTrack returns a committed track's metadata by id.
func (s *Store) GetTrack(trackID uint32) (*Track, error) {
	var row trackRow
	if err := s.db.Where("id = ? AND committed = ?", trackID, true).First(&row).Error; err != nil {
		return nil, fmt.Errorf("getting track %d: %w", trackID, err)
	}
	return rowToTrack(row), nil
}

// ListTracks returns all committed tracks.
func (s *Store) ListTracks() ([]Track, error) {
	var rows []trackRow
	if err := s.db.Where("committed = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]Track, len(rows))
	for i, r := range rows {
		out[i] = *rowToTrack(r)
	}
	return out, nil
}

// DeleteTrack removes a track and all its fingerprints, committed or not.
func (s *Store) DeleteTrack(trackID uint32) error {
	lock := s.lockFor(trackID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&fingerprintRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", trackID).Delete(&trackRow{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// FingerprintCount returns the committed fingerprint count for a track.
func (s *Store) FingerprintCount(trackID uint32) (int, error) {
	var count int64
	err := s.db.Model(&fingerprintRow{}).
		Where("track_id = ? AND committed = ?", trackID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting fingerprints for track %d: %w", trackID, err)
	}
	return int(count), nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.sq == nil {
		return nil
	}
	return s.sq.Close()
}

func rowToTrack(r trackRow) *Track {
	return &Track{
		ID:         r.ID,
		Title:      r.Title,
		Artist:     r.Artist,
		SourceRef:  r.SourceRef,
		FrameCount: r.FrameCount,
		IngestedAt: r.IngestedAt,
	}
}

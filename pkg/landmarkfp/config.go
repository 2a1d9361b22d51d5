package landmarkfp

import (
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/fingerprint"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/storage"
)

// Config holds everything NewService needs to wire a Service together.
type Config struct {
	DBPath            string
	TempDir           string
	SpectrogramConfig fingerprint.SpectrogramConfig
	PairConfig        fingerprint.PairConfig
	HashLayout        fingerprint.HashLayout
	Logger            Logger
	Store             *storage.Store
}

// Option mutates a Config during NewService.
type Option func(*Config)

// WithDBPath overrides the SQLite database path.
func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

// WithTempDir overrides Config.TempDir. The service itself does not read
// it: AddTrack and Recognize decode audio directly from the path given.
func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

// WithSampleRate overrides SpectrogramConfig.SampleRate.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SpectrogramConfig.SampleRate = rate }
}

// WithSpectrogramConfig overrides the whole spectrogram/peak-picker config.
func WithSpectrogramConfig(cfg fingerprint.SpectrogramConfig) Option {
	return func(c *Config) { c.SpectrogramConfig = cfg }
}

// WithPairConfig overrides the hash pair generator's windowing config.
func WithPairConfig(cfg fingerprint.PairConfig) Option {
	return func(c *Config) { c.PairConfig = cfg }
}

// WithHashLayout overrides the bit layout used to pack hashes.
func WithHashLayout(layout fingerprint.HashLayout) Option {
	return func(c *Config) { c.HashLayout = layout }
}

// WithLogger overrides the default logger.
func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithStore injects an already-open store, bypassing DBPath entirely.
// Mainly useful for tests.
func WithStore(s *storage.Store) Option {
	return func(c *Config) { c.Store = s }
}

func defaultConfig() *Config {
	return &Config{
		DBPath:            "landmarkfp.sqlite3",
		TempDir:           "/tmp",
		SpectrogramConfig: fingerprint.DefaultConfig(),
		PairConfig:        fingerprint.DefaultPairConfig(),
		HashLayout:        fingerprint.DefaultHashLayout(),
	}
}

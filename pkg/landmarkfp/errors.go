package landmarkfp

// kindError is a comparable error carrying a Kind(), checked with
// errors.Is at call sites that need to branch on error category (e.g. an
// embedding CLI's exit code).
type kindError string

func (e kindError) Error() string { return string(e) }
func (e kindError) Kind() string  { return string(e) }

const (
	// ErrCorruptInput means the spectrogram stage's non-finite sample
	// budget was exceeded. service.go wraps fingerprint.ErrCorruptInput
	// with this sentinel so callers only need to import this package.
	ErrCorruptInput = kindError("corrupt_input")

	// ErrSchemaMismatch means an existing store's meta header disagrees
	// with this build's DSP/hash-layout constants. service.go wraps
	// storage.ErrSchemaMismatch with this sentinel.
	ErrSchemaMismatch = kindError("schema_mismatch")

	// ErrStorageError wraps an underlying store failure opaquely.
	ErrStorageError = kindError("storage_error")

	// ErrCancelled means a Recognize or AddTrack call's context was
	// cancelled mid-operation. service.go wraps matcher.ErrCancelled (for
	// Recognize) and storage-layer context cancellation (for AddTrack)
	// with this sentinel.
	ErrCancelled = kindError("cancelled")
)

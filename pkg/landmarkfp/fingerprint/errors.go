package fingerprint

// sentinelError is a comparable error value that also reports a Kind,
// mirroring the error taxonomy the landmarkfp package exposes at its
// boundary (see landmarkfp/errors.go, whose own ErrCorruptInput service.go
// returns in place of this one).
type sentinelError string

func (e sentinelError) Error() string { return string(e) }
func (e sentinelError) Kind() string  { return string(e) }

// ErrCorruptInput is returned when an aggregate fraction of non-finite
// samples exceeds the tolerance the spectrogram stage allows.
const ErrCorruptInput = sentinelError("corrupt_input")

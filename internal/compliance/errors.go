package compliance

import "errors"

// Errors returned by the compliance engine. Callers match them with errors.Is;
// the engine wraps them with context using fmt.Errorf("%w: ...").
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrNotVerifiable          = errors.New("artifact type is not verifiable")
	ErrNotSubmitted           = errors.New("artifact has not been submitted")
	ErrStorageWriteFailed     = errors.New("storage write failed")
	ErrStorageReclaimFailed   = errors.New("storage reclaim failed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnavailable            = errors.New("compliance store unavailable")
)

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageWriteFailed) || errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrUnavailable)
}

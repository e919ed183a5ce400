package attendance

import "errors"

// Failure classes surfaced by Service. Use errors.Is to classify.
var (
	ErrNotFound   = errors.New("User not found")
	ErrUpstream   = errors.New("upstream error")
	ErrStorage    = errors.New("storage error")
	ErrValidation = errors.New("validation error")
)

// classified tags a cause with a failure class while keeping the cause's
// message as its own.
type classified struct {
	kind  error
	cause error
}

func (e *classified) Error() string   { return e.cause.Error() }
func (e *classified) Unwrap() []error { return []error{e.kind, e.cause} }

func upstream(err error) error { return &classified{kind: ErrUpstream, cause: err} }

func storage(err error) error { return &classified{kind: ErrStorage, cause: err} }

func invalid(msg string) error {
	return &classified{kind: ErrValidation, cause: errors.New(msg)}
}

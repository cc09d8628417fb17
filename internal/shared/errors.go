package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a state transition that is not allowed.
	ErrInvalidState = errors.New("invalid state")
)

// UserSafeMessage returns a message safe to surface to API callers.
// Expected business rejections pass through verbatim; anything else is
// reported generically so infrastructure details do not leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState):
		return err.Error()
	default:
		return "internal error"
	}
}

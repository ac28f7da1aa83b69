package errors

// Common error codes.
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
)

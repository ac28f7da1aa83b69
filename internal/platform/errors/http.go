package errors

import "net/http"

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the application code from an error chain, defaulting to
// INTERNAL for unknown errors.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code()
	}
	return ErrInternal
}

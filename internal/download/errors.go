package download

import "errors"

var (
	// ErrTransient is returned for failures that may succeed on retry:
	// timeouts, connection errors, and 408, 429 or 5xx responses.
	ErrTransient = errors.New("transient download failure")

	// ErrNotFound is returned for client error responses other than 408
	// and 429. It is never retried.
	ErrNotFound = errors.New("image not retrievable")

	// ErrUnsupportedFormat is returned when the payload is not a JPEG, PNG,
	// GIF or WebP image.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrTooLarge is returned when a payload exceeds the configured size cap.
	ErrTooLarge = errors.New("image exceeds size limit")
)

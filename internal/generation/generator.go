package generation

import (
	"context"
)

// Request is one image-to-image generation call.
type Request struct {
	// Prompt describes the variant to produce.
	Prompt string

	// Image is the reference image and MIMEType its content type.
	Image    []byte
	MIMEType string

	// Metadata is passed through for logging; implementations must not
	// send it to the service.
	Metadata map[string]string
}

// Image is a generated image.
type Image struct {
	Data     []byte
	MIMEType string

	// Text holds any commentary the model returned alongside the image.
	Text string
}

// ImageGenerator produces a styled variant of a reference image.
//
// Implementations classify failures with the errors in this package:
// ErrTransientFailure for anything worth retrying, ErrContentBlocked and
// ErrInvalidResponse for outcomes that will not change on retry.
type ImageGenerator interface {
	Generate(ctx context.Context, req Request) (*Image, error)
}

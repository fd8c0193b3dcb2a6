package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when image generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate image")

	// ErrInvalidResponse is returned when the service response holds no usable image
	ErrInvalidResponse = errors.New("invalid response from image model")

	// ErrContentBlocked is returned when the service blocks the request due to safety filters
	ErrContentBlocked = errors.New("content blocked by image model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during image generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrUnknownStyle is returned when a style is not in the catalog
	ErrUnknownStyle = errors.New("unknown style")
)

// Package gemini implements generation.ImageGenerator on top of Google's
// Gemini API through the google.golang.org/genai client.
//
// Each request sends the style prompt and the reference image as inline
// data and asks for an IMAGE response modality. Failures are translated
// into the generation package's error kinds: rate limiting, server errors
// and network failures become generation.ErrTransientFailure, safety
// blocks become generation.ErrContentBlocked, and responses without image
// data become generation.ErrInvalidResponse. Retrying is left to the
// caller.
package gemini

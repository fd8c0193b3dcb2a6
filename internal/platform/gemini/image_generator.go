package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/stylebatch/internal/generation"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash-preview-image-generation"

// Config holds the settings needed to talk to Gemini.
type Config struct {
	APIKey    string
	ModelName string
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// ImageGenerator implements generation.ImageGenerator using Gemini.
type ImageGenerator struct {
	logger *slog.Logger
	models contentGenerator
	model  string
}

var _ generation.ImageGenerator = (*ImageGenerator)(nil)

// NewImageGenerator creates a Gemini-backed generator.
func NewImageGenerator(ctx context.Context, logger *slog.Logger, cfg Config) (*ImageGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newImageGenerator(logger, client.Models, cfg.ModelName), nil
}

func newImageGenerator(logger *slog.Logger, models contentGenerator, model string) *ImageGenerator {
	return &ImageGenerator{logger: logger, models: models, model: model}
}

// Generate implements generation.ImageGenerator.
func (g *ImageGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", generation.ErrGenerationFailed)
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: empty reference image", generation.ErrGenerationFailed)
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Image)
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: req.Prompt},
			{InlineData: &genai.Blob{Data: req.Image, MIMEType: mimeType}},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	g.logger.DebugContext(ctx, "calling Gemini",
		"model", g.model,
		"prompt_length", len(req.Prompt),
		"image_bytes", len(req.Image),
		"item_id", req.Metadata["item_id"],
		"style", req.Metadata["style"])

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	return extractImage(resp)
}

func extractImage(resp *genai.GenerateContentResponse) (*generation.Image, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return nil, fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return nil, fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	img := &generation.Image{}
	var text []string
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text = append(text, part.Text)
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && img.Data == nil {
			img.Data = part.InlineData.Data
			img.MIMEType = part.InlineData.MIMEType
		}
	}
	img.Text = strings.Join(text, "\n")

	if img.Data == nil {
		return nil, fmt.Errorf("%w: no image data in response", generation.ErrInvalidResponse)
	}
	return img, nil
}

// classifyError maps client errors onto generation error kinds.
func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	switch {
	case code == 0:
		// No HTTP status: network or transport failure.
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: status %d: %v", generation.ErrTransientFailure, code, err)
	default:
		return fmt.Errorf("%w: status %d: %v", generation.ErrGenerationFailed, code, err)
	}
}

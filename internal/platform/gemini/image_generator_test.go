package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
)

// fakeModels records GenerateContent calls and returns canned responses.
type fakeModels struct {
	mu       sync.Mutex
	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: "Here is the cartoony chair."},
					{InlineData: &genai.Blob{Data: data, MIMEType: "image/png"}},
				},
			},
		}},
	}
}

func validRequest() generation.Request {
	return generation.Request{
		Prompt:   "make it cartoony",
		Image:    []byte("\xff\xd8\xff\xe0 jpeg"),
		Metadata: map[string]string{"item_id": "sku-1", "style": "cartoony"},
	}
}

func TestNewImageGenerator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewImageGenerator(context.Background(), nil, Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewImageGenerator(context.Background(), logger.Discard(), Config{APIKey: "  "})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: imageResponse([]byte("png-bytes"))}
	g := newImageGenerator(logger.Discard(), fake, DefaultModel)

	img, err := g.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "Here is the cartoony chair.", img.Text)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, DefaultModel, fake.model)
	require.Len(t, fake.contents, 1)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "make it cartoony", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Contains(t, fake.config.ResponseModalities, "IMAGE")
}

func TestGenerate_ResponseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{"nil response", nil, generation.ErrInvalidResponse},
		{"no candidates", &genai.GenerateContentResponse{}, generation.ErrInvalidResponse},
		{"safety", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, generation.ErrContentBlocked},
		{"prompt blocked", &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}, generation.ErrContentBlocked},
		{"empty content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}}}, generation.ErrInvalidResponse},
		{"text only", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I cannot draw that"}}},
		}}}, generation.ErrInvalidResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newImageGenerator(logger.Discard(), &fakeModels{resp: tc.resp}, DefaultModel)
			_, err := g.Generate(context.Background(), validRequest())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGenerate_APIErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, generation.ErrTransientFailure},
		{"server error", genai.APIError{Code: 503, Message: "overloaded"}, generation.ErrTransientFailure},
		{"bad request", genai.APIError{Code: 400, Message: "bad image"}, generation.ErrGenerationFailed},
		{"network", errors.New("connection reset by peer"), generation.ErrTransientFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newImageGenerator(logger.Discard(), &fakeModels{err: tc.err}, DefaultModel)
			_, err := g.Generate(context.Background(), validRequest())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: imageResponse([]byte("x"))}
	g := newImageGenerator(logger.Discard(), fake, DefaultModel)

	req := validRequest()
	req.Prompt = ""
	_, err := g.Generate(context.Background(), req)
	assert.ErrorIs(t, err, generation.ErrGenerationFailed)

	req = validRequest()
	req.Image = nil
	_, err = g.Generate(context.Background(), req)
	assert.ErrorIs(t, err, generation.ErrGenerationFailed)

	assert.Equal(t, 0, fake.calls)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := newImageGenerator(logger.Discard(), &fakeModels{err: errors.New("context canceled")}, DefaultModel)
	_, err := g.Generate(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

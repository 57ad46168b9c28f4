package vision

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, cfg)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testGemini(t *testing.T, gen generator) *Gemini {
	cfg := config.NewDefaultConfig().Vision()
	cfg.RequestsPerMin = 60000
	g := newGemini(gen, cfg, zaptest.NewLogger(t))
	g.retryInitial = time.Millisecond
	return g
}

func TestGemini_DetectRegions(t *testing.T) {
	gen := new(mockGenerator)
	response := "```json\n" + `[
		{"box_2d": [100, 50, 150, 550], "label": "Email", "type": "email"},
		{"box_2d": [300, 50, 380, 550], "label": " Cover letter ", "type": "textarea"},
		{"box_2d": [10, 10, 20], "label": "broken"},
		{"box_2d": [500, 600, 400, 700], "label": "inverted"},
		{"box_2d": [600, 100, 650, 400], "label": "", "type": "slider"}
	]` + "\n```"
	gen.On("GenerateContent", mock.Anything, "gemini-2.5-flash", mock.MatchedBy(func(c []*genai.Content) bool {
		return len(c) == 1 && len(c[0].Parts) == 2 && c[0].Parts[0].InlineData != nil &&
			c[0].Parts[0].InlineData.MIMEType == "image/png"
	}), mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
		return cfg.ResponseMIMEType == "application/json"
	})).Return(textResponse(response), nil).Once()

	png := encode(t, blankPage(1000, 2000))
	regions, err := testGemini(t, gen).DetectRegions(context.Background(), png)
	require.NoError(t, err)
	require.Len(t, regions, 3)

	assert.Equal(t, schemas.Rect{X: 50, Y: 200, Width: 500, Height: 100}, regions[0].Bounds)
	assert.Equal(t, "Email", regions[0].Label)
	assert.Equal(t, schemas.CategoryEmail, regions[0].Category)
	assert.Equal(t, "Cover letter", regions[1].Label)
	assert.Equal(t, schemas.CategoryTextarea, regions[1].Category)
	assert.Equal(t, schemas.CategoryUnknown, regions[2].Category)
	gen.AssertExpectations(t)
}

func TestGemini_RetriesTransientErrors(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("503 unavailable")).Once()
	gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(textResponse(`[]`), nil).Once()

	regions, err := testGemini(t, gen).DetectRegions(context.Background(), encode(t, blankPage(10, 10)))
	require.NoError(t, err)
	assert.Empty(t, regions)
	gen.AssertNumberOfCalls(t, "GenerateContent", 2)
}

func TestGemini_Failures(t *testing.T) {
	t.Run("MalformedJSON", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(textResponse(`I could not find any fields.`), nil)
		_, err := testGemini(t, gen).DetectRegions(context.Background(), encode(t, blankPage(10, 10)))
		assert.Error(t, err)
	})

	t.Run("EmptyResponseIsPermanent", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(textResponse("  "), nil)
		_, err := testGemini(t, gen).DetectRegions(context.Background(), encode(t, blankPage(10, 10)))
		assert.Error(t, err)
		gen.AssertNumberOfCalls(t, "GenerateContent", 1)
	})

	t.Run("NotAnImage", func(t *testing.T) {
		gen := new(mockGenerator)
		_, err := testGemini(t, gen).DetectRegions(context.Background(), []byte("nope"))
		assert.Error(t, err)
		gen.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		gen := new(mockGenerator)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := testGemini(t, gen).DetectRegions(ctx, encode(t, blankPage(10, 10)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNew_ProviderSelection(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	m, err := New(ctx, config.VisionConfig{Provider: config.ProviderHeuristic}, logger)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderHeuristic, m.Name())

	m, err = New(ctx, config.VisionConfig{Provider: config.ProviderGemini}, logger)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderHeuristic, m.Name(), "no API key falls back to the heuristic")

	m, err = New(ctx, config.VisionConfig{Provider: config.ProviderGemini, APIKey: "test-key", Model: "gemini-2.5-flash"}, logger)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGemini, m.Name())

	_, err = New(ctx, config.VisionConfig{Provider: "opencv"}, logger)
	assert.Error(t, err)
}

func TestToRegions_ScalesToImage(t *testing.T) {
	regions := toRegions([]modelRegion{{Box: []float64{0, 0, 1000, 1000}}}, 1366, 768, zaptest.NewLogger(t))
	require.Len(t, regions, 1)
	assert.Equal(t, image.Rect(0, 0, 1366, 768).Dx(), int(regions[0].Bounds.Width))
	assert.Equal(t, 768.0, regions[0].Bounds.Height)
}

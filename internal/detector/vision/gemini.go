package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/llmutil"
)

const detectPrompt = `You are given a screenshot of a web page that is %d pixels wide and %d pixels high.
List every form input control visible in it: text boxes, text areas, dropdowns and file upload areas.
Do not list buttons, links or plain text.
Respond with a JSON array only. Each element must be an object with:
  "box_2d": [ymin, xmin, ymax, xmax] normalized to 0-1000,
  "label": the visible label or placeholder of the control, or "" if none,
  "type": one of "text", "email", "phone", "textarea", "select", "file_upload", "unknown".`

// generator is the slice of the genai client used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini vision model to enumerate input regions.
type Gemini struct {
	gen     generator
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
	// retryInitial is the first backoff interval between attempts.
	retryInitial time.Duration
}

// NewGemini creates a Gemini backed model using the Gemini API backend.
func NewGemini(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(gen generator, cfg config.VisionConfig, logger *zap.Logger) *Gemini {
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 10
	}
	return &Gemini{
		gen:          gen,
		model:        cfg.Model,
		timeout:      cfg.APITimeout,
		limiter:      rate.NewLimiter(rate.Limit(rpm/60), 1),
		logger:       logger.Named("vision.gemini"),
		retryInitial: time.Second,
	}
}

func (m *Gemini) Name() string { return config.ProviderGemini }

// modelRegion is the wire shape requested in detectPrompt.
type modelRegion struct {
	Box   []float64 `json:"box_2d"`
	Label string    `json:"label"`
	Type  string    `json:"type"`
}

var modelTypes = map[string]schemas.Category{
	"text":        schemas.CategoryText,
	"email":       schemas.CategoryEmail,
	"phone":       schemas.CategoryPhone,
	"textarea":    schemas.CategoryTextarea,
	"select":      schemas.CategorySelect,
	"file_upload": schemas.CategoryFileUpload,
}

// DetectRegions sends the screenshot to the model and converts the
// normalized boxes it returns into pixel rectangles. Transient API errors
// are retried with exponential backoff.
func (m *Gemini) DetectRegions(ctx context.Context, data []byte) ([]Region, error) {
	cfgImg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to read screenshot size: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, "image/png"),
			genai.NewPartFromText(fmt.Sprintf(detectPrompt, cfgImg.Width, cfgImg.Height)),
		}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	var text string
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retryInitial
	b.MaxElapsedTime = 2 * time.Minute

	operation := func() error {
		if err := m.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		start := time.Now()
		resp, err := m.gen.GenerateContent(callCtx, m.model, contents, genCfg)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			m.logger.Warn("Vision model request failed, retrying.", zap.Error(err))
			return err
		}
		text = resp.Text()
		m.logger.Debug("Vision model responded.", zap.Duration("duration", time.Since(start)), zap.Int("response_len", len(text)))
		if strings.TrimSpace(text) == "" {
			return backoff.Permanent(fmt.Errorf("vision: model returned an empty response"))
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	parsed, err := llmutil.ParseJSONResponse[[]modelRegion](text)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	return toRegions(*parsed, cfgImg.Width, cfgImg.Height, m.logger), nil
}

// toRegions converts normalized boxes to pixels, dropping malformed ones.
func toRegions(in []modelRegion, width, height int, logger *zap.Logger) []Region {
	out := make([]Region, 0, len(in))
	for i, r := range in {
		if len(r.Box) != 4 {
			logger.Debug("Dropping region with malformed box.", zap.Int("index", i))
			continue
		}
		ymin, xmin, ymax, xmax := r.Box[0], r.Box[1], r.Box[2], r.Box[3]
		if xmin < 0 || ymin < 0 || xmax > 1000 || ymax > 1000 || xmax <= xmin || ymax <= ymin {
			logger.Debug("Dropping region outside the image.", zap.Int("index", i), zap.Float64s("box", r.Box))
			continue
		}
		category, ok := modelTypes[strings.ToLower(strings.TrimSpace(r.Type))]
		if !ok {
			category = schemas.CategoryUnknown
		}
		out = append(out, Region{
			Bounds: schemas.Rect{
				X:      xmin / 1000 * float64(width),
				Y:      ymin / 1000 * float64(height),
				Width:  (xmax - xmin) / 1000 * float64(width),
				Height: (ymax - ymin) / 1000 * float64(height),
			},
			Label:    strings.TrimSpace(r.Label),
			Category: category,
		})
	}
	return out
}

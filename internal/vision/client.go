// Package vision talks to the external vision-language model and turns its
// free-text replies into typed results.
package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type Config struct {
	APIKey  string        `validate:"required"`
	Model   string        `validate:"required"`
	BaseURL string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"min=1s,max=10m"`
}

// ConfigFromEnv reads GEMINI_API_KEY (or GOOGLE_API_KEY), GEMINI_MODEL,
// GEMINI_BASE_URL and GEMINI_TIMEOUT.
func ConfigFromEnv() Config {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-1.5-flash"
	}
	timeout := 60 * time.Second
	if v := os.Getenv("GEMINI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	return Config{APIKey: key, Model: model, BaseURL: os.Getenv("GEMINI_BASE_URL"), Timeout: timeout}
}

// Analyzer sends one image with an instruction and returns the raw reply text.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ErrBlocked is returned when the model produced no candidate, typically
// because the prompt or image was blocked.
var ErrBlocked = errors.New("model returned no candidates")

// GeminiClient is the Analyzer backed by the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.SugaredLogger
	gen     *genai.GenerateContentConfig
}

// NewGeminiClient builds a client. httpClient may be nil.
func NewGeminiClient(ctx context.Context, cfg Config, httpClient *http.Client, logger *zap.SugaredLogger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	logger.Infow("vision client ready", "model", cfg.Model)
	return &GeminiClient{
		client:  gc,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
		gen:     &genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	}, nil
}

// Analyze performs exactly one GenerateContent call. Nothing is retried.
func (c *GeminiClient) Analyze(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.gen)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warnw("vision model rejected request", "code", apiErr.Code, "status", apiErr.Status, "err", apiErr.Message)
		}
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrBlocked
	}
	text := resp.Text()
	c.logger.Debugw("vision model replied",
		"model", c.model,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		"reply_len", len(text),
	)
	return text, nil
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mkarwowski/receipt2ledger/internal/common"
)

// GeminiConfig holds the inference client configuration.
type GeminiConfig struct {
	Model   string
	APIKey  string
	Timeout time.Duration
}

// GeminiClient implements Service on top of the GenAI SDK.
type GeminiClient struct {
	cfg    GeminiConfig
	client *genai.Client
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{cfg: cfg, client: client, logger: logger}, nil
}

// Infer sends the image and prompt to the model and returns its raw text
// response. The wait is bounded by the configured timeout.
func (c *GeminiClient) Infer(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("analyzer.infer.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image_bytes", len(image),
		"mime", mimeType,
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, nil)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Error("analyzer.infer.timeout", "req_id", rid, "elapsed_ms", elapsed)
			return "", fmt.Errorf("%w: after %s", common.ErrAnalyzerTimeout, c.cfg.Timeout)
		}
		c.logger.Error("analyzer.infer.error", "req_id", rid, "error", err, "elapsed_ms", elapsed)
		return "", fmt.Errorf("%w: %v", common.ErrAnalyzerUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		c.logger.Error("analyzer.infer.empty", "req_id", rid)
		return "", fmt.Errorf("%w: empty response from model", common.ErrAnalyzerUnavailable)
	}

	c.logger.Info("analyzer.infer.ok",
		"req_id", rid,
		"response_bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

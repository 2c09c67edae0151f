package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FireflyConfig configures the Firefly III-compatible HTTP client.
type FireflyConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// FireflyClient implements Client against a Firefly III-compatible API.
type FireflyClient struct {
	cfg    FireflyConfig
	http   *http.Client
	logger *slog.Logger
}

func NewFireflyClient(cfg FireflyConfig, logger *slog.Logger) *FireflyClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FireflyClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Submit posts one transaction payload and returns the created id.
func (c *FireflyClient) Submit(ctx context.Context, payload Payload) (string, error) {
	raw, status, err := c.do(ctx, http.MethodPost, "/api/v1/transactions", payload)
	if err != nil {
		return "", err
	}
	_ = status

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: submit response carried no transaction id", ErrValidation)
	}
	return out.Data.ID, nil
}

func (c *FireflyClient) ListAccounts(ctx context.Context) ([]Account, error) {
	raw, _, err := c.do(ctx, http.MethodGet, "/api/v1/accounts?type=asset", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode accounts response: %w", err)
	}
	accounts := make([]Account, 0, len(out.Data))
	for _, d := range out.Data {
		accounts = append(accounts, Account{ID: d.ID, Name: d.Attributes.Name, Type: d.Attributes.Type})
	}
	return accounts, nil
}

func (c *FireflyClient) ListCategories(ctx context.Context) ([]Category, error) {
	raw, _, err := c.do(ctx, http.MethodGet, "/api/v1/categories", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode categories response: %w", err)
	}
	cats := make([]Category, 0, len(out.Data))
	for _, d := range out.Data {
		cats = append(cats, Category{ID: d.ID, Name: d.Attributes.Name})
	}
	return cats, nil
}

// do sends one JSON request and maps HTTP outcomes onto the typed failures.
func (c *FireflyClient) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode json: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Info("ledger.http.request", "req_id", reqID, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ledger.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ledger.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("ledger.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return raw, resp.StatusCode, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return raw, resp.StatusCode, fmt.Errorf("%w: status %d: %s", ErrValidation, resp.StatusCode, truncate(string(raw), 512))
	case resp.StatusCode/100 != 2:
		return raw, resp.StatusCode, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

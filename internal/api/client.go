package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/taleforge/internal/metrics"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultRateLimitPerMinute is used when the config leaves the budget unset
	DefaultRateLimitPerMinute = 30
	// errorBodyPreview is how much of a failed response body is kept in the error message
	errorBodyPreview = 100
)

// ClientConfig describes one generateContent endpoint
type ClientConfig struct {
	BaseURL            string
	Model              string
	APIKey             string
	Temperature        float64
	RateLimitPerMinute int
	Timeout            time.Duration
}

// Client sends prompts to a generateContent-style JSON endpoint.
// It performs no retries: every failure is returned as a *GenerationError.
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	logger          *slog.Logger
	metrics         *metrics.Collector
	cfg             ClientConfig
}

// NewClient creates a new API client. collector may be nil.
func NewClient(cfg ClientConfig, logger *slog.Logger, collector *metrics.Collector) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiterPool: NewRateLimiterPool(logger),
		logger:          logger.With("component", "api"),
		metrics:         collector,
		cfg:             cfg,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.cfg.Model
}

// GenerateContent sends a single-part prompt and returns the generated text.
// The text is returned as produced; callers handle code fences and parsing.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, prompt)
	c.metrics.RecordGeneration(c.cfg.Model, time.Since(start), string(KindOf(err)))
	if err != nil {
		c.logger.Warn("Generation request failed",
			"model", c.cfg.Model,
			"kind", KindOf(err),
			"error", err,
			"duration", time.Since(start))
		return "", err
	}

	c.logger.Debug("Generation request succeeded",
		"model", c.cfg.Model,
		"chars", len(text),
		"duration", time.Since(start))
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &GenerationError{Kind: KindTransport, Detail: "API key is not configured"}
	}

	waitStart := time.Now()
	modelID := c.cfg.BaseURL + ":" + c.cfg.Model
	if err := c.rateLimiterPool.Wait(ctx, modelID, c.cfg.RateLimitPerMinute); err != nil {
		return "", &GenerationError{Kind: KindTransport, Detail: fmt.Sprintf("rate limiter wait failed: %v", err), Err: err}
	}
	c.metrics.RecordRateLimiterWait(time.Since(waitStart))

	body, err := c.doRequest(ctx, prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(string(body)) == "" {
		return "", &GenerationError{Kind: KindEmpty, Detail: "Empty response"}
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &GenerationError{Kind: KindProtocol, Detail: "Failed to generate content: invalid response envelope", Err: err}
	}

	text, ok := extractText(resp)
	if !ok {
		return "", &GenerationError{Kind: KindProtocol, Detail: "Failed to generate content"}
	}
	if resp.UsageMetadata != nil {
		c.logger.Debug("Token usage",
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}

	return text, nil
}

func (c *Client) doRequest(ctx context.Context, prompt string) ([]byte, error) {
	temperature := c.cfg.Temperature
	req := GenerateContentRequest{
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: prompt}},
		}},
		GenerationConfig: &GenerationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      &temperature,
		},
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := json.NewEncoder(buf).Encode(req); err != nil {
		return nil, &GenerationError{Kind: KindTransport, Detail: fmt.Sprintf("failed to encode request: %v", err), Err: err}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return nil, &GenerationError{Kind: KindTransport, Detail: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Kind: KindTransport, Detail: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &GenerationError{Kind: KindTransport, StatusCode: httpResp.StatusCode, Detail: fmt.Sprintf("failed to read response: %v", err), Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &GenerationError{
			Kind:       KindTransport,
			StatusCode: httpResp.StatusCode,
			Detail:     fmt.Sprintf("API error %d: %s", httpResp.StatusCode, preview(string(respBody), errorBodyPreview)),
		}
	}

	return respBody, nil
}

// extractText joins the text parts of the first candidate
func extractText(resp GenerateContentResponse) (string, bool) {
	if len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// preview returns the first n runes of s
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

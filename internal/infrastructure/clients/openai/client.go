package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/pkg/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the OpenAI assisted matching provider.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	limiter := newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst)

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: limiter,
	}, nil
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

// SuggestMatch asks the model for the best canonical candidate for a raw
// name. The response is advisory only; the resolver gates trust separately.
func (c *Client) SuggestMatch(ctx context.Context, req providers.MatchRequest) (*entities.MappingSuggestion, error) {
	if strings.TrimSpace(req.RawName) == "" {
		return nil, errors.New("raw name is required")
	}
	if len(req.Candidates) == 0 {
		return nil, errors.New("candidate vocabulary is required")
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordMatchMetric(ctx, c.model, 0, 0, err)
			return nil, err
		}
		recordMatchRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	userPrompt, err := buildMatchUserPrompt(req)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": matchSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature":       0.1,
		"max_output_tokens": 200,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordMatchMetric(ctx, c.model, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordMatchMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: openai request failed with status %d", providers.ErrAssistedMatchUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordMatchMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var text string
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				text = content.Text
				break
			}
		}
		if text != "" {
			break
		}
	}

	if text == "" {
		recordMatchMetric(ctx, c.model, resp.StatusCode, time.Since(start), errors.New("missing output text"))
		return nil, errors.New("openai response missing output text")
	}

	parsed, err := parseMatchPayload([]byte(stripCodeFences(text)))
	if err != nil {
		recordMatchMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return nil, fmt.Errorf("failed to parse openai response: %w", err)
	}

	recordMatchMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)

	if parsed.Refusal != "" || parsed.CanonicalID == "" {
		return nil, fmt.Errorf("%w: %s", providers.ErrAssistedMatchRefused, parsed.Refusal)
	}

	return &entities.MappingSuggestion{
		CanonicalID: parsed.CanonicalID,
		Confidence:  parsed.Confidence,
		Reasoning:   parsed.Reasoning,
	}, nil
}

func stripCodeFences(text string) string {
	cleaned := text
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type matchMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var matchMetricsInit = false
var matchMetricsInst matchMetrics

func ensureMatchMetrics() {
	if matchMetricsInit {
		return
	}
	meter := otel.Meter("github.com/labtrail/backend/openai")

	requestCount, err := meter.Int64Counter(
		"ai.match.request.count",
		metric.WithDescription("Number of assisted matching requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.match.request.duration",
		metric.WithDescription("Assisted matching request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.match.request.errors",
		metric.WithDescription("Number of assisted matching request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.match.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}

	matchMetricsInst = matchMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
	}
	matchMetricsInit = true
}

func recordMatchMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureMatchMetrics()
	if !matchMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	matchMetricsInst.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	matchMetricsInst.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		matchMetricsInst.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordMatchRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureMatchMetrics()
	if !matchMetricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	matchMetricsInst.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}

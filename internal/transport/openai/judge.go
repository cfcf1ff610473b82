package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/domain"
	domjudgement "github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/metrics"
)

const systemPrompt = `You are a search relevance assessor.
Given a search intent and one search result, rate how relevant the result is to the intent.
Answer with a JSON object {"rating": <integer>, "reason": "<one short sentence>"}.
The rating must be an integer between %d (irrelevant) and %d (perfectly relevant).`

// Judge rates documents with an OpenAI-compatible chat model.
type Judge struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the judge model settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewJudge creates an OpenAI-compatible judge. An empty BaseURL keeps the OpenAI default.
func NewJudge(cfg *Config) *Judge {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Model returns the model name used for ratings.
func (j *Judge) Model() string { return j.model }

// Rate asks the model for a rating within p.Scale.
func (j *Judge) Rate(ctx context.Context, p domjudgement.Prompt) (domjudgement.Verdict, error) {
	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, p.Scale.Min, p.Scale.Max)},
			{Role: openai.ChatMessageRoleUser, Content: "Search intent:\n" + p.Intent + "\n\nSearch result:\n" + p.Document},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := j.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.JudgeRequestsTotal.WithLabelValues(j.model, "error").Inc()
		return domjudgement.Verdict{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.JudgeRequestsTotal.WithLabelValues(j.model, "error").Inc()
		return domjudgement.Verdict{}, fmt.Errorf("empty judge response: %w", domain.ErrJudgeProviderError)
	}

	metrics.JudgeTokensTotal.WithLabelValues(j.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.JudgeTokensTotal.WithLabelValues(j.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	v, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.JudgeRequestsTotal.WithLabelValues(j.model, "invalid").Inc()
		return domjudgement.Verdict{}, err
	}
	if !p.Scale.Contains(v.Rating) {
		metrics.JudgeRequestsTotal.WithLabelValues(j.model, "invalid").Inc()
		return domjudgement.Verdict{}, fmt.Errorf("judge rating %d outside [%d, %d]: %w",
			v.Rating, p.Scale.Min, p.Scale.Max, domain.ErrJudgeProviderError)
	}
	metrics.JudgeRequestsTotal.WithLabelValues(j.model, "success").Inc()

	v.PromptTokens = resp.Usage.PromptTokens
	v.CompletionTokens = resp.Usage.CompletionTokens
	j.logger.Debug("judge verdict",
		zap.String("model", j.model),
		zap.Int("rating", v.Rating),
		zap.Duration("duration", duration),
	)
	return v, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (j *Judge) HealthCheck(ctx context.Context) error {
	if _, err := j.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseVerdict accepts the requested JSON object or a bare integer.
func parseVerdict(content string) (domjudgement.Verdict, error) {
	content = strings.TrimSpace(content)

	var parsed struct {
		Rating *json.Number `json:"rating"`
		Reason string       `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Rating != nil {
		n, err := strconv.Atoi(parsed.Rating.String())
		if err != nil {
			return domjudgement.Verdict{}, fmt.Errorf("judge rating %q is not an integer: %w", parsed.Rating.String(), domain.ErrJudgeProviderError)
		}
		return domjudgement.Verdict{Rating: n, Reason: parsed.Reason}, nil
	}

	if n, err := strconv.Atoi(content); err == nil {
		return domjudgement.Verdict{Rating: n}, nil
	}
	return domjudgement.Verdict{}, fmt.Errorf("unparseable judge response %q: %w", truncate(content, 120), domain.ErrJudgeProviderError)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrJudgeProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrJudgeProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("judge API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("judge API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("judge API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("judge request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

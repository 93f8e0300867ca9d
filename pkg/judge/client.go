package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclevikram/TripMind/pkg/config"
)

// maxAttempts bounds retries for a single judge request: one initial attempt
// plus two retries.
const maxAttempts = 3

// Client answers a judge conversation with the model's text response.
type Client interface {
	Generate(ctx context.Context, conv Conversation) (string, error)
	ModelName() string
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint. The
// SDK's internal retries are disabled so the retry policy here is the only
// one in effect.
type OpenAIClient struct {
	client  openai.Client
	model   shared.ChatModel
	cfg     config.JudgeConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIClient builds a judge client from cfg. Each batch worker owns its
// own client; nothing here is shared.
func NewOpenAIClient(cfg config.JudgeConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("both model and API key must be provided to create a judge client")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   shared.ChatModel(cfg.Model),
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// ModelName returns the configured model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.cfg.Model
}

// Generate sends the conversation and returns the first choice's content.
// Transient failures (connection errors, 429, 5xx) are retried with
// exponential backoff; other API errors fail immediately.
func (c *OpenAIClient) Generate(ctx context.Context, conv Conversation) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: buildMessages(conv),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.cfg.MaxTokens)
	}
	params.Temperature = openai.Float(c.cfg.Temperature)

	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = c.cfg.RetryInitialInterval
	}
	b.MaxInterval = 30 * time.Second

	var content string
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		start := time.Now()
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return c.classify(err)
		}

		if len(completion.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("judge returned no completion choices"))
		}

		c.logger.Debug("judge completion",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
			zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
		)

		content = completion.Choices[0].Message.Content
		return nil
	}

	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)
	if err := backoff.Retry(operation, retryPolicy); err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	return content, nil
}

// classify decides whether an error from the completions call is worth
// retrying. Rate limiting and server-side failures are transient; every other
// API status is permanent. Errors that carry no status are connection-level
// and treated as transient.
func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			c.logger.Warn("transient judge API error, retrying",
				zap.Int("status", apiErr.StatusCode), zap.Error(err))
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	c.logger.Warn("network error during judge request, retrying", zap.Error(err))
	return err
}

func buildMessages(conv Conversation) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, turn := range conv {
		switch turn.Role {
		case RoleSystem:
			var text string
			for _, seg := range turn.Segments {
				text += seg.Text
			}
			messages = append(messages, openai.SystemMessage(text))
		case RoleUser:
			messages = append(messages, userMessage(turn))
		}
	}
	return messages
}

func userMessage(turn Turn) openai.ChatCompletionMessageParamUnion {
	// Plain-text turns go over the wire as a simple string content.
	if len(turn.Segments) == 1 && turn.Segments[0].ImageURL == "" {
		return openai.UserMessage(turn.Segments[0].Text)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Segments))
	for _, seg := range turn.Segments {
		if seg.ImageURL != "" {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    seg.ImageURL,
				Detail: "high",
			}))
			continue
		}
		parts = append(parts, openai.TextContentPart(seg.Text))
	}
	return openai.UserMessage(parts)
}

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"ReportDesk/internal/ports"
)

// Config describes an OpenAI-compatible chat endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RPM caps requests per minute; zero disables pacing.
	RPM   int
	Burst int
}

// ChatModelClient implements ports.TextGenerator on top of an eino chat model.
type ChatModelClient struct {
	model   model.BaseChatModel
	limiter *rate.Limiter
}

var _ ports.TextGenerator = (*ChatModelClient)(nil)

// NewChatModelClient builds the OpenAI-compatible chat model from configuration.
func NewChatModelClient(ctx context.Context, cfg Config) (*ChatModelClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return New(cm, NewLimiter(cfg.RPM, cfg.Burst)), nil
}

// New wraps an existing chat model. limiter may be nil.
func New(cm model.BaseChatModel, limiter *rate.Limiter) *ChatModelClient {
	return &ChatModelClient{model: cm, limiter: limiter}
}

// NewLimiter converts a per-minute budget into a token bucket; rpm <= 0 returns nil.
func NewLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// Generate sends the prompt as a single user message.
func (c *ChatModelClient) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("chat model is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	opts := []model.Option{model.WithTemperature(float32(req.Temperature))}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}

	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(req.Prompt)}, opts...)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

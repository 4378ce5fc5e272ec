package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

const (
	// DefaultModel is the generative model identifier sent with every request.
	DefaultModel = "gemini-3-flash-preview"
	// DefaultTemperature keeps drafts deterministic-leaning without being fixed.
	DefaultTemperature = 0.4
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\\s*```\\s*$")
)

// invalidCredentialMarkers are lower-cased substrings providers use when rejecting a key.
var invalidCredentialMarkers = []string{
	"api key not valid",
	"api_key_invalid",
	"invalid api key",
	"incorrect api key",
	"invalid_api_key",
	"api key expired",
	"permission_denied",
	"401 unauthorized",
	"status code: 401",
}

// GeneratorConfig carries the fixed generation parameters.
type GeneratorConfig struct {
	Credential  string
	Model       string
	Temperature float64
}

// Generator drafts an HTML report from collected news.
type Generator struct {
	client ports.TextGenerator
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator applies defaults for model and temperature.
func NewGenerator(client ports.TextGenerator, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{client: client, cfg: cfg, logger: logger}
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.cfg.Model
}

// Generate builds the prompt, calls the collaborator and cleans the returned markup.
// Callers are expected to pass a non-empty news list.
func (g *Generator) Generate(ctx context.Context, news []domain.NewsItem, dateLabel string) (domain.ReportDraft, error) {
	for i, item := range news {
		if strings.TrimSpace(item.Title) == "" {
			return domain.ReportDraft{}, &domain.GenerationError{
				Kind:    domain.FailureInvalidInput,
				Message: fmt.Sprintf(msgInvalidNewsItem, i+1),
			}
		}
	}

	if strings.TrimSpace(g.cfg.Credential) == "" {
		return domain.ReportDraft{}, &domain.GenerationError{
			Kind:    domain.FailureMissingCredential,
			Message: msgMissingCredential,
		}
	}
	if g.client == nil {
		return domain.ReportDraft{}, &domain.GenerationError{
			Kind:    domain.FailureGeneration,
			Message: msgGenerationFailed,
		}
	}

	prompt := buildReportPrompt(news, dateLabel)
	g.logger.Debug("generate report", "model", g.cfg.Model, "news", len(news), "prompt_len", len(prompt))

	text, err := g.client.Generate(ctx, ports.GenerationRequest{
		Model:       g.cfg.Model,
		Prompt:      prompt,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		if isInvalidCredential(err) {
			return domain.ReportDraft{}, &domain.GenerationError{
				Kind:    domain.FailureInvalidCredential,
				Message: msgInvalidCredential,
				Err:     err,
			}
		}
		return domain.ReportDraft{}, &domain.GenerationError{
			Kind:    domain.FailureGeneration,
			Message: msgGenerationFailed,
			Err:     err,
		}
	}

	body := CleanMarkup(text)
	if body == "" {
		return domain.ReportDraft{}, &domain.GenerationError{
			Kind:    domain.FailureEmptyResponse,
			Message: msgEmptyResponse,
		}
	}

	return domain.ReportDraft{HTMLBody: body, DateLabel: dateLabel}, nil
}

// CleanMarkup removes a wrapping fenced-code-block marker and surrounding whitespace.
func CleanMarkup(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func isInvalidCredential(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range invalidCredentialMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

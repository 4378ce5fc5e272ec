package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"ReportDesk/internal/config"
	"ReportDesk/internal/domain"
	"ReportDesk/internal/infrastructure/llm"
	"ReportDesk/internal/infrastructure/mailer"
	"ReportDesk/internal/infrastructure/rss2json"
	"ReportDesk/internal/ports"
	"ReportDesk/internal/presentation"
	"ReportDesk/internal/report"
	"ReportDesk/internal/tui"
	"ReportDesk/internal/usecase"
)

// Application wires configs to use cases and the operator console.
type Application struct {
	cfg       config.Config
	workflow  *usecase.Workflow
	directory presentation.Directory
	logger    *slog.Logger
}

// New builds the report session from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseLogger = baseLogger.With("session", uuid.NewString())

	roster, err := rosterFrom(cfg.Recipients)
	if err != nil {
		return nil, err
	}

	searcher := rss2json.NewClient(rss2json.Options{
		Endpoint: cfg.Search.Endpoint,
		FeedURL:  cfg.Search.FeedURL,
		APIKey:   cfg.Search.APIKey,
		Language: cfg.Search.Language,
		Region:   cfg.Search.Region,
		Edition:  cfg.Search.Edition,
		Window:   cfg.Search.Window,
		Timeout:  cfg.Search.Timeout,
	}, nil)
	collector := usecase.NewCollector(searcher, baseLogger.With("component", "collector"))

	var textGen ports.TextGenerator
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewChatModelClient(ctx, llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
			RPM:     cfg.LLM.RPM,
			Burst:   cfg.LLM.Burst,
		})
		if err != nil {
			return nil, err
		}
		textGen = client
	}
	generator := usecase.NewGenerator(textGen, usecase.GeneratorConfig{
		Credential:  cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, baseLogger.With("component", "generator"))

	composer := report.NewComposer(report.ComposerConfig{
		SenderName: cfg.Sender.Name,
		FooterHTML: cfg.Report.FooterHTML,
		Sanitize:   !cfg.Mail.AllowRawHTML,
	})

	loc := cfg.Report.Location()
	layout := cfg.Report.DateLayout
	workflow := usecase.NewWorkflow(usecase.WorkflowDeps{
		Collector: collector,
		Generator: generator,
		Mailer:    newMailer(cfg, baseLogger.With("component", "mailer")),
		Roster:    roster,
		Filters:   usecase.SearchFilters{Sites: cfg.Search.Sites, Keywords: cfg.Search.Keywords},
		Composer:  composer,
		DateLabel: func(t time.Time) string { return t.In(loc).Format(layout) },
		Logger:    baseLogger.With("component", "workflow"),
	})

	return &Application{
		cfg:       cfg,
		workflow:  workflow,
		directory: presentation.Directory{Roster: roster, Composer: composer},
		logger:    baseLogger,
	}, nil
}

// Run blocks on the operator console until the user quits or ctx ends.
func (a *Application) Run(ctx context.Context) error {
	model := tui.New(ctx, a.workflow, a.directory)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	a.logger.Info("console started", "mail_mode", a.cfg.Mail.Mode, "recipients", a.directory.Roster.Len())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}

func newMailer(cfg config.Config, logger *slog.Logger) ports.Mailer {
	if cfg.Mail.Mode == config.MailModeRelay {
		return mailer.NewRelay(cfg.Mail.RelayURL, cfg.Mail.RelayToken, cfg.Sender.Email, nil)
	}
	return mailer.NewSimulated(cfg.Mail.ReviewDelay, cfg.Mail.BroadcastDelay, logger)
}

func rosterFrom(entries []config.RecipientConfig) (domain.Roster, error) {
	recipients := make([]domain.Recipient, 0, len(entries))
	for _, e := range entries {
		recipients = append(recipients, domain.Recipient{Email: e.Email, DisplayName: e.Name})
	}
	roster, err := domain.NewRoster(recipients)
	if err != nil {
		return domain.Roster{}, fmt.Errorf("build roster: %w", err)
	}
	return roster, nil
}

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

// Simulated acknowledges sends after a fixed delay without delivering anything.
type Simulated struct {
	reviewDelay    time.Duration
	broadcastDelay time.Duration
	logger         *slog.Logger
}

var _ ports.Mailer = (*Simulated)(nil)

// NewSimulated builds a mailer that waits reviewDelay for single sends and broadcastDelay for
// blind-copy sends.
func NewSimulated(reviewDelay, broadcastDelay time.Duration, logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulated{reviewDelay: reviewDelay, broadcastDelay: broadcastDelay, logger: logger}
}

// SendTo pretends to deliver msg to a single recipient.
func (s *Simulated) SendTo(ctx context.Context, msg ports.Message, to domain.Recipient) error {
	if strings.TrimSpace(to.Email) == "" {
		return fmt.Errorf("recipient has no email")
	}
	if err := wait(ctx, s.reviewDelay); err != nil {
		return err
	}
	s.logger.Info("simulated send", "message_id", msg.ID, "to", to.Email, "subject", msg.Subject)
	return nil
}

// SendBlindCopyTo pretends to deliver msg to every recipient as BCC.
func (s *Simulated) SendBlindCopyTo(ctx context.Context, msg ports.Message, bcc []domain.Recipient) error {
	if len(bcc) == 0 {
		return fmt.Errorf("no bcc recipients")
	}
	if err := wait(ctx, s.broadcastDelay); err != nil {
		return err
	}
	s.logger.Info("simulated bcc send", "message_id", msg.ID, "recipients", len(bcc), "subject", msg.Subject)
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send interrupted: %w", ctx.Err())
	}
}

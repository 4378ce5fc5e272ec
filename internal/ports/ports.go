package ports

import (
	"context"

	"ReportDesk/internal/domain"
)

// RawNewsItem is an item as returned by the news-search collaborator, before normalization.
type RawNewsItem struct {
	Title       string
	Description string
	Link        string
	PublishedAt string
}

// SearchBatch is a single response from the news-search collaborator.
type SearchBatch struct {
	Status  string
	Message string
	Items   []RawNewsItem
}

// NewsSearcher runs a free-text news query against an upstream search service.
type NewsSearcher interface {
	Search(ctx context.Context, query string) (SearchBatch, error)
}

// GenerationRequest is what the text-generation collaborator receives.
type GenerationRequest struct {
	Model       string
	Prompt      string
	Temperature float64
}

// TextGenerator asks a generative-AI service for a completion.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Message is a composed report email.
type Message struct {
	ID       string
	FromName string
	Subject  string
	HTMLBody string
}

// Mailer distributes composed reports. Both calls fail closed.
type Mailer interface {
	SendTo(ctx context.Context, msg Message, to domain.Recipient) error
	SendBlindCopyTo(ctx context.Context, msg Message, bcc []domain.Recipient) error
}

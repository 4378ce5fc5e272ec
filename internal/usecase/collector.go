package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

// MaxNewsItems caps how many items a collection keeps.
const MaxNewsItems = 12

const searchStatusOK = "ok"

var publishedLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// Collection is one search outcome. Received counts items before truncation.
type Collection struct {
	Items    []domain.NewsItem
	Received int
}

// Collector turns a news-search response into a bounded list of news items.
type Collector struct {
	searcher ports.NewsSearcher
	logger   *slog.Logger
}

// NewCollector wires the news-search collaborator.
func NewCollector(searcher ports.NewsSearcher, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{searcher: searcher, logger: logger}
}

// Collect runs one search built from the site and keyword filters.
func (c *Collector) Collect(ctx context.Context, sites, keywords string) (Collection, error) {
	if c.searcher == nil {
		return Collection{}, &domain.CollectionError{Message: msgSearchUnavailable}
	}

	query := buildQuery(sites, keywords)
	c.logger.Debug("search news", "query_len", len(query))

	batch, err := c.searcher.Search(ctx, query)
	if err != nil {
		return Collection{}, &domain.CollectionError{Message: msgSearchFailed, Err: err}
	}
	if batch.Status != searchStatusOK {
		msg := msgSearchNotOK
		if batch.Message != "" {
			msg += " (" + batch.Message + ")"
		}
		return Collection{}, &domain.CollectionError{Message: msg}
	}

	limit := len(batch.Items)
	if limit > MaxNewsItems {
		limit = MaxNewsItems
	}

	items := make([]domain.NewsItem, 0, limit)
	for _, raw := range batch.Items[:limit] {
		items = append(items, domain.NewsItem{
			Title:       strings.TrimSpace(raw.Title),
			Summary:     stripMarkup(raw.Description),
			Link:        strings.TrimSpace(raw.Link),
			PublishedAt: parsePublished(raw.PublishedAt),
		})
	}

	c.logger.Debug("news collected", "received", len(batch.Items), "kept", len(items))
	return Collection{Items: items, Received: len(batch.Items)}, nil
}

func buildQuery(sites, keywords string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{sites, keywords} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func stripMarkup(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || !strings.ContainsAny(value, "<&") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return strings.TrimSpace(doc.Text())
}

func parsePublished(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

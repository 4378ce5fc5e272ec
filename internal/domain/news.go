package domain

import "time"

// NewsItem is a normalized news entry produced by the collector.
type NewsItem struct {
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time
}

// ReportDraft is the AI-produced report body awaiting review.
type ReportDraft struct {
	HTMLBody  string
	DateLabel string
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

type fakeSearcher struct {
	batch ports.SearchBatch
	err   error
	query string
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, query string) (ports.SearchBatch, error) {
	f.calls++
	f.query = query
	return f.batch, f.err
}

type fakeTextGenerator struct {
	mu    sync.Mutex
	texts []string
	errs  []error
	reqs  []ports.GenerationRequest
}

func (f *fakeTextGenerator) Generate(_ context.Context, req ports.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	var (
		text string
		err  error
	)
	if i < len(f.texts) {
		text = f.texts[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return text, err
}

func (f *fakeTextGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeMailer struct {
	mu        sync.Mutex
	attempts  []string
	toErr     error
	bccErr    error
	reviews   []ports.Message
	reviewers []domain.Recipient
	broadcast []ports.Message
	bcc       [][]domain.Recipient
}

func (f *fakeMailer) SendTo(_ context.Context, msg ports.Message, to domain.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, msg.ID)
	if f.toErr != nil {
		return f.toErr
	}
	f.reviews = append(f.reviews, msg)
	f.reviewers = append(f.reviewers, to)
	return nil
}

func (f *fakeMailer) SendBlindCopyTo(_ context.Context, msg ports.Message, bcc []domain.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, msg.ID)
	if f.bccErr != nil {
		return f.bccErr
	}
	f.broadcast = append(f.broadcast, msg)
	f.bcc = append(f.bcc, bcc)
	return nil
}

func (f *fakeMailer) setErrors(to, bcc error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toErr, f.bccErr = to, bcc
}

// blockingCollector parks Collect until release is closed.
type blockingCollector struct {
	started chan struct{}
	release chan struct{}
	items   []domain.NewsItem
}

func newBlockingCollector(items []domain.NewsItem) *blockingCollector {
	return &blockingCollector{started: make(chan struct{}), release: make(chan struct{}), items: items}
}

func (b *blockingCollector) Collect(ctx context.Context, _, _ string) (Collection, error) {
	close(b.started)
	select {
	case <-b.release:
		return Collection{Items: b.items, Received: len(b.items)}, nil
	case <-ctx.Done():
		return Collection{}, ctx.Err()
	}
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func sampleRaw(n int) []ports.RawNewsItem {
	items := make([]ports.RawNewsItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, ports.RawNewsItem{
			Title:       fmt.Sprintf("新聞 %d", i),
			Description: fmt.Sprintf("<p>摘要 <b>%d</b></p>", i),
			Link:        fmt.Sprintf("https://news.example.com/%d", i),
			PublishedAt: "2026-10-16 08:30:00",
		})
	}
	return items
}

func sampleNews(n int) []domain.NewsItem {
	items := make([]domain.NewsItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, domain.NewsItem{
			Title:   fmt.Sprintf("新聞 %d", i),
			Summary: fmt.Sprintf("摘要 %d", i),
		})
	}
	return items
}

func testRoster() domain.Roster {
	roster, err := domain.NewRoster([]domain.Recipient{
		{Email: "reviewer@example.com", DisplayName: "洪主管"},
		{Email: "a@example.com", DisplayName: "客戶甲"},
		{Email: "b@example.com", DisplayName: "客戶乙"},
	})
	if err != nil {
		panic(err)
	}
	return roster
}

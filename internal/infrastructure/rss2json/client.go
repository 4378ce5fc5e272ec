package rss2json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ReportDesk/internal/ports"
)

const (
	defaultEndpoint = "https://api.rss2json.com/v1/api.json"
	defaultFeedURL  = "https://news.google.com/rss/search"
)

// Options describes the proxy endpoint and the Google News search feed it wraps.
type Options struct {
	Endpoint string
	FeedURL  string
	APIKey   string
	Language string
	Region   string
	Edition  string
	Window   string
	Timeout  time.Duration
}

// Client searches Google News through the rss2json proxy.
type Client struct {
	opts Options
	http *http.Client
}

var _ ports.NewsSearcher = (*Client)(nil)

// NewClient fills zero options with the zh-TW Google News defaults.
func NewClient(opts Options, httpClient *http.Client) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.FeedURL == "" {
		opts.FeedURL = defaultFeedURL
	}
	if opts.Language == "" {
		opts.Language = "zh-TW"
	}
	if opts.Region == "" {
		opts.Region = "TW"
	}
	if opts.Edition == "" {
		opts.Edition = "TW:zh-Hant"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, http: httpClient}
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Items   []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		PubDate     string `json:"pubDate"`
	} `json:"items"`
}

// Search issues one query and returns the proxy's batch as-is.
func (c *Client) Search(ctx context.Context, query string) (ports.SearchBatch, error) {
	reqURL, err := c.requestURL(query)
	if err != nil {
		return ports.SearchBatch{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ports.SearchBatch{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.SearchBatch{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ports.SearchBatch{}, fmt.Errorf("read response: %w", err)
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return ports.SearchBatch{}, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return ports.SearchBatch{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Status == "" {
		if resp.StatusCode != http.StatusOK {
			return ports.SearchBatch{}, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return ports.SearchBatch{}, fmt.Errorf("decode response: missing status field")
	}

	batch := ports.SearchBatch{
		Status:  decoded.Status,
		Message: strings.TrimSpace(decoded.Message),
		Items:   make([]ports.RawNewsItem, 0, len(decoded.Items)),
	}
	for _, item := range decoded.Items {
		batch.Items = append(batch.Items, ports.RawNewsItem{
			Title:       item.Title,
			Description: item.Description,
			Link:        item.Link,
			PublishedAt: item.PubDate,
		})
	}
	return batch, nil
}

func (c *Client) requestURL(query string) (string, error) {
	feed, err := url.Parse(c.opts.FeedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}
	q := strings.TrimSpace(query)
	if c.opts.Window != "" {
		q += " when:" + c.opts.Window
	}
	fq := feed.Query()
	fq.Set("q", q)
	fq.Set("hl", c.opts.Language)
	fq.Set("gl", c.opts.Region)
	fq.Set("ceid", c.opts.Edition)
	feed.RawQuery = fq.Encode()

	endpoint, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	eq := endpoint.Query()
	eq.Set("rss_url", feed.String())
	if c.opts.APIKey != "" {
		eq.Set("api_key", c.opts.APIKey)
	}
	endpoint.RawQuery = eq.Encode()
	return endpoint.String(), nil
}

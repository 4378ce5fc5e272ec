package report

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	reportPolicyOnce sync.Once
	reportPolicy     *bluemonday.Policy
)

var reportStyles = []string{
	"background-color", "border", "border-radius", "border-top", "box-shadow", "color",
	"font-family", "font-size", "font-weight", "line-height", "margin", "margin-bottom",
	"margin-top", "max-width", "overflow", "padding", "padding-top", "text-align",
}

// ReportHTMLPolicy allows the layout tags and inline styles the report template uses, and
// nothing executable.
func ReportHTMLPolicy() *bluemonday.Policy {
	reportPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("div", "span", "strong", "br", "section", "table", "tr", "td", "th")
		policy.AllowStyles(reportStyles...).Globally()
		policy.AllowURLSchemes("http", "https", "mailto")
		policy.RequireParseableURLs(true)
		reportPolicy = policy
	})
	return reportPolicy
}

// SanitizeHTML strips scripts, event handlers and unsafe URLs from generated markup.
func SanitizeHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return ReportHTMLPolicy().Sanitize(s)
}

var blockTags = "div, p, br, li, tr, h1, h2, h3, h4, section"

// PlainText flattens report markup into readable lines for terminal display.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	doc.Find("script, style").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

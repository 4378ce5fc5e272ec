package report

import (
	"fmt"
	"html"
	"strings"

	"ReportDesk/internal/domain"
)

// BroadcastGreetingName addresses the whole blind-copied audience.
const BroadcastGreetingName = "投資夥伴"

// DefaultFooterHTML is the investment-risk disclaimer appended to every report.
const DefaultFooterHTML = `<div style="max-width: 600px; margin: 30px auto; font-family: 'Microsoft JhengHei', Arial, sans-serif; border-top: 1px solid #ddd; padding-top: 20px;">
  <div style="font-size: 12px; color: #999999; line-height: 1.6; text-align: justify; padding: 0 20px;">
    <strong>【投資警語】</strong><br>
    1. 投資一定有風險，基金投資有賺有賠，申購前應詳閱基金公開說明書。<br>
    2. 基金經金管會核准或同意生效，惟不表示絕無風險。基金經理公司以往之經理績效不保證基金之最低投資收益。<br>
    3. 本文提及之經濟走勢預測不必然代表本基金之績效。
  </div>
</div>`

// Envelope is a fully composed report email.
type Envelope struct {
	FromName string
	Subject  string
	HTML     string
}

// ComposerConfig holds the static envelope settings.
type ComposerConfig struct {
	SenderName string
	FooterHTML string
	// Sanitize passes the AI body through SanitizeHTML before it leaves the preview.
	Sanitize bool
}

// Composer wraps a draft with greeting, footer and headers.
type Composer struct {
	cfg ComposerConfig
}

// NewComposer applies the default footer when none is configured.
func NewComposer(cfg ComposerConfig) *Composer {
	if strings.TrimSpace(cfg.FooterHTML) == "" {
		cfg.FooterHTML = DefaultFooterHTML
	}
	return &Composer{cfg: cfg}
}

// SenderName returns the display name used in From.
func (c *Composer) SenderName() string {
	return c.cfg.SenderName
}

// Review composes the copy sent to the primary reviewer.
func (c *Composer) Review(draft domain.ReportDraft, reviewer domain.Recipient) Envelope {
	return c.compose(draft, reviewer.DisplayName, c.cfg.Sanitize)
}

// Broadcast composes the copy blind-copied to every recipient.
func (c *Composer) Broadcast(draft domain.ReportDraft) Envelope {
	return c.compose(draft, BroadcastGreetingName, c.cfg.Sanitize)
}

// Preview composes the in-app preview. The body is shown as generated.
func (c *Composer) Preview(draft domain.ReportDraft, greetingName string) Envelope {
	return c.compose(draft, greetingName, false)
}

func (c *Composer) compose(draft domain.ReportDraft, greetingName string, sanitize bool) Envelope {
	body := draft.HTMLBody
	if sanitize {
		body = SanitizeHTML(body)
	}
	var sb strings.Builder
	sb.WriteString(Greeting(greetingName))
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(c.cfg.FooterHTML)
	return Envelope{
		FromName: c.cfg.SenderName,
		Subject:  Subject(draft.DateLabel),
		HTML:     sb.String(),
	}
}

// Subject renders the mail subject line for a report date.
func Subject(dateLabel string) string {
	return "📈 基金市場報告 - " + dateLabel
}

// Greeting renders the salutation block. The broadcast name is not padded with a space.
func Greeting(name string) string {
	sep := " "
	if name == BroadcastGreetingName {
		sep = ""
	}
	return fmt.Sprintf(`<div style="max-width: 600px; margin: 30px auto 0 auto; font-family: 'Microsoft JhengHei', Arial, sans-serif; color: #333; font-size: 16px; padding-left: 10px;">親愛的%s<strong>%s</strong> 您好：</div>`,
		sep, html.EscapeString(name))
}

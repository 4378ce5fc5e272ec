package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

// Relay hands composed reports to an HTTP mail relay.
type Relay struct {
	endpoint  string
	token     string
	fromEmail string
	client    *http.Client
}

var _ ports.Mailer = (*Relay)(nil)

// NewRelay registers the relay endpoint, bearer token and sender address.
func NewRelay(endpoint, token, fromEmail string, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Relay{endpoint: endpoint, token: token, fromEmail: fromEmail, client: client}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type relayPayload struct {
	ID        string    `json:"id"`
	FromName  string    `json:"from_name"`
	FromEmail string    `json:"from_email,omitempty"`
	To        []address `json:"to,omitempty"`
	Bcc       []address `json:"bcc,omitempty"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
}

// SendTo posts msg addressed to a single recipient.
func (r *Relay) SendTo(ctx context.Context, msg ports.Message, to domain.Recipient) error {
	if strings.TrimSpace(to.Email) == "" {
		return fmt.Errorf("recipient has no email")
	}
	return r.post(ctx, r.payload(msg, []address{toAddress(to)}, nil))
}

// SendBlindCopyTo posts msg with every recipient in BCC and no visible To list.
func (r *Relay) SendBlindCopyTo(ctx context.Context, msg ports.Message, bcc []domain.Recipient) error {
	if len(bcc) == 0 {
		return fmt.Errorf("no bcc recipients")
	}
	addrs := make([]address, 0, len(bcc))
	for _, rc := range bcc {
		addrs = append(addrs, toAddress(rc))
	}
	return r.post(ctx, r.payload(msg, nil, addrs))
}

func (r *Relay) payload(msg ports.Message, to, bcc []address) relayPayload {
	return relayPayload{
		ID:        msg.ID,
		FromName:  msg.FromName,
		FromEmail: r.fromEmail,
		To:        to,
		Bcc:       bcc,
		Subject:   msg.Subject,
		HTML:      msg.HTMLBody,
	}
}

func (r *Relay) post(ctx context.Context, payload relayPayload) error {
	if r.endpoint == "" || r.client == nil {
		return fmt.Errorf("mail relay misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if payload.ID != "" {
		req.Header.Set("Idempotency-Key", payload.ID)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail relay error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

func toAddress(r domain.Recipient) address {
	return address{Email: r.Email, Name: r.DisplayName}
}

// Package notify delivers owner notifications by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when the channel lacks a destination or a
// provider credential. Callers treat it as "skip", not as a failure.
var ErrNotConfigured = errors.New("email channel not configured")

const (
	DefaultFrom    = "inbox@aadivya.net"
	DefaultBaseURL = "https://api.resend.com"
)

// Email is a plain-text message.
type Email struct {
	To      string
	Subject string
	Body    string
	ReplyTo string
}

// Receipt identifies a message accepted by the provider.
type Receipt struct {
	ID string
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	from    string
	to      string
}

type ResendOption func(*ResendMailer)

func WithBaseURL(u string) ResendOption {
	return func(m *ResendMailer) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			m.baseURL = u
		}
	}
}

func WithFrom(from string) ResendOption {
	return func(m *ResendMailer) {
		if from = strings.TrimSpace(from); from != "" {
			m.from = from
		}
	}
}

// WithRestyClient swaps the underlying HTTP client.
func WithRestyClient(c *resty.Client) ResendOption {
	return func(m *ResendMailer) { m.client = c }
}

// NewResendMailer builds a mailer that delivers to recipient using apiKey.
// Either may be empty; Send then returns ErrNotConfigured.
func NewResendMailer(apiKey, recipient string, opts ...ResendOption) *ResendMailer {
	m := &ResendMailer{
		client:  resty.New().SetTimeout(15 * time.Second),
		baseURL: DefaultBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		from:    DefaultFrom,
		to:      strings.TrimSpace(recipient),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Recipient is the configured owner address.
func (m *ResendMailer) Recipient() string { return m.to }

// CheckConfig reports which setting is missing, if any.
func (m *ResendMailer) CheckConfig() error {
	if m.to == "" {
		return fmt.Errorf("%w: missing EMAIL_TO", ErrNotConfigured)
	}
	return m.checkKey()
}

func (m *ResendMailer) checkKey() error {
	if m.apiKey == "" {
		return fmt.Errorf("%w: missing RESEND_API_KEY", ErrNotConfigured)
	}
	return nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send delivers e. An empty e.To falls back to Recipient().
func (m *ResendMailer) Send(ctx context.Context, e Email) (Receipt, error) {
	to := strings.TrimSpace(e.To)
	if to == "" {
		to = m.to
	}
	if to == "" {
		return Receipt{}, fmt.Errorf("%w: missing EMAIL_TO", ErrNotConfigured)
	}
	if err := m.checkKey(); err != nil {
		return Receipt{}, err
	}

	var out sendResponse
	var apiErr errorResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(m.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{
			From:    m.from,
			To:      []string{to},
			Subject: e.Subject,
			Text:    e.Body,
			ReplyTo: strings.TrimSpace(e.ReplyTo),
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(m.baseURL + "/emails")
	if err != nil {
		return Receipt{}, fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return Receipt{}, fmt.Errorf("resend: status %d: %s", resp.StatusCode(), msg)
	}
	return Receipt{ID: out.ID}, nil
}

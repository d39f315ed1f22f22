package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderType names a delivery API
type ProviderType string

const (
	ProviderBrevo  ProviderType = "brevo"
	ProviderResend ProviderType = "resend"
)

// Message is one outgoing email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Provider delivers messages through one API
type Provider interface {
	Send(ctx context.Context, msg Message) error
	GetProviderName() string
}

// ProviderConfig untuk create provider
type ProviderConfig struct {
	Type      ProviderType
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
	Timeout   time.Duration
}

// NewProvider creates the provider named by cfg.Type
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s", cfg.Type)
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("sender address is required for %s", cfg.Type)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch ProviderType(strings.ToLower(string(cfg.Type))) {
	case ProviderBrevo:
		return &BrevoProvider{cfg: withBaseURL(cfg, "https://api.brevo.com/v3"), httpClient: client}, nil
	case ProviderResend:
		return &ResendProvider{cfg: withBaseURL(cfg, "https://api.resend.com"), httpClient: client}, nil
	}
	return nil, fmt.Errorf("unsupported email provider: %s", cfg.Type)
}

func withBaseURL(cfg ProviderConfig, def string) ProviderConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = def
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// Mailer adapts a Provider to the send_email action
type Mailer struct {
	provider Provider
}

func NewMailer(provider Provider) *Mailer {
	return &Mailer{provider: provider}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if m == nil || m.provider == nil {
		return fmt.Errorf("no email provider configured")
	}
	return m.provider.Send(ctx, Message{To: to, Subject: subject, Body: body})
}

func (m *Mailer) GetProviderName() string {
	if m == nil || m.provider == nil {
		return "none"
	}
	return m.provider.GetProviderName()
}

// postJSON sends payload and treats any 2xx as delivered
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}, provider string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

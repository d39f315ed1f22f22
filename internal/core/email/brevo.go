package email

import (
	"context"
	"net/http"
)

// BrevoProvider sends through the Brevo transactional API
type BrevoProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (p *BrevoProvider) Send(ctx context.Context, msg Message) error {
	req := brevoEmailRequest{
		Sender:  brevoContact{Email: p.cfg.FromEmail, Name: p.cfg.FromName},
		To:      []brevoContact{{Email: msg.To}},
		Subject: msg.Subject,
	}
	if looksLikeHTML(msg.Body) {
		req.HTMLContent = msg.Body
	} else {
		req.TextContent = msg.Body
	}
	return postJSON(ctx, p.httpClient, p.cfg.BaseURL+"/smtp/email", map[string]string{"api-key": p.cfg.APIKey}, req, "brevo")
}

func (p *BrevoProvider) GetProviderName() string {
	return "brevo"
}

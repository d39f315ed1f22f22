package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ResendProvider sends through the Resend API
type ResendProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (p *ResendProvider) Send(ctx context.Context, msg Message) error {
	from := p.cfg.FromEmail
	if p.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", p.cfg.FromName, p.cfg.FromEmail)
	}
	req := resendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
	}
	if looksLikeHTML(msg.Body) {
		req.HTML = msg.Body
	} else {
		req.Text = msg.Body
	}
	return postJSON(ctx, p.httpClient, p.cfg.BaseURL+"/emails", map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, req, "resend")
}

func (p *ResendProvider) GetProviderName() string {
	return "resend"
}

func looksLikeHTML(body string) bool {
	s := strings.TrimSpace(body)
	return strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

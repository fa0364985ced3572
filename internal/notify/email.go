package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/kev765740/dependencywarden/internal/config"
)

// EmailChannel sends notifications via SMTP.
type EmailChannel struct {
	cfg config.EmailNotifyConfig
}

// NewEmail creates an EmailChannel from cfg.
func NewEmail(cfg config.EmailNotifyConfig) *EmailChannel { return &EmailChannel{cfg: cfg} }

func (e *EmailChannel) Name() string { return "email" }
func (e *EmailChannel) IsConfigured() bool {
	return e.cfg.Host != "" && len(e.cfg.To) > 0 && e.cfg.From != ""
}

func (e *EmailChannel) Send(_ context.Context, evt Event) error {
	body := evt.Body
	if evt.URL != "" {
		body += "\n\n" + evt.URL
	}
	msg := fmt.Sprintf("Subject: %s\nFrom: %s\nTo: %s\nMIME-Version: 1.0\nContent-Type: text/plain; charset=utf-8\n\n%s",
		evt.Title, e.cfg.From, strings.Join(e.cfg.To, ", "), body)

	port := e.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, port)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	return smtp.SendMail(addr, auth, e.cfg.From, e.cfg.To, []byte(strings.ReplaceAll(msg, "\n", "\r\n")))
}

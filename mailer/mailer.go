// Package mailer renders and delivers account lifecycle email. Rendering
// uses django templates; delivery goes through an injected Sender so the
// transport stays swappable.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

//go:embed templates
var templatesFS embed.FS

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message. SMTP, an API client, and test
// doubles all fit.
type Sender func(ctx context.Context, msg Message) error

// Logger is the subset of logging the mailer needs.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config carries the rendering context shared by every message.
type Config struct {
	// BaseURL is the public URL links in email point at.
	BaseURL string
	// From is informational; delivery is the Sender's concern.
	From string
}

// Mailer renders lifecycle email from templates and hands them to a Sender.
type Mailer struct {
	engine *django.Engine
	cfg    Config
	send   Sender
}

func New(cfg Config, send Sender) (*Mailer, error) {
	engine := django.NewFileSystem(http.FS(templatesFS), ".html")
	engine.Directory = "/templates"
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	return &Mailer{
		engine: engine,
		cfg:    cfg,
		send:   send,
	}, nil
}

// SendEmailVerification delivers the verify-your-email message carrying the
// verification token link.
func (m *Mailer) SendEmailVerification(ctx context.Context, email, token string) error {
	html, err := m.render("verify_email", map[string]any{
		"link": m.link("/auth/verify-email", token),
	})
	if err != nil {
		return err
	}

	return m.send(ctx, Message{
		To:      email,
		Subject: "Verify your email",
		HTML:    html,
	})
}

// SendPasswordReset delivers the password reset message carrying the reset
// token link.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	html, err := m.render("reset_password", map[string]any{
		"link": m.link("/auth/reset-password", token),
	})
	if err != nil {
		return err
	}

	return m.send(ctx, Message{
		To:      email,
		Subject: "Reset your password",
		HTML:    html,
	})
}

func (m *Mailer) render(name string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, binding); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template "+name)
	}
	return buf.String(), nil
}

func (m *Mailer) link(path, token string) string {
	return strings.TrimSuffix(m.cfg.BaseURL, "/") + path + "?token=" + token
}

// LogMailer writes email to the log instead of delivering it. Development
// and test use only.
type LogMailer struct {
	Logger Logger
}

func (l LogMailer) SendEmailVerification(ctx context.Context, email, token string) error {
	if l.Logger != nil {
		l.Logger.Info("email verification for %s token=%s", email, token)
	}
	return nil
}

func (l LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if l.Logger != nil {
		l.Logger.Info("password reset for %s token=%s", email, token)
	}
	return nil
}

// Package mailer renders HTML notification templates and delivers them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/pkg/config"
)

// Template names.
const (
	TemplateSetPassword   = "set_password.html"
	TemplateResetPassword = "reset_password.html"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownTemplate is returned for a template name that was not embedded.
var ErrUnknownTemplate = errors.New("unknown mail template")

// Message is a rendered email.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     TemplateData
}

// TemplateData is passed to every template.
type TemplateData struct {
	Name      string
	Token     string
	Link      string
	ExpiresIn string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends templated HTML mail through an SMTP relay.
type SMTPMailer struct {
	cfg       config.MailConfig
	templates *template.Template
	send      sendFunc
	logger    *zap.Logger
}

// New parses the embedded templates and returns a mailer.
func New(cfg config.MailConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &SMTPMailer{cfg: cfg, templates: tpl, send: smtp.SendMail, logger: logger}, nil
}

// Link builds a front-end URL carrying the token, e.g. {frontend}/set-password?token=...
func (m *SMTPMailer) Link(path, token string) string {
	return fmt.Sprintf("%s/%s?token=%s", m.cfg.FrontendURL, strings.TrimLeft(path, "/"), token)
}

// Render executes the named template.
func (m *SMTPMailer) Render(name string, data TemplateData) (string, error) {
	if m.templates.Lookup(name) == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Send renders and delivers msg. When mail is disabled the message is only logged.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	body, err := m.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	if !m.cfg.Enabled {
		m.logger.Info("mail disabled, skipping delivery", zap.String("to", msg.To), zap.String("template", msg.Template))
		return nil
	}

	raw := m.compose(msg.To, msg.Subject, body)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	timeout := m.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// net/smtp has no context support; the goroutine finishes on its own after a timeout.
	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{msg.To}, raw)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (m *SMTPMailer) compose(to, subject, body string) []byte {
	from := m.cfg.From
	if m.cfg.SenderName != "" {
		from = (&mail.Address{Name: m.cfg.SenderName, Address: m.cfg.From}).String()
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

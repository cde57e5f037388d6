// Package mail sends the detection notification over SMTP.
package mail

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sawmill-dev/sawmill/internal/config"
)

// SendFunc delivers a fully built message. The default uses net/smtp;
// tests swap in a recorder.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends notification mail per the SMTP settings in the config.
type Mailer struct {
	cfg    config.MailConfig
	send   SendFunc
	logger config.Logger
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithSendFunc replaces the message delivery function.
func WithSendFunc(f SendFunc) Option {
	return func(m *Mailer) { m.send = f }
}

// WithLogger sets the logger.
func WithLogger(l config.Logger) Option {
	return func(m *Mailer) { m.logger = l }
}

// New creates a Mailer for the given SMTP settings.
func New(cfg config.MailConfig, opts ...Option) *Mailer {
	m := &Mailer{
		cfg:    cfg,
		logger: config.NopLogger(),
	}
	m.send = m.sendSMTP
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NotifyDetections sends the detection summary to every configured
// recipient. When SMTP is not configured the notification is skipped
// with a warning rather than failing the scan.
func (m *Mailer) NotifyDetections(hostCount int, body string) error {
	if !m.cfg.Configured() {
		m.logger.Warn("mail not configured, skipping detection notification",
			"hosts", hostCount)
		return nil
	}

	subject := fmt.Sprintf("%s %d host(s) detected", m.cfg.SubjectPrefix, hostCount)
	msg := buildMessage(m.cfg.From, m.cfg.To, subject, body)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" && m.cfg.Pass != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}

	m.logger.Info("detection notification sent",
		"recipients", len(m.cfg.To), "hosts", hostCount)
	return nil
}

// buildMessage assembles an RFC 5322 plain text message.
func buildMessage(from string, to []string, subject, body string) []byte {
	var sb strings.Builder
	sb.Grow(256 + len(body))

	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(sb.String())
}

// sendSMTP delivers via net/smtp, upgrading the connection with
// STARTTLS when TLS is enabled.
func (m *Mailer) sendSMTP(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer client.Close()

	if m.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", addr)
		}
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// Mailer delivers transactional mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a single SMTP relay.
type SMTPMailer struct {
	addr     string
	username string
	password string
	from     string
}

// NewSMTPMailer builds a mailer for addr ("host:port").
func NewSMTPMailer(addr, username, password, from string) (*SMTPMailer, error) {
	addr = strings.TrimSpace(addr)
	from = strings.TrimSpace(from)
	if addr == "" || from == "" {
		return nil, fmt.Errorf("smtp addr and from address are required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid smtp addr: %w", err)
	}
	return &SMTPMailer{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
	}, nil
}

// Send delivers a plain-text message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient required")
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.username != "" {
		host, _, _ := net.SplitHostPort(m.addr)
		auth = smtp.PlainAuth("", m.username, m.password, host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer logs outgoing mail instead of sending it. Used in development
// and tests.
type LogMailer struct {
	// Sent records delivered messages for assertions.
	Sent []SentMail
}

// SentMail is one recorded message.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// Send records the message and logs it.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: body})
	slog.Info("mail_logged", "to", to, "subject", subject)
	return nil
}

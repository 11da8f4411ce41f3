// Package mailer sends email over SMTP. It is the secondary delivery
// channel, used only for recipients the primary channel cannot reach.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/pedalhaus/clubnotify/internal/config"
)

const crlf = "\r\n"

// Mailer sends multipart text+HTML email. Implements notify.EmailSender.
// The zero host means unconfigured; Configured gates every send.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	timeout  time.Duration
}

// New creates a Mailer from configuration.
func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		timeout:  cfg.SMTPTimeout,
	}
}

// Configured reports whether the mailer can send at all.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.from != ""
}

// Send delivers one message. The body is multipart/alternative with a plain
// part and an HTML part; clients pick whichever they render.
func (m *Mailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if !m.Configured() {
		return fmt.Errorf("mailer not configured")
	}

	addr := net.JoinHostPort(m.host, m.port)
	msg := m.compose(to, subject, textBody, htmlBody)

	conn, err := net.DialTimeout("tcp", addr, m.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.username != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}

// compose renders the RFC 5322 message with a multipart/alternative body.
func (m *Mailer) compose(to, subject, textBody, htmlBody string) string {
	boundary := "clubnotify-alt"

	var b strings.Builder
	b.WriteString("From: " + m.from + crlf)
	b.WriteString("To: " + to + crlf)
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + crlf)
	b.WriteString("MIME-Version: 1.0" + crlf)
	b.WriteString(`Content-Type: multipart/alternative; boundary="` + boundary + `"` + crlf)
	b.WriteString(crlf)

	b.WriteString("--" + boundary + crlf)
	b.WriteString("Content-Type: text/plain; charset=utf-8" + crlf + crlf)
	b.WriteString(textBody + crlf + crlf)

	b.WriteString("--" + boundary + crlf)
	b.WriteString("Content-Type: text/html; charset=utf-8" + crlf + crlf)
	b.WriteString(htmlBody + crlf + crlf)

	b.WriteString("--" + boundary + "--" + crlf)
	return b.String()
}

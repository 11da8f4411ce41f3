package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pedalhaus/clubnotify/internal/config"
)

func TestConfigured(t *testing.T) {
	assert.False(t, New(&config.Config{}).Configured())
	assert.False(t, New(&config.Config{SMTPHost: "smtp.example.org"}).Configured())
	assert.False(t, New(&config.Config{SMTPFrom: "club@example.org"}).Configured())
	assert.True(t, New(&config.Config{
		SMTPHost: "smtp.example.org",
		SMTPFrom: "club@example.org",
	}).Configured())
}

func TestSend_UnconfiguredFails(t *testing.T) {
	m := New(&config.Config{SMTPTimeout: time.Second})
	err := m.Send(context.Background(), "u@example.org", "hi", "text", "<p>html</p>")
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	m := New(&config.Config{
		SMTPHost: "smtp.example.org",
		SMTPFrom: "club@example.org",
	})

	msg := m.compose("u@example.org", "Saturday ride", "Meet up", "<p>Meet up</p>")

	assert.Contains(t, msg, "From: club@example.org\r\n")
	assert.Contains(t, msg, "To: u@example.org\r\n")
	assert.Contains(t, msg, "Subject: Saturday ride\r\n")
	assert.Contains(t, msg, `multipart/alternative; boundary="clubnotify-alt"`)
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n\r\nMeet up")
	assert.Contains(t, msg, "Content-Type: text/html; charset=utf-8\r\n\r\n<p>Meet up</p>")
	assert.Contains(t, msg, "--clubnotify-alt--\r\n")
}

func TestCompose_NonASCIISubjectEncoded(t *testing.T) {
	m := New(&config.Config{SMTPHost: "smtp.example.org", SMTPFrom: "club@example.org"})

	msg := m.compose("u@example.org", "Tour für Anfänger", "t", "<p>t</p>")

	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "Subject: Tour für")
}

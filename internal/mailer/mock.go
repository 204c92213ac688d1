package mailer

import (
	"context"
	"log/slog"
	"sync"
)

// LogMailer logs OTP codes instead of sending email. Used in development when
// no SMTP host is configured, and in tests to observe sent codes.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []SentOTP
}

// SentOTP records one SendOTP call.
type SentOTP struct {
	To   string
	Name string
	Code string
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP records and logs the code.
func (m *LogMailer) SendOTP(ctx context.Context, to, name, code string) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentOTP{To: to, Name: name, Code: code})
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "otp email (log only)",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}

// Sent returns a copy of all recorded sends.
func (m *LogMailer) Sent() []SentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentOTP, len(m.sent))
	copy(out, m.sent)
	return out
}

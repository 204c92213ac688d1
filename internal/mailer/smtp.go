package mailer

import (
	"context"
	"fmt"
	"html"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP delivery configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends email over SMTP.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer creates an SMTP mailer. Authentication is enabled only when a
// user is configured, so local relays without auth keep working.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// SendOTP sends the verification code email.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}

	msg.Subject("Your verification code")
	msg.SetBodyString(gomail.TypeTextPlain,
		fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n", name, code),
	)
	msg.AddAlternativeString(gomail.TypeTextHTML, otpHTML(name, code))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	return nil
}

func otpHTML(name, code string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px;margin:0 auto">
  <h2>Verify your email</h2>
  <p>Hi %s,</p>
  <p>Use the code below to verify your account. It expires in 10 minutes.</p>
  <p style="font-size:28px;letter-spacing:6px;font-weight:bold">%s</p>
  <p>If you did not request this, you can ignore this email.</p>
</div>`, html.EscapeString(name), html.EscapeString(code))
}

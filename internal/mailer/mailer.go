package mailer

import (
	"context"
)

// Mailer delivers transactional email.
type Mailer interface {
	// SendOTP sends a verification code to the given address.
	SendOTP(ctx context.Context, to, name, code string) error
}

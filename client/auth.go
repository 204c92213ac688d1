package client

import (
	"context"
	"net/http"
)

// Signup registers a new account. The returned result reports whether an OTP
// verification step is required (it always is for new and unverified accounts).
func (c *Client) Signup(ctx context.Context, name, email, password string) (*SignupResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var result SignupResult
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/signup", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login authenticates with email and password. On success the access token is
// stored for subsequent calls and the refresh cookie lands in the cookie jar.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return nil, err
	}
	c.SetAccessToken(session.AccessToken)
	return &session, nil
}

// SendOTP requests a fresh verification code for the given email.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.doPublic(ctx, http.MethodPost, "/api/auth/send-otp", map[string]string{"email": email}, nil)
}

// VerifyOTP confirms the emailed code. On success the account becomes verified
// and the client is logged in.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*Session, error) {
	body := map[string]string{"email": email, "otp": otp}
	var session Session
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/verify-otp", body, &session); err != nil {
		return nil, err
	}
	c.SetAccessToken(session.AccessToken)
	return &session, nil
}

// Logout expires the refresh cookie server-side and clears the stored token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doPublic(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetAccessToken("")
	return err
}

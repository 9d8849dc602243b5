package api

import (
	"context"
	"strings"

	"expensia/internal/core"
)

// AuthResponse is the payload of a successful sign in.
type AuthResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Token    string   `json:"token"`
	Roles    []string `json:"roles"`
}

// User builds the session user from the sign in payload.
func (a AuthResponse) User() core.User {
	return core.User{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    append([]string(nil), a.Roles...),
	}
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Username string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.post(ctx, "/auth/signin", nil, SignInRequest{Email: strings.TrimSpace(email), Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) error {
	return c.post(ctx, "/auth/signup", nil, req, nil)
}

// VerifyEmail submits the sign up verification code.
func (c *Client) VerifyEmail(ctx context.Context, code string) error {
	return c.get(ctx, "/auth/signup/verify", params("code", code), nil)
}

// ResendVerificationCode asks the backend to mail a fresh sign up code.
// Throttling comes back as an *APIError; see ClassifyThrottle.
func (c *Client) ResendVerificationCode(ctx context.Context, email string) error {
	return c.get(ctx, "/auth/signup/resend", params("email", email), nil)
}

// VerifyEmailForPasswordReset starts the forgot password flow.
func (c *Client) VerifyEmailForPasswordReset(ctx context.Context, email string) error {
	return c.get(ctx, "/auth/forgotPassword/verifyEmail", params("email", email), nil)
}

func (c *Client) VerifyPasswordResetCode(ctx context.Context, code string) error {
	return c.get(ctx, "/auth/forgotPassword/verifyCode", params("code", code), nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, password string) error {
	return c.post(ctx, "/auth/forgotPassword/resetPassword", nil, ResetPasswordRequest{Email: email, Password: password}, nil)
}

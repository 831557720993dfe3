package gateway

import "context"

// Sender performs authenticated gateway requests
type Sender interface {
	Send(ctx context.Context, endpoint string, payload any, token string, out Response) error
}

// TokenSource hands out bearer credentials
type TokenSource interface {
	Token(ctx context.Context) (Credential, error)
	Invalidate(token string)
}

var (
	_ Sender      = (*Client)(nil)
	_ Exchanger   = (*Client)(nil)
	_ TokenSource = (*CredentialStore)(nil)
)

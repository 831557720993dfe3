package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
)

// authorizedSender attaches a bearer credential to gateway requests. A rejected
// credential is invalidated and the request is sent once more with a fresh one.
type authorizedSender struct {
	sender gateway.Sender
	tokens gateway.TokenSource
	logger *slog.Logger
}

// send reports delivered=false only when the request certainly was not processed:
// no credential could be obtained, or every attempt was refused with 401.
func (a *authorizedSender) send(ctx context.Context, endpoint string, payload any, out gateway.Response) (bool, error) {
	cred, err := a.token(ctx)
	if err != nil {
		return false, err
	}

	err = a.sender.Send(ctx, endpoint, payload, cred.Token, out)
	if !isUnauthorized(err) {
		return true, err
	}

	a.logger.WarnContext(ctx, "gateway rejected credential, refreshing", "endpoint", endpoint)
	a.tokens.Invalidate(cred.Token)

	cred, err = a.token(ctx)
	if err != nil {
		return false, err
	}

	err = a.sender.Send(ctx, endpoint, payload, cred.Token, out)
	if isUnauthorized(err) {
		return false, err
	}
	return true, err
}

// token retries a failed exchange once before giving up.
func (a *authorizedSender) token(ctx context.Context) (gateway.Credential, error) {
	cred, err := a.tokens.Token(ctx)
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) && ctx.Err() == nil {
		a.logger.WarnContext(ctx, "credential exchange failed, retrying", "error", err)
		cred, err = a.tokens.Token(ctx)
	}
	return cred, err
}

// abandoned reports whether err comes from the caller's own cancellation or deadline.
// Such a request never reached a verdict, so the entry must stay PENDING.
func abandoned(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isUnauthorized(err error) bool {
	var gwErr *gateway.GatewayError
	return errors.As(err, &gwErr) && gwErr.IsUnauthorized()
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshMargin  = 60 * time.Second
	defaultRefreshTimeout = 30 * time.Second
	refreshKey            = "credential"
)

// Credential is a bearer token with its absolute expiry
type Credential struct {
	ExpiresAt time.Time
	Token     string
}

// Exchanger obtains a fresh grant from the gateway
type Exchanger interface {
	ExchangeCredentials(ctx context.Context) (Grant, error)
}

// CredentialStore caches the gateway bearer token and refreshes it before it expires.
// Concurrent callers that find the token stale share a single exchange.
type CredentialStore struct {
	exchanger      Exchanger
	now            func() time.Time
	logger         *slog.Logger
	group          singleflight.Group
	current        Credential
	margin         time.Duration
	refreshTimeout time.Duration
	mu             sync.RWMutex
}

// CredentialOption configures a CredentialStore
type CredentialOption func(*CredentialStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CredentialOption {
	return func(s *CredentialStore) {
		s.now = now
	}
}

// WithRefreshMargin sets the minimum remaining lifetime a returned credential must have.
func WithRefreshMargin(margin time.Duration) CredentialOption {
	return func(s *CredentialStore) {
		s.margin = margin
	}
}

// WithRefreshTimeout bounds a single exchange independently of any one caller.
func WithRefreshTimeout(timeout time.Duration) CredentialOption {
	return func(s *CredentialStore) {
		s.refreshTimeout = timeout
	}
}

// NewCredentialStore creates a CredentialStore backed by exchanger
func NewCredentialStore(exchanger Exchanger, logger *slog.Logger, opts ...CredentialOption) *CredentialStore {
	s := &CredentialStore{
		exchanger:      exchanger,
		now:            time.Now,
		logger:         logger.With("component", "credential_store"),
		margin:         defaultRefreshMargin,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a credential valid for at least the refresh margin, exchanging
// a new one when needed. Exchange failures are returned as *AuthError.
func (s *CredentialStore) Token(ctx context.Context) (Credential, error) {
	if cred, ok := s.cached(); ok {
		return cred, nil
	}

	// The exchange is shared, so it must not die with the first caller's context.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		if cred, ok := s.cached(); ok {
			return cred, nil
		}
		return s.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return Credential{}, &TransportError{Endpoint: EndpointOAuth, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Invalidate drops the cached credential if it is still token, forcing the next
// Token call to exchange. Used after the gateway rejects a bearer token.
func (s *CredentialStore) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Token == token {
		s.current = Credential{}
		s.logger.Info("credential invalidated")
	}
}

func (s *CredentialStore) cached() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Token == "" {
		return Credential{}, false
	}
	if s.current.ExpiresAt.Sub(s.now()) < s.margin {
		return Credential{}, false
	}
	return s.current, true
}

func (s *CredentialStore) refresh(ctx context.Context) (Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	issuedAt := s.now()
	grant, err := s.exchanger.ExchangeCredentials(ctx)
	if err != nil {
		tokenRefreshCounter.WithLabelValues("error").Inc()
		s.logger.Error("credential exchange failed", "error", err)
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return Credential{}, err
		}
		return Credential{}, &AuthError{Err: err}
	}

	if grant.Lifetime <= s.margin {
		tokenRefreshCounter.WithLabelValues("error").Inc()
		return Credential{}, &AuthError{
			Err: fmt.Errorf("granted lifetime %s does not exceed refresh margin %s", grant.Lifetime, s.margin),
		}
	}

	cred := Credential{Token: grant.Token, ExpiresAt: issuedAt.Add(grant.Lifetime)}

	s.mu.Lock()
	s.current = cred
	s.mu.Unlock()

	tokenRefreshCounter.WithLabelValues("ok").Inc()
	s.logger.Info("credential refreshed", "expires_at", cred.ExpiresAt)
	return cred, nil
}

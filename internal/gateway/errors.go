package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// StillProcessingErrorCode is returned by the query endpoint with HTTP 500 while
// the customer has not yet answered the prompt.
const StillProcessingErrorCode = "500.001.1001"

// TransportError reports that a request did not complete: connection failure,
// timeout or cancellation. The gateway may or may not have acted on it.
type TransportError struct {
	Err      error
	Endpoint string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error on %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GatewayError is a non-2xx answer from the gateway.
type GatewayError struct {
	Endpoint     string
	Body         string
	ErrorCode    string
	ErrorMessage string
	HTTPStatus   int
}

func (e *GatewayError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("gateway returned %d on %s: %s %s", e.HTTPStatus, e.Endpoint, e.ErrorCode, e.ErrorMessage)
	}
	return fmt.Sprintf("gateway returned %d on %s", e.HTTPStatus, e.Endpoint)
}

// IsUnauthorized reports whether the bearer token was rejected.
func (e *GatewayError) IsUnauthorized() bool {
	return e.HTTPStatus == http.StatusUnauthorized
}

// IsClientError reports a 4xx rejection: the request was refused and will not be processed.
func (e *GatewayError) IsClientError() bool {
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// IsStillProcessing reports the query endpoint's "transaction is being processed" answer.
func (e *GatewayError) IsStillProcessing() bool {
	return e.ErrorCode == StillProcessingErrorCode
}

// AuthError reports that a credential could not be obtained.
type AuthError struct {
	Err        error
	HTTPStatus int
}

func (e *AuthError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("gateway credential exchange failed (status %d): %v", e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("gateway credential exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a 2xx response that could not be parsed or lacked required fields.
type MalformedResponseError struct {
	Err      error
	Endpoint string
	Body     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed gateway response on %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a caller may safely retry the request that produced err.
// Transport failures, 5xx and 429 answers are retryable. Everything else is final.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.HTTPStatus >= 500 || gwErr.HTTPStatus == http.StatusTooManyRequests
	}

	return false
}

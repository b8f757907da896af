package lightning

import "errors"

// Gateway errors
var (
	ErrAuthenticationFailed   = errors.New("lightning: authentication failed")
	ErrAuthBackoff            = errors.New("lightning: login suppressed after recent failure")
	ErrAuthRetryExhausted     = errors.New("lightning: unauthorized after re-authentication")
	ErrGatewayUnavailable     = errors.New("lightning: gateway unavailable")
	ErrGatewayRequestFailed   = errors.New("lightning: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("lightning: invalid gateway response")

	// errNoResponse marks a transport failure on the request itself, as
	// opposed to the login that precedes it.
	errNoResponse = errors.New("no response")
)

// Resolver errors
var (
	ErrMissingAddress      = errors.New("lightning: missing lightning address")
	ErrMissingAmount       = errors.New("lightning: missing amount")
	ErrResolutionFailed    = errors.New("lightning: address resolution failed")
	ErrResolverUnavailable = errors.New("lightning: address resolver unavailable")
)

// Config validation errors
var (
	ErrMissingURL         = errors.New("lightning: missing gateway URL")
	ErrMissingCredentials = errors.New("lightning: missing gateway credentials")
)

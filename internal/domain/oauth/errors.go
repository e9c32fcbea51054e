package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated signals that no token exists yet; the authorization-code flow must run first.
	ErrNotAuthenticated = errors.New("oauth: not authenticated")
	// ErrOAuthExchangeFailed indicates the token endpoint rejected a grant.
	ErrOAuthExchangeFailed = errors.New("oauth: exchange failed")
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("oauth: invalid request")
)

// ExchangeError carries the upstream status and body of a rejected grant.
type ExchangeError struct {
	Grant  string
	Status int
	Body   []byte
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth: %s grant failed: status=%d", e.Grant, e.Status)
}

func (e *ExchangeError) Unwrap() error {
	return ErrOAuthExchangeFailed
}

package domain

import "time"

// FreshnessMargin is subtracted from a token's expiry before it is considered stale.
const FreshnessMargin = 60 * time.Second

// defaultExpiresIn applies when the token endpoint omitted expires_in.
const defaultExpiresIn int64 = 3600

// Credentials identifies the application against the AliExpress open platform.
type Credentials struct {
	AppKey      string
	AppSecret   string
	RedirectURI string
}

// TokenRecord is the single active OAuth token pair held by the gateway.
type TokenRecord struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type,omitempty"`
	UpdatedAt        int64  `json:"updated_at"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	UserNick         string `json:"user_nick,omitempty"`
	Account          string `json:"account,omitempty"`
}

// ExpiresAt returns updated_at + expires_in.
func (r TokenRecord) ExpiresAt() time.Time {
	expiresIn := r.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	return time.UnixMilli(r.UpdatedAt).Add(time.Duration(expiresIn) * time.Second)
}

// FreshAt reports whether the record is still usable at now, honouring FreshnessMargin.
func (r TokenRecord) FreshAt(now time.Time) bool {
	return now.Before(r.ExpiresAt().Add(-FreshnessMargin))
}

package oauth

// TokenResponse models the payload returned by the AliExpress token endpoint.
type TokenResponse struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64
	RefreshExpiresIn int64
	TokenType        string
	UserID           string
	UserNick         string
	Account          string
	Raw              map[string]any
}

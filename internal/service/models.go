package service

import "time"

// SearchInput carries keyword search parameters. Zero values fall back to defaults.
type SearchInput struct {
	Keyword     string
	CategoryID  string
	Locale      string
	CountryCode string
	Currency    string
	SortBy      string
	PageSize    int
	PageIndex   int
}

// ProductDetailsInput identifies a product and the market it is priced for.
type ProductDetailsInput struct {
	ProductID     string
	ShipToCountry string
	Currency      string
	Language      string
}

// PageInput pages through a product feed.
type PageInput struct {
	FeedName string
	Page     int
	PageSize int
}

// TokenStatus is the public view of the stored token.
type TokenStatus struct {
	Authenticated   bool       `json:"authenticated"`
	Fresh           bool       `json:"fresh"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	TokenType       string     `json:"token_type,omitempty"`
	UserNick        string     `json:"user_nick,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
}

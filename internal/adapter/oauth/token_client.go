package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	domainoauth "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain/oauth"
)

// DefaultBaseURL is the AliExpress Singapore gateway.
const DefaultBaseURL = "https://api-sg.aliexpress.com"

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// TokenClient encapsulates outbound calls to the AliExpress OAuth endpoints.
type TokenClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*domainoauth.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domainoauth.TokenResponse, error)
}

// HTTPTokenClient is the default HTTP implementation.
type HTTPTokenClient struct {
	httpClient *http.Client
	baseURL    string
	creds      domain.Credentials
}

var _ TokenClient = (*HTTPTokenClient)(nil)

// NewHTTPTokenClient constructs the default TokenClient.
func NewHTTPTokenClient(client *http.Client, baseURL string, creds domain.Credentials) *HTTPTokenClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPTokenClient{httpClient: client, baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

// AuthorizeURL builds the browser URL that starts the authorization-code flow.
func (c *HTTPTokenClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.creds.AppKey)
	q.Set("redirect_uri", c.creds.RedirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return c.baseURL + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode performs the authorization-code grant.
func (c *HTTPTokenClient) ExchangeCode(ctx context.Context, code string) (*domainoauth.TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", domainoauth.ErrInvalidRequest)
	}
	data := url.Values{}
	data.Set("grant_type", grantAuthorizationCode)
	data.Set("client_id", c.creds.AppKey)
	data.Set("client_secret", c.creds.AppSecret)
	data.Set("code", code)
	data.Set("redirect_uri", c.creds.RedirectURI)
	return c.exchange(ctx, grantAuthorizationCode, data)
}

// Refresh performs the refresh-token grant.
func (c *HTTPTokenClient) Refresh(ctx context.Context, refreshToken string) (*domainoauth.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", domainoauth.ErrInvalidRequest)
	}
	data := url.Values{}
	data.Set("grant_type", grantRefreshToken)
	data.Set("client_id", c.creds.AppKey)
	data.Set("client_secret", c.creds.AppSecret)
	data.Set("refresh_token", refreshToken)
	return c.exchange(ctx, grantRefreshToken, data)
}

func (c *HTTPTokenClient) exchange(ctx context.Context, grant string, data url.Values) (*domainoauth.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &domainoauth.ExchangeError{Grant: grant, Status: resp.StatusCode, Body: body}
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &domainoauth.ExchangeError{Grant: grant, Status: resp.StatusCode, Body: body}
	}

	token := &domainoauth.TokenResponse{
		AccessToken:      stringValue(raw["access_token"]),
		RefreshToken:     stringValue(raw["refresh_token"]),
		ExpiresIn:        int64Value(raw["expires_in"]),
		RefreshExpiresIn: int64Value(raw["refresh_expires_in"]),
		TokenType:        stringValue(raw["token_type"]),
		UserID:           stringValue(raw["user_id"]),
		UserNick:         stringValue(raw["user_nick"]),
		Account:          stringValue(raw["account"]),
		Raw:              raw,
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, &domainoauth.ExchangeError{Grant: grant, Status: resp.StatusCode, Body: body}
	}
	return token, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

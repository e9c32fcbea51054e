package oauth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oauthadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	domainoauth "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain/oauth"
)

var testCreds = domain.Credentials{AppKey: "517616", AppSecret: "secret", RedirectURI: "https://shop.example/api/aliexpress/oauth-callback"}

func TestExchangeCode(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT","refresh_token":"RT","expires_in":"86400","refresh_expires_in":172800,"user_id":2212345678,"user_nick":"br1234","account":"seller@example.com"}`))
	}))
	defer srv.Close()

	client := oauthadapter.NewHTTPTokenClient(srv.Client(), srv.URL, testCreds)
	token, err := client.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "517616", form.Get("client_id"))
	require.Equal(t, "secret", form.Get("client_secret"))
	require.Equal(t, "auth-code", form.Get("code"))
	require.Equal(t, testCreds.RedirectURI, form.Get("redirect_uri"))

	require.Equal(t, "AT", token.AccessToken)
	require.Equal(t, "RT", token.RefreshToken)
	require.Equal(t, int64(86400), token.ExpiresIn)
	require.Equal(t, int64(172800), token.RefreshExpiresIn)
	require.Equal(t, "2212345678", token.UserID)
	require.Equal(t, "br1234", token.UserNick)
}

func TestRefreshSendsRefreshGrant(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"access_token":"AT2","expires_in":3600}`))
	}))
	defer srv.Close()

	client := oauthadapter.NewHTTPTokenClient(srv.Client(), srv.URL+"/", testCreds)
	token, err := client.Refresh(context.Background(), "RT")
	require.NoError(t, err)
	require.Equal(t, "refresh_token", form.Get("grant_type"))
	require.Equal(t, "RT", form.Get("refresh_token"))
	require.Empty(t, form.Get("redirect_uri"))
	require.Equal(t, "AT2", token.AccessToken)
	require.Empty(t, token.RefreshToken)
}

func TestExchangeFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non 2xx", status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`},
		{name: "missing access token", status: http.StatusOK, body: `{"code":"IncompleteSignature","message":"bad"}`},
		{name: "not json", status: http.StatusOK, body: `<html>oops</html>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := oauthadapter.NewHTTPTokenClient(srv.Client(), srv.URL, testCreds)
			_, err := client.ExchangeCode(context.Background(), "code")
			require.ErrorIs(t, err, domainoauth.ErrOAuthExchangeFailed)

			var exchangeErr *domainoauth.ExchangeError
			require.True(t, errors.As(err, &exchangeErr))
			require.Equal(t, tc.status, exchangeErr.Status)
			require.Equal(t, tc.body, string(exchangeErr.Body))
			require.Equal(t, "authorization_code", exchangeErr.Grant)
		})
	}
}

func TestExchangeRejectsBlankInput(t *testing.T) {
	client := oauthadapter.NewHTTPTokenClient(nil, "", testCreds)
	_, err := client.ExchangeCode(context.Background(), " ")
	require.ErrorIs(t, err, domainoauth.ErrInvalidRequest)
	_, err = client.Refresh(context.Background(), "")
	require.ErrorIs(t, err, domainoauth.ErrInvalidRequest)
}

func TestAuthorizeURL(t *testing.T) {
	client := oauthadapter.NewHTTPTokenClient(nil, "", testCreds)
	raw := client.AuthorizeURL("xyz")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "api-sg.aliexpress.com", parsed.Host)
	require.Equal(t, "/oauth/authorize", parsed.Path)
	require.Equal(t, "code", parsed.Query().Get("response_type"))
	require.Equal(t, "517616", parsed.Query().Get("client_id"))
	require.Equal(t, testCreds.RedirectURI, parsed.Query().Get("redirect_uri"))
	require.Equal(t, "xyz", parsed.Query().Get("state"))
}

package aliexpress_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/aliexpress"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/signer"
)

type fixedClock time.Time

func (c fixedClock) Now(context.Context) time.Time { return time.Time(c) }

var stamp = time.Date(2025, 8, 4, 18, 45, 34, 0, time.UTC)

func newTestClient(t *testing.T, baseURL string, opts aliexpress.Options) (*aliexpress.Client, *signer.Signer) {
	t.Helper()
	s, err := signer.New(signer.ModeHMAC, "secret")
	require.NoError(t, err)
	opts.BaseURL = baseURL
	opts.AppKey = "517616"
	return aliexpress.NewClient(nil, s, fixedClock(stamp), opts, zap.NewNop()), s
}

func TestPrepareAddsSystemParamsAndSigns(t *testing.T) {
	client, s := newTestClient(t, "http://unused", aliexpress.Options{TrackingID: "sophia"})

	params, err := client.Prepare(context.Background(), aliexpress.Request{
		Method:  "aliexpress.ds.text.search",
		Params:  signer.Params{"keyWord": " phone ", "app_key": "spoofed", "sign": "forged"},
		Session: "AT",
	})
	require.NoError(t, err)

	require.Equal(t, "517616", params["app_key"])
	require.Equal(t, "aliexpress.ds.text.search", params["method"])
	require.Equal(t, "1754333134", params["timestamp"])
	require.Equal(t, "sha256", params["sign_method"])
	require.Equal(t, "json", params["format"])
	require.Equal(t, "2.0", params["v"])
	require.Equal(t, "AT", params["session"])
	require.Equal(t, "sophia", params["tracking_id"])
	require.Equal(t, "phone", params["keyWord"])
	require.Equal(t, s.Sign(params), params[signer.SignKey])
	require.NotEqual(t, "forged", params[signer.SignKey])
}

func TestPrepareRequiresMethod(t *testing.T) {
	client, _ := newTestClient(t, "http://unused", aliexpress.Options{})
	_, err := client.Prepare(context.Background(), aliexpress.Request{})
	require.Error(t, err)
}

func TestCallGETPassesBodyThrough(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"aliexpress_ds_text_search_response":{"data":{"totalCount":1}}}`))
	}))
	defer srv.Close()

	client, s := newTestClient(t, srv.URL+"/sync", aliexpress.Options{})
	body, err := client.Call(context.Background(), aliexpress.Request{
		Method: "aliexpress.ds.text.search",
		Params: signer.Params{"keyWord": "phone case"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"aliexpress_ds_text_search_response":{"data":{"totalCount":1}}}`, string(body))

	received := signer.Params{}
	for k := range query {
		received[k] = query.Get(k)
	}
	require.Equal(t, "phone case", received["keyWord"])
	require.Equal(t, s.Sign(received), received[signer.SignKey])
}

func TestCallPOSTSendsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, aliexpress.Options{UsePOST: true, Timestamp: aliexpress.TimestampDateTime})
	_, err := client.Call(context.Background(), aliexpress.Request{Method: "aliexpress.ds.logistics.get", Params: signer.Params{"order_id": "8100"}})
	require.NoError(t, err)
	require.Equal(t, "8100", form.Get("order_id"))
	require.Equal(t, "2025-08-05 02:45:34", form.Get("timestamp"))
	require.NotEmpty(t, form.Get("sign"))
}

func TestCallClassifiesUpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{name: "http error", status: http.StatusServiceUnavailable, body: `upstream down`},
		{name: "error payload", status: http.StatusOK, body: `{"error_response":{"code":"IncompleteSignature","msg":"The request signature does not conform to platform standards","request_id":"2101"}}`, code: "IncompleteSignature", message: "The request signature does not conform to platform standards"},
		{name: "invalid json", status: http.StatusOK, body: `<html></html>`, message: "response is not valid JSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, _ := newTestClient(t, srv.URL, aliexpress.Options{})
			_, err := client.Call(context.Background(), aliexpress.Request{Method: "aliexpress.ds.product.get"})
			require.ErrorIs(t, err, domain.ErrUpstreamAPI)

			var apiErr *domain.UpstreamAPIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.code, apiErr.Code)
			require.Equal(t, tc.message, apiErr.Message)
			require.Equal(t, tc.body, string(apiErr.Body))
			require.Equal(t, "aliexpress.ds.product.get", apiErr.Method)
		})
	}
}

func TestTimestampFormats(t *testing.T) {
	require.Equal(t, "1754333134", aliexpress.TimestampEpochSeconds.Format(stamp))
	require.Equal(t, "1754333134000", aliexpress.TimestampEpochMillis.Format(stamp))
	require.Equal(t, "2025-08-05 02:45:34", aliexpress.TimestampDateTime.Format(stamp))

	f, err := aliexpress.ParseTimestampFormat("DateTime")
	require.NoError(t, err)
	require.Equal(t, aliexpress.TimestampDateTime, f)
	_, err = aliexpress.ParseTimestampFormat("iso8601")
	require.Error(t, err)
}

func TestServerClockUsesDateHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Date", "Mon, 04 Aug 2025 18:45:34 GMT")
	}))
	defer srv.Close()

	clock := aliexpress.NewServerClock(srv.Client(), srv.URL, zap.NewNop())
	got := clock.Now(context.Background())
	require.True(t, stamp.Equal(got.Truncate(time.Second)))
	require.Less(t, got.Sub(stamp), time.Second)
}

func TestServerClockFallsBackToLocalTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	clock := aliexpress.NewServerClock(nil, addr, zap.NewNop())
	require.WithinDuration(t, time.Now(), clock.Now(context.Background()), 5*time.Second)
}

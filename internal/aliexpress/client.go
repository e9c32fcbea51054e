// Package aliexpress issues signed calls against the AliExpress open platform.
package aliexpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/signer"
)

const (
	// DefaultBaseURL is the business interface endpoint.
	DefaultBaseURL = "https://api-sg.aliexpress.com/sync"
	DefaultVersion = "2.0"

	maxResponseBytes = 8 << 20
)

// Options are fixed for the lifetime of a Client.
type Options struct {
	BaseURL    string
	AppKey     string
	Version    string
	TrackingID string
	// UsePOST sends parameters as a form body instead of the query string.
	UsePOST   bool
	Timestamp TimestampFormat
}

// Request describes one platform method invocation.
type Request struct {
	Method  string
	Params  signer.Params
	Session string
}

// Client builds, signs and sends platform calls. It never retries.
type Client struct {
	httpClient *http.Client
	signer     *signer.Signer
	clock      Clock
	opts       Options
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient wires a Client. A nil clock means the host clock.
func NewClient(httpClient *http.Client, s *signer.Signer, clock Clock, opts Options, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if clock == nil {
		clock = LocalClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Timestamp == 0 {
		opts.Timestamp = TimestampEpochSeconds
	}
	return &Client{
		httpClient: httpClient,
		signer:     s,
		clock:      clock,
		opts:       opts,
		logger:     logger,
		tracer:     otel.Tracer("github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/aliexpress"),
	}
}

// Prepare assembles the system parameters around req.Params and signs the result.
// System parameters take precedence over caller-supplied values with the same name.
func (c *Client) Prepare(ctx context.Context, req Request) (signer.Params, error) {
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return nil, errors.New("aliexpress: method is required")
	}

	params := signer.Params{}
	for k, v := range req.Params {
		params.Set(k, v)
	}
	delete(params, signer.SignKey)

	if c.opts.TrackingID != "" {
		if _, ok := params["tracking_id"]; !ok {
			params.Set("tracking_id", c.opts.TrackingID)
		}
	}
	params.Set("app_key", c.opts.AppKey)
	params.Set("method", method)
	params.Set("timestamp", c.opts.Timestamp.Format(c.clock.Now(ctx)))
	params.Set("sign_method", c.signer.Mode().SignMethod())
	params.Set("format", "json")
	params.Set("v", c.opts.Version)
	if req.Session != "" {
		params.Set("session", req.Session)
	}

	c.signer.SignInto(params)
	return params, nil
}

// Call sends req and returns the upstream JSON body verbatim on success.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "aliexpress.Call", trace.WithAttributes(
		attribute.String("aliexpress.method", req.Method),
	))
	defer span.End()

	params, err := c.Prepare(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	httpReq, err := c.newHTTPRequest(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build api request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("api request %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read api response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("aliexpress call",
		zap.String("method", req.Method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if err := classify(req.Method, resp.StatusCode, body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream error")
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) newHTTPRequest(ctx context.Context, params signer.Params) (*http.Request, error) {
	encoded := params.Values().Encode()
	if c.opts.UsePOST {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	sep := "?"
	if strings.Contains(c.opts.BaseURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+sep+encoded, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func classify(method string, status int, body []byte) error {
	if status < 200 || status >= 300 {
		return &domain.UpstreamAPIError{Method: method, Status: status, Body: body}
	}
	if !gjson.ValidBytes(body) {
		return &domain.UpstreamAPIError{Method: method, Status: status, Message: "response is not valid JSON", Body: body}
	}
	if errResp := gjson.GetBytes(body, "error_response"); errResp.Exists() {
		return &domain.UpstreamAPIError{
			Method:  method,
			Status:  status,
			Code:    errResp.Get("code").String(),
			Message: errResp.Get("msg").String(),
			Body:    body,
		}
	}
	return nil
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	domainoauth "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/service"
)

const (
	defaultSearchKeyword = "electronics"
	defaultCategoryID    = "3"
	maxOrderBodyBytes    = 1 << 20
)

// Gateway is the service surface the handlers expose.
type Gateway interface {
	AuthorizeURL() string
	CompleteAuthorization(ctx context.Context, code string) (domain.TokenRecord, error)
	TokenStatus(ctx context.Context) (service.TokenStatus, error)
	SearchProducts(ctx context.Context, in service.SearchInput) (json.RawMessage, error)
	ProductsByCategory(ctx context.Context, categoryID string) (json.RawMessage, error)
	ProductDetails(ctx context.Context, in service.ProductDetailsInput) (json.RawMessage, error)
	Categories(ctx context.Context, categoryID string) (json.RawMessage, error)
	HotProducts(ctx context.Context, in service.PageInput) (json.RawMessage, error)
	CreateOrder(ctx context.Context, fields map[string]any) (json.RawMessage, error)
	Tracking(ctx context.Context, orderID string) (json.RawMessage, error)
	Ping(ctx context.Context) (json.RawMessage, error)
}

// PublicInfo is the non-secret configuration reported by /config and /api/health.
type PublicInfo struct {
	AppKey      string
	RedirectURI string
	APIBaseURL  string
	OAuthURL    string
	SignMode    string
	Timestamp   string
	TrackingID  bool
	HasSecret   bool
}

// GatewayHandler serves the dropshipping API.
type GatewayHandler struct {
	Gateway Gateway
	Info    PublicInfo
}

// NewGatewayHandler creates the handler set.
func NewGatewayHandler(gateway Gateway, info PublicInfo) *GatewayHandler {
	return &GatewayHandler{Gateway: gateway, Info: info}
}

// Health reports liveness and which credentials are configured.
func (h *GatewayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"message":                "AliExpress dropshipping API is running",
		"app_key_configured":     h.Info.AppKey != "",
		"app_secret_configured":  h.Info.HasSecret,
		"tracking_id_configured": h.Info.TrackingID,
		"api_base_url":           h.Info.APIBaseURL,
	})
}

// Authorize returns the seller consent URL.
func (h *GatewayHandler) Authorize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.Gateway.AuthorizeURL()})
}

func (h *GatewayHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app_key":          h.Info.AppKey,
		"redirect_uri":     h.Info.RedirectURI,
		"base_url":         h.Info.APIBaseURL,
		"oauth_base_url":   h.Info.OAuthURL,
		"sign_mode":        h.Info.SignMode,
		"timestamp_format": h.Info.Timestamp,
	})
}

// OAuthCallback completes the authorization-code grant. Token values are never echoed.
func (h *GatewayHandler) OAuthCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "authorization code not found"})
		return
	}
	record, err := h.Gateway.CompleteAuthorization(c.Request.Context(), code)
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "authorization complete; tokens saved",
		"user_nick":  record.UserNick,
		"expires_in": record.ExpiresIn,
	})
}

func (h *GatewayHandler) TokenStatus(c *gin.Context) {
	status, err := h.Gateway.TokenStatus(c.Request.Context())
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SearchProducts handles keyword search. q defaults to "electronics".
func (h *GatewayHandler) SearchProducts(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("q"))
	if keyword == "" {
		keyword = defaultSearchKeyword
	}
	pageSize, ok := queryInt(c, "pageSize")
	if !ok {
		return
	}
	pageIndex, ok := queryInt(c, "page")
	if !ok {
		return
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.SearchProducts(ctx, service.SearchInput{
			Keyword:     keyword,
			CategoryID:  c.Query("categoryId"),
			Locale:      c.Query("locale"),
			CountryCode: c.Query("country"),
			Currency:    c.Query("currency"),
			SortBy:      c.Query("sort"),
			PageSize:    pageSize,
			PageIndex:   pageIndex,
		})
	})
}

// ProductsByCategory lists a category's products; categoryId defaults to "3".
func (h *GatewayHandler) ProductsByCategory(c *gin.Context) {
	categoryID := strings.TrimSpace(c.Query("categoryId"))
	if categoryID == "" {
		categoryID = defaultCategoryID
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.ProductsByCategory(ctx, categoryID)
	})
}

func (h *GatewayHandler) ProductDetails(c *gin.Context) {
	productID := strings.TrimSpace(c.Query("product_id"))
	if productID == "" {
		productID = strings.TrimSpace(c.Query("id"))
	}
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "product_id is required"})
		return
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.ProductDetails(ctx, service.ProductDetailsInput{
			ProductID:     productID,
			ShipToCountry: c.Query("country"),
			Currency:      c.Query("currency"),
			Language:      c.Query("language"),
		})
	})
}

func (h *GatewayHandler) Categories(c *gin.Context) {
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.Categories(ctx, c.Query("categoryId"))
	})
}

func (h *GatewayHandler) HotProducts(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize")
	if !ok {
		return
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.HotProducts(ctx, service.PageInput{FeedName: c.Query("feed"), Page: page, PageSize: pageSize})
	})
}

// CreateOrder forwards a JSON object body as order fields.
func (h *GatewayHandler) CreateOrder(c *gin.Context) {
	var fields map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxOrderBodyBytes))
	dec.UseNumber()
	err := dec.Decode(&fields)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "invalid_request", "error_description": "order body exceeds 1 MiB"})
		return
	}
	if err != nil || fields == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "body must be a JSON object"})
		return
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.CreateOrder(ctx, fields)
	})
}

func (h *GatewayHandler) Tracking(c *gin.Context) {
	orderID := strings.TrimSpace(c.Query("id"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "order id is required"})
		return
	}
	h.respondRaw(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.Gateway.Tracking(ctx, orderID)
	})
}

// Test performs a signed connectivity check.
func (h *GatewayHandler) Test(c *gin.Context) {
	h.respondRaw(c, h.Gateway.Ping)
}

func (h *GatewayHandler) respondRaw(c *gin.Context, call func(ctx context.Context) (json.RawMessage, error)) {
	body, err := call(c.Request.Context())
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *GatewayHandler) respondGatewayError(c *gin.Context, err error) {
	logger := zap.L()
	var exchangeErr *domainoauth.ExchangeError
	var apiErr *domain.UpstreamAPIError
	switch {
	case errors.Is(err, domainoauth.ErrInvalidRequest):
		logger.Warn("gateway invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	case errors.Is(err, domainoauth.ErrNotAuthenticated):
		logger.Warn("gateway not authenticated", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "not_authenticated",
			"error_description": "No AliExpress token is stored; complete the authorization flow first.",
			"authorize_url":     h.Gateway.AuthorizeURL(),
		})
	case errors.As(err, &exchangeErr):
		logger.Warn("oauth exchange failed", zap.String("grant", exchangeErr.Grant), zap.Int("status", exchangeErr.Status))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           "oauth_exchange_failed",
			"upstream_status": exchangeErr.Status,
			"upstream_body":   string(exchangeErr.Body),
		})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		logger.Warn("upstream api error", zap.String("method", apiErr.Method), zap.Int("status", apiErr.Status), zap.String("code", apiErr.Code))
		if gjson.ValidBytes(apiErr.Body) {
			c.Data(status, "application/json; charset=utf-8", apiErr.Body)
			return
		}
		c.Data(status, "text/plain; charset=utf-8", apiErr.Body)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("gateway timeout", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "upstream_timeout", "error_description": "Upstream did not respond in time."})
	default:
		logger.Error("gateway failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": key + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

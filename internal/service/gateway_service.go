package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	oauthadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/aliexpress"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	domainoauth "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/signer"
)

// Platform methods forwarded by the gateway.
const (
	MethodTextSearch   = "aliexpress.ds.text.search"
	MethodProductGet   = "aliexpress.ds.product.get"
	MethodCategoryGet  = "aliexpress.ds.category.get"
	MethodFeedItemIDs  = "aliexpress.ds.feed.itemids.get"
	MethodOrderCreate  = "aliexpress.ds.order.create"
	MethodLogisticsGet = "aliexpress.ds.logistics.get"
)

const (
	defaultLocale   = "en_US"
	defaultCountry  = "US"
	defaultCurrency = "USD"
	defaultSortBy   = "min_price,asc"
	defaultFeedName = "DS_HotProducts"
	defaultPageSize = 20
	maxPageSize     = 50
)

// TokenStore is the subset of the token store the gateway depends on.
type TokenStore interface {
	Save(ctx context.Context, resp *domainoauth.TokenResponse) (domain.TokenRecord, error)
	Status(ctx context.Context) (*domain.TokenRecord, bool, error)
	EnsureFresh(ctx context.Context) (domain.TokenRecord, error)
}

// APIClient sends signed platform calls.
type APIClient interface {
	Call(ctx context.Context, req aliexpress.Request) (json.RawMessage, error)
}

// GatewayService runs the token → params → sign → call pipeline for each forwarded operation.
type GatewayService struct {
	tokens TokenStore
	api    APIClient
	oauth  oauthadapter.TokenClient
	logger *zap.Logger
	tracer trace.Tracer
}

// NewGatewayService wires dependencies.
func NewGatewayService(tokens TokenStore, api APIClient, oauth oauthadapter.TokenClient, logger *zap.Logger) *GatewayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayService{
		tokens: tokens,
		api:    api,
		oauth:  oauth,
		logger: logger,
		tracer: otel.Tracer("github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/service"),
	}
}

// AuthorizeURL returns the URL the seller opens to grant access.
func (s *GatewayService) AuthorizeURL() string {
	return s.oauth.AuthorizeURL("")
}

// CompleteAuthorization exchanges the callback code and stores the resulting token.
func (s *GatewayService) CompleteAuthorization(ctx context.Context, code string) (domain.TokenRecord, error) {
	ctx, span := s.startSpan(ctx, "GatewayService.CompleteAuthorization")
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.TokenRecord{}, fmt.Errorf("%w: code is required", domainoauth.ErrInvalidRequest)
	}
	resp, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return domain.TokenRecord{}, err
	}
	record, err := s.tokens.Save(ctx, resp)
	if err != nil {
		span.RecordError(err)
		return domain.TokenRecord{}, err
	}
	s.audit("oauth.authorized", "user_nick", record.UserNick, "expires_in", record.ExpiresIn)
	return record, nil
}

// TokenStatus reports the stored token's lifecycle without exposing token values.
// Freshness is judged by the token store's clock.
func (s *GatewayService) TokenStatus(ctx context.Context) (TokenStatus, error) {
	record, fresh, err := s.tokens.Status(ctx)
	if err != nil {
		return TokenStatus{}, err
	}
	if record == nil {
		return TokenStatus{Authenticated: false}, nil
	}
	expiresAt := record.ExpiresAt().UTC()
	updatedAt := time.UnixMilli(record.UpdatedAt).UTC()
	return TokenStatus{
		Authenticated:   true,
		Fresh:           fresh,
		ExpiresAt:       &expiresAt,
		UpdatedAt:       &updatedAt,
		TokenType:       record.TokenType,
		UserNick:        record.UserNick,
		HasRefreshToken: record.RefreshToken != "",
	}, nil
}

// SearchProducts runs a keyword search.
func (s *GatewayService) SearchProducts(ctx context.Context, in SearchInput) (json.RawMessage, error) {
	params := signer.Params{}
	params.Set("keyWord", in.Keyword)
	params.Set("local", coalesce(in.Locale, defaultLocale))
	params.Set("countryCode", coalesce(in.CountryCode, defaultCountry))
	params.Set("currency", coalesce(in.Currency, defaultCurrency))
	params.SetInt("pageSize", int64(clampPageSize(in.PageSize)))
	params.SetInt("pageIndex", int64(max(in.PageIndex, 1)))
	params.Set("sortBy", coalesce(in.SortBy, defaultSortBy))
	if in.CategoryID != "" {
		params.Set("categoryId", in.CategoryID)
	}
	return s.call(ctx, MethodTextSearch, params)
}

// ProductsByCategory lists products of one category.
func (s *GatewayService) ProductsByCategory(ctx context.Context, categoryID string) (json.RawMessage, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, fmt.Errorf("%w: categoryId is required", domainoauth.ErrInvalidRequest)
	}
	return s.SearchProducts(ctx, SearchInput{CategoryID: categoryID})
}

// ProductDetails fetches a single product.
func (s *GatewayService) ProductDetails(ctx context.Context, in ProductDetailsInput) (json.RawMessage, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id is required", domainoauth.ErrInvalidRequest)
	}
	params := signer.Params{}
	params.Set("product_id", productID)
	params.Set("ship_to_country", coalesce(in.ShipToCountry, defaultCountry))
	params.Set("target_currency", coalesce(in.Currency, defaultCurrency))
	params.Set("target_language", coalesce(in.Language, "en"))
	return s.call(ctx, MethodProductGet, params)
}

// Categories lists the category tree, or the children of categoryID when set.
func (s *GatewayService) Categories(ctx context.Context, categoryID string) (json.RawMessage, error) {
	params := signer.Params{}
	if id := strings.TrimSpace(categoryID); id != "" {
		params.Set("categoryId", id)
	}
	return s.call(ctx, MethodCategoryGet, params)
}

// HotProducts pages through the curated dropshipping feed.
func (s *GatewayService) HotProducts(ctx context.Context, in PageInput) (json.RawMessage, error) {
	params := signer.Params{}
	params.Set("feed_name", coalesce(in.FeedName, defaultFeedName))
	params.SetInt("page_no", int64(max(in.Page, 1)))
	params.SetInt("page_size", int64(clampPageSize(in.PageSize)))
	return s.call(ctx, MethodFeedItemIDs, params)
}

// CreateOrder forwards the caller's order fields. Nested values are sent as JSON strings.
func (s *GatewayService) CreateOrder(ctx context.Context, fields map[string]any) (json.RawMessage, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: order body is empty", domainoauth.ErrInvalidRequest)
	}
	params := signer.Params{}
	for key, value := range fields {
		str, err := stringify(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", domainoauth.ErrInvalidRequest, key, err)
		}
		params.Set(key, str)
	}
	return s.call(ctx, MethodOrderCreate, params)
}

// Tracking returns logistics information for an order.
func (s *GatewayService) Tracking(ctx context.Context, orderID string) (json.RawMessage, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domainoauth.ErrInvalidRequest)
	}
	params := signer.Params{}
	params.Set("order_id", orderID)
	return s.call(ctx, MethodLogisticsGet, params)
}

// Ping performs a cheap signed call to verify credentials, token and signature end to end.
func (s *GatewayService) Ping(ctx context.Context) (json.RawMessage, error) {
	return s.Categories(ctx, "")
}

func (s *GatewayService) call(ctx context.Context, method string, params signer.Params) (json.RawMessage, error) {
	ctx, span := s.startSpan(ctx, "GatewayService."+method)
	defer span.End()

	token, err := s.tokens.EnsureFresh(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	body, err := s.api.Call(ctx, aliexpress.Request{Method: method, Params: params, Session: token.AccessToken})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("aliexpress call failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	return body, nil
}

func (s *GatewayService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *GatewayService) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+1)
	fields = append(fields, zap.String("event", event))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.logger.Info("audit", fields...)
}

func stringify(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	return min(size, maxPageSize)
}

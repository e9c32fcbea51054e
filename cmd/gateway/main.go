package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/cache"
	fileadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/file"
	oauthadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/aliexpress"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/config"
	httptransport "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/http"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/http/handler"
	apimiddleware "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/middleware"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/repository"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/server"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/service"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/signer"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/telemetry"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/tokenstore"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newHTTPClient,
			newSigner,
			newClock,
			newAPIClient,
			newTokenClient,
			newRedisClient,
			newTokenBackups,
			newTokenStore,
			newRateLimiter,
			newGatewayService,
			newGatewayHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, warmTokenStore, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

// newHTTPClient is shared by every outbound call: token grants, signed API calls and the server clock.
func newHTTPClient(cfg config.Config, _ *telemetry.Provider) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTPClientTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func newSigner(cfg config.Config) (*signer.Signer, error) {
	var opts []signer.Option
	if cfg.SignPathPrefix != "" {
		opts = append(opts, signer.WithPathPrefix(cfg.SignPathPrefix))
	}
	s, err := signer.New(cfg.SignMode, cfg.Credentials.AppSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return s, nil
}

func newClock(cfg config.Config, client *http.Client, logger *zap.Logger) aliexpress.Clock {
	if !cfg.ClockSync {
		return aliexpress.LocalClock{}
	}
	return aliexpress.NewServerClock(client, cfg.APIBaseURL, logger)
}

func newAPIClient(cfg config.Config, client *http.Client, s *signer.Signer, clock aliexpress.Clock, logger *zap.Logger) *aliexpress.Client {
	return aliexpress.NewClient(client, s, clock, aliexpress.Options{
		BaseURL:    cfg.APIBaseURL,
		AppKey:     cfg.Credentials.AppKey,
		Version:    cfg.APIVersion,
		TrackingID: cfg.TrackingID,
		UsePOST:    cfg.APIUsePOST,
		Timestamp:  cfg.TimestampFormat,
	}, logger)
}

func newTokenClient(cfg config.Config, client *http.Client) oauthadapter.TokenClient {
	return oauthadapter.NewHTTPTokenClient(client, cfg.OAuthBaseURL, cfg.Credentials)
}

// newRedisClient returns nil when REDIS_ADDR is unset. An unreachable redis is
// logged and kept; backup writes then surface as persistence warnings.
func newRedisClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed; token backup degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newTokenBackups(cfg config.Config, client redis.UniversalClient) []repository.TokenBackup {
	backups := []repository.TokenBackup{fileadapter.NewTokenFile(cfg.TokenFile)}
	if client != nil {
		backups = append(backups, cacheadapter.NewRedisTokenStore(client, cfg.RedisTokenKey))
	}
	return backups
}

func newTokenStore(tokenClient oauthadapter.TokenClient, backups []repository.TokenBackup, logger *zap.Logger) *tokenstore.Store {
	return tokenstore.New(tokenClient, logger, tokenstore.WithBackups(backups...))
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM, httptransport.HealthPath)
}

func newGatewayService(store *tokenstore.Store, api *aliexpress.Client, tokenClient oauthadapter.TokenClient, logger *zap.Logger) *service.GatewayService {
	return service.NewGatewayService(store, api, tokenClient, logger)
}

func newGatewayHandler(cfg config.Config, gateway *service.GatewayService) *handler.GatewayHandler {
	return handler.NewGatewayHandler(gateway, handler.PublicInfo{
		AppKey:      cfg.Credentials.AppKey,
		RedirectURI: cfg.Credentials.RedirectURI,
		APIBaseURL:  cfg.APIBaseURL,
		OAuthURL:    cfg.OAuthBaseURL,
		SignMode:    cfg.SignMode.String(),
		Timestamp:   cfg.TimestampFormat.String(),
		TrackingID:  cfg.TrackingID != "",
		HasSecret:   cfg.Credentials.AppSecret != "",
	})
}

func warmTokenStore(lc fx.Lifecycle, store *tokenstore.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.Warm(ctx)
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}

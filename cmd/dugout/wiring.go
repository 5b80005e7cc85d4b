package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/dugout/internal/adapters/cache"
	"github.com/okian/dugout/internal/adapters/http/api"
	"github.com/okian/dugout/internal/adapters/http/live"
	"github.com/okian/dugout/internal/adapters/http/swagger"
	"github.com/okian/dugout/internal/adapters/repository"
	app "github.com/okian/dugout/internal/app"
	"github.com/okian/dugout/internal/config"
	"github.com/okian/dugout/pkg/logger"
)

// openStore opens the repository driver selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.StoreSQLite:
		return repository.NewSQLiteStore(cfg.SQLitePath)
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
}

// openCache uses Redis when an address is configured and an in-process
// cache otherwise. A zero TTL disables caching.
func openCache(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.LeaderboardCache, error) {
	switch {
	case cfg.LeaderboardCacheTTL == 0:
		return cache.NopCache{}, nil
	case cfg.RedisAddr != "":
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LeaderboardCacheTTL)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "leaderboard cache: redis", logger.String("addr", cfg.RedisAddr))
		return c, nil
	default:
		log.Info(ctx, "leaderboard cache: memory", logger.Duration("ttl", cfg.LeaderboardCacheTTL))
		return cache.NewMemoryCache(cfg.LeaderboardCacheTTL), nil
	}
}

// newAuthenticator picks the token verifier from cfg. With neither a secret
// nor a key set, user routes trust X-User-ID unless auth is required.
func newAuthenticator(ctx context.Context, cfg *config.Config, log logger.Logger) *api.Authenticator {
	switch {
	case cfg.AuthJWTSecret != "":
		return api.NewAuthenticator(api.NewHMACVerifier(cfg.AuthJWTSecret))
	case cfg.AuthJWKSURL != "":
		return api.NewAuthenticator(api.NewJWKSVerifier(cfg.AuthJWKSURL))
	case !cfg.AuthRequired:
		log.Warn(ctx, "no token verifier configured; trusting "+api.UserIDHeader)
		return api.NewAuthenticator(nil, api.WithInsecureUserHeader())
	default:
		log.Warn(ctx, "no token verifier configured; user routes will answer 401")
		return api.NewAuthenticator(nil)
	}
}

// newHandler registers the docs and API routes on a fresh mux.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, hub *live.Hub, auth *api.Authenticator, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithAuthenticator(auth),
		api.WithLive(hub),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)
	return mux
}

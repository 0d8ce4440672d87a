package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/storeforge/catalog-engine/docs"
	"github.com/storeforge/catalog-engine/internal/cache"
	"github.com/storeforge/catalog-engine/internal/cart"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/config"
	"github.com/storeforge/catalog-engine/internal/docstore"
	"github.com/storeforge/catalog-engine/internal/logger"
	"github.com/storeforge/catalog-engine/internal/order"
	"github.com/storeforge/catalog-engine/internal/review"
)

// @title Storefront Catalog Engine
// @version 1.0
// @description Catalog query & consistency engine: paginated listing, two-phase search, reviews, cart reconciliation, checkout.
// @BasePath /
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	store := docstore.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("schema setup failed", zap.Error(err))
	}

	var productCache catalog.DocumentCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		productCache = cache.NewProductCache(rdb, cache.DefaultTTL, log)
		log.Info("product cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	catalogSvc := catalog.NewService(store, productCache, log)
	srv := &server{
		catalog: catalogSvc,
		reviews: review.NewService(store, log),
		carts:   cart.NewService(store, catalogSvc, log),
		orders:  order.NewService(store, catalogSvc, cfg.ShippingFee, cfg.FreeShippingOver, log),
		log:     log,
	}

	log.Info("catalog-service listening", zap.String("addr", cfg.HTTPAddr))
	if err := newRouter(srv).Run(cfg.HTTPAddr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

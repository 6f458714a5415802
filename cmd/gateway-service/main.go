package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendora/internal/gateway"
	"vendora/internal/identity"
	"vendora/internal/ratelimit"
	"vendora/internal/secevent"
	"vendora/internal/token"
	"vendora/pkg/config"
	"vendora/pkg/db"
	"vendora/pkg/logger"
	"vendora/pkg/tenants"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var (
		tenantStore  tenants.Store
		refreshStore token.RefreshStore
		userStore    identity.Store
	)
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := tenants.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("tenants schema", "err", err)
		}
		if err := identity.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("identity schema", "err", err)
		}
		if err := token.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("token schema", "err", err)
		}
		if err := tenants.SeedFromEnv(ctx, pool, os.Getenv("TENANT_SEED_JSON")); err != nil {
			log.Warnw("tenant seed", "err", err)
		}
		cancel()
		tenantStore = tenants.NewPostgresStore(pool, log)
		refreshStore = token.NewPostgresStore(pool)
		userStore = identity.NewPostgresStore(pool)
	} else {
		log.Warnw("DATABASE_URL not set, using in-memory stores (dev only)")
		tenantStore = tenants.NewMemoryStoreFromEnv(log)
		refreshStore = token.NewMemoryStore()
		userStore = identity.NewMemoryStore()
	}

	events := secevent.New(log, rdb, cfg.SecurityStream)
	resolver := tenants.NewResolver(tenantStore, cfg.RootDomain, cfg.DevDomain, cfg.TenantCacheTTL, log)
	tokenSvc := token.NewService([]byte(cfg.SigningSecret), refreshStore, events, cfg.AccessTTL, cfg.RefreshTTL)
	users := identity.NewService(userStore)
	limiter := ratelimit.New(cfg.RateLimitCeiling, cfg.RateSweepInterval, log)
	defer limiter.Close()

	gw := gateway.New(log, cfg, resolver, tokenSvc, users, limiter, events, nil, nil)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: gw.Handler()}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr, "root", cfg.RootDomain)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"deskpanel/internal/config"
	"deskpanel/internal/connectivity"
	"deskpanel/internal/engine"
	internalhttp "deskpanel/internal/http"
	"deskpanel/internal/identity"
	"deskpanel/internal/jobs"
	"deskpanel/internal/notify"
	"deskpanel/internal/obs"
	"deskpanel/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		deskStore store.Store
		hub       *store.Hub
		pg        *store.Postgres
	)
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection failed: %v", err)
		}
		defer pg.Close()
		deskStore = pg
		hub = pg.EventHub()
		log.Printf("using postgres locker store")
	} else {
		mem := store.NewMemory()
		deskStore = mem
		hub = mem.EventHub()
		log.Printf("using in-memory locker store")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()

		bridge := store.NewBridge(redisClient, cfg.RedisEventChannel, uuid.NewString(), hub)
		bridge.Start(ctx)
	}

	var revoker identity.Revoker
	if redisClient != nil {
		revoker = identity.NewRedisRevoker(redisClient)
	}
	provider := identity.NewClaimsProvider(revoker)

	eng, err := engine.New(deskStore, provider, notify.NewRegistry(),
		engine.WithAdminCRUDGate(cfg.RequireAdminForCRUD),
	)
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	obs.Init()

	observer := connectivity.NewObserver(cfg.ReconnectClearDelay)
	jobs.StartConnectivityProbe(ctx, cfg, observer, func(probeCtx context.Context) error {
		if pg != nil {
			if err := pg.DB().PingContext(probeCtx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(probeCtx).Err(); err != nil {
				return err
			}
		}
		return nil
	})

	server := internalhttp.NewServer(cfg, eng, deskStore, observer)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("deskpanel http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"tradehistory/config"
	"tradehistory/internal/api"
	"tradehistory/internal/history"
	"tradehistory/internal/ingest"
	"tradehistory/internal/market"
	"tradehistory/internal/notify"
	"tradehistory/internal/venue"
	"tradehistory/logger"
	"tradehistory/pkg/kvstore"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fail fast on any invalid market before touching the network.
	registry, err := market.NewRegistry(cfg.Markets)
	if err != nil {
		log.Fatal("invalid market configuration", zap.Error(err))
	}

	kv, err := kvstore.Open(ctx, cfg.Store, cfg.Log.Environment)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer kv.Close()

	cache, err := history.NewBucketCache(cfg.Cache.Capacity)
	if err != nil {
		log.Fatal("failed to create cache", zap.Error(err))
	}
	store := history.NewTradeStore(kv, cache, log)
	notifier := notify.New(cfg.Notify, log)

	if cfg.Role == "web" {
		log.Warn("role=web detected, not collecting market data")
	} else {
		rpc := venue.NewRPCClient(cfg.Solana.RPCEndpoint, cfg.Solana.Timeout)
		scheduler := ingest.NewScheduler(
			registry,
			venue.NewSpotVenue(rpc),
			venue.NewPerpVenue(rpc),
			store,
			ingest.NewCursorStore(kv),
			notifier,
			cfg.Poll.Interval,
			log,
		)
		scheduler.Start(ctx)
	}

	// Warm the cache in the background; readiness never waits on it.
	store.WarmCache(ctx, registry.Symbols(), cfg.Cache.WarmupDays)

	srv := api.NewServer(registry, store, notifier, log).HTTPServer(cfg.HTTP.Port)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
}

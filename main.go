package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesanalytics/internal/api"
	"salesanalytics/internal/cache"
	"salesanalytics/internal/config"
	"salesanalytics/internal/eventbus"
	"salesanalytics/internal/feed"
	"salesanalytics/internal/forecast"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/query"
	"salesanalytics/internal/scheduler"
	"salesanalytics/internal/session"
	"salesanalytics/internal/store"
	"salesanalytics/internal/sync"
)

var version = "dev"

func main() {
	cfg := config.Load()

	addr := flag.String("addr", cfg.Addr, "HTTP listen address, e.g. :8080")
	flag.Parse()

	logger.Banner(version)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("MAIN", fmt.Sprintf("create data dir: %v", err))
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("STORE", fmt.Sprintf("open: %v", err))
		os.Exit(1)
	}
	defer st.Close()

	bus := eventbus.New()
	c := cache.New()
	sessions := session.NewStore(st.DB())
	feedClient := feed.NewClient(cfg.KeyCRMBaseURL, cfg.KeyCRMAPIKey)
	syncEngine := sync.New(st, feedClient, bus)
	forecaster := forecast.New(st, cfg.DataDir)
	queryLayer := query.New(st)

	sched := scheduler.New(st, bus, bus, c, sessions, syncEngine, forecaster)
	if err := sched.Start(context.Background()); err != nil {
		logger.Error("SCHEDULER", fmt.Sprintf("start: %v", err))
		os.Exit(1)
	}
	defer sched.Stop()

	srv := api.NewServer(st, queryLayer, forecaster, syncEngine, bus, sessions)

	httpServer := &http.Server{Addr: *addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("SERVER", "shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("SERVER", fmt.Sprintf("shutdown error: %v", err))
		}
	}()

	logger.Server(*addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("SERVER", fmt.Sprintf("failed: %v", err))
		os.Exit(1)
	}
	logger.Info("SERVER", "stopped")
}

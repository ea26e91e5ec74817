package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chatstore/internal/sweeper"
	"chatstore/pkg/api"
	"chatstore/pkg/chat"
	"chatstore/pkg/config"
	"chatstore/pkg/logger"
	"chatstore/pkg/store"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags explicitly set win over env and config.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] {
		dbPath = dbVal
	}

	logger.Init(cfg.Logging.Level)
	logger.Info("starting", "addr", addr, "db", dbPath)

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", dbPath, err)
	}
	defer st.Close()
	if err := chat.EnsureTables(st); err != nil {
		log.Fatalf("failed to register tables: %v", err)
	}

	svc := chat.New(st, cfg.Limits)
	sw := sweeper.New(st, cfg.Sweep)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cancelSweeps, err := sw.Start(ctx)
	if err != nil {
		log.Fatalf("failed to start sweeper: %v", err)
	}
	defer cancelSweeps()

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(svc, sw, st, cfg).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		logger.Info("shutting_down")
	case err := <-errCh:
		logger.Error("server_error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err)
	}
	logger.Info("stopped")
}

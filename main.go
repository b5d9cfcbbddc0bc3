package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"retro-arcade-server/api"
	"retro-arcade-server/config"
	"retro-arcade-server/leaderboard"
	"retro-arcade-server/loghandler"
	"retro-arcade-server/storage"
	"retro-arcade-server/ws"
)

func main() {
	initOnly := flag.Bool("init", false, "initialize the database schema and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; using environment variables")
	}

	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))

	cfg := config.Load()
	if !cfg.DB.IsConfigured() {
		slog.Info("no production database configured, running on local storage only")
	}
	if cfg.JWTSecret == "" && cfg.AuthJWKSURL == "" {
		slog.Warn("JWT_SECRET is not set; register/login will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := storage.NewManager(cfg)
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to any database", "tag", "storage", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	if err := db.InitSchema(ctx); err != nil {
		slog.Error("failed to initialize schema", "tag", "storage", "err", err)
		os.Exit(1)
	}
	if *initOnly {
		slog.Info("schema initialized", "backend", db.Name())
		return
	}

	boards := leaderboard.NewManager(db, time.Duration(cfg.LeaderboardCacheTTLSec)*time.Second)

	hub := ws.NewHub(cfg, boards)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	api.NewHandler(cfg, db, boards, hub).Routes(mux)
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown error", "err", err)
		}
	}()

	slog.Info("arcade score server listening", "addr", server.Addr, "backend", db.Name())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bookclub/friendchat/internal/auth"
	"github.com/bookclub/friendchat/internal/server"
	"github.com/bookclub/friendchat/internal/user"
)

// Exit codes to provide meaningful status to the operating system or service
// manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main acts as a thin wrapper: it calls run() and handles the OS exit
	// code, so deferred cleanup in run always executes.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "friendchat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return exitConfig, err
	}
	server.SetConfig(cfg)

	logger := newLogger(cfg.LogLevel)

	// The user directory stands in for the friends backend. An optional seed
	// file lets the standalone binary serve real identities.
	var directory user.Directory = user.NewInMemoryDirectory()
	if cfg.UserSeedFile != "" {
		seeded, err := user.LoadFile(cfg.UserSeedFile)
		if err != nil {
			return exitConfig, err
		}
		directory = seeded
		logger.Info("user directory seeded", slog.String("file", cfg.UserSeedFile))
	}

	registry := server.NewRegistry(logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	handlers := server.NewHandlers(registry, verifier, directory, logger)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handlers))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, fmt.Errorf("server error: %w", err)
		}
	case sig := <-stop:
		logger.Info("signal received; shutting down", slog.String("signal", sig.String()))
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("HTTP shutdown incomplete", slog.Any("error", err))
	}
	if err := registry.Shutdown(cfg.ShutdownTimeout); err != nil {
		return exitRuntime, fmt.Errorf("registry shutdown: %w", err)
	}

	logger.Info("friendchat stopped cleanly")
	return exitOK, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

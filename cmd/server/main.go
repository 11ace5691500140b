package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/chatrelay/chatrelay/internal/auth"
	"github.com/chatrelay/chatrelay/internal/bulletin"
	"github.com/chatrelay/chatrelay/internal/server"
	"github.com/chatrelay/chatrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (like closing the message
// store) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	// 2. Message store (BadgerDB)
	messages, err := store.Open(cfg.BadgerPath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing message store")
		_ = messages.Close()
	}()

	// 3. Collaborators & relay core
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))

	var bulletins *bulletin.Client
	if cfg.BulletinConfigured() {
		bulletins = bulletin.NewClient(cfg.BulletinBaseURL, cfg.BulletinSpaceID, cfg.BulletinAccessToken, log)
	}

	hub := server.NewHub(cfg, messages, log)
	go hub.Run()

	chatServer := server.NewChatServer(cfg, hub, verifier, messages, bulletins, log)
	httpServer := server.CreateServer(cfg.Addr(), chatServer.Routes())

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 5. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		return err
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		log.Warn("HTTP shutdown incomplete", "err", err)
	}
	return hub.Shutdown(cfg.ShutdownTimeout)
}

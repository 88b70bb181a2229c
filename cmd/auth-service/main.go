package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ride-share/internal/ride-service/app"
	"ride-share/internal/ride-service/handler"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/config"
	"ride-share/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("auth-service", os.Stdout, cfg.Log.Debug)
	log.Info("startup", "Starting auth-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to open store: %w", err))
		os.Exit(1)
	}
	defer store.Close(context.Background())

	revoker, closeRevoker, err := app.OpenRevoker(ctx, cfg, log)
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to connect to redis: %w", err))
		os.Exit(1)
	}
	defer closeRevoker()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL, revoker)
	accounts := service.NewAccountService(store, jwtManager, cfg.Accounts.EmailDomain, log, time.Now)

	mux := http.NewServeMux()
	handler.RegisterAuthRoutes(mux, jwtManager, handler.NewAccountHandler(accounts, log), handler.NewHealthHandler(store, log))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Services.AuthService),
		Handler:      handler.WithRequestID(log, mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("startup", fmt.Sprintf("Auth service listening on %s", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("shutdown", fmt.Errorf("server error: %w", err))
		}
	case <-ctx.Done():
		log.Info("shutdown", "Shutdown signal received. Starting graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", fmt.Errorf("graceful shutdown failed: %w", err))
	}
	log.Info("shutdown", "Auth service stopped gracefully")
}

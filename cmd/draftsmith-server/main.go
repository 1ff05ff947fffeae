// Package main provides the HTTP server for draftsmith.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"draftsmith/internal/config"
	"draftsmith/internal/db"
	"draftsmith/internal/jobs"
	"draftsmith/internal/provider"
	"draftsmith/internal/server"
	"draftsmith/internal/service"
)

func main() {
	seedPath := flag.String("seed", "", "seed file with providers and document types (default from DRAFTSMITH_SEED_FILE)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer closeLog()

	if err := run(cfg, *seedPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, seedPath string) error {
	if seedPath == "" {
		seedPath = cfg.SeedFile
	}
	seed, err := config.LoadSeed(seedPath)
	if err != nil {
		return err
	}
	slog.Info("seed file loaded", "path", seedPath, "document_types", len(seed.DocumentTypes))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer dbClient.Close(context.Background())

	if err := dbClient.InitSchema(ctx); err != nil {
		return err
	}

	cipher, err := provider.NewCipher(cfg.SecretKey)
	if err != nil {
		return err
	}

	if err := provider.SeedProviders(ctx, dbClient, seed.Providers, seed.Defaults); err != nil {
		return err
	}

	registry := provider.NewRegistry(dbClient, cipher)
	if err := registry.Reload(ctx); err != nil {
		return err
	}

	tracker := jobs.NewTracker(dbClient)
	generate := service.NewGenerateService(seed, dbClient, registry, tracker)
	generate.SetPollConfig(jobs.PollConfig{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
	})
	reinit := service.NewReinitService(seed, generate.Instructions(), registry, generate)
	voices := service.NewVoicesService(registry)

	if _, err := reinit.Reinit(ctx); err != nil {
		return err
	}

	handler, err := server.New(server.Config{
		Generate:  generate,
		Reinit:    reinit,
		Voices:    voices,
		Tracker:   tracker,
		Store:     dbClient,
		Registry:  registry,
		Cipher:    cipher,
		JWTSecret: cfg.JWTSecret,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // generation calls can run long
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting draftsmith-server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

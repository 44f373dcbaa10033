package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/aquasens/internal/account"
	"github.com/dgallion1/aquasens/internal/api"
	"github.com/dgallion1/aquasens/internal/batch"
	"github.com/dgallion1/aquasens/internal/config"
	"github.com/dgallion1/aquasens/internal/dtree"
	"github.com/dgallion1/aquasens/internal/encoder"
	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the model once; it is shared read-only from here on.
	tree, err := dtree.Load(cfg.ModelPath)
	if err != nil {
		log.Error("load model", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	enc, err := encoder.Load(cfg.EncoderPath)
	if err != nil {
		log.Error("load encoder", "path", cfg.EncoderPath, "error", err)
		os.Exit(1)
	}
	pred, err := predictor.New(tree, enc, nil, log)
	if err != nil {
		log.Error("model and encoder disagree", "error", err)
		os.Exit(1)
	}
	pred.Stats = predictor.NewStats(cfg.StatsWindow)
	log.Info("model loaded",
		"nodes", tree.NumNodes(),
		"depth", tree.Depth(),
		"features", tree.NumFeatures(),
	)

	store, err := history.Open(cfg.DataDir)
	if err != nil {
		log.Error("open history store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	tokens, err := account.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Error("init tokens", "error", err)
		os.Exit(1)
	}
	accounts := account.New(store.DB())

	// Initialize batch pipeline.
	orch := batch.NewOrchestrator(batch.NewWorker(pred, store, log), cfg.WorkerCount, cfg.MaxQueueSize, cfg.JobTTL, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(pred, store, orch, accounts, tokens, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})

	// Graceful shutdown.
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := store.Close(); err != nil {
			log.Error("close history store", "error", err)
		}
	}()

	log.Info("starting aquasens", "port", cfg.Port, "data_dir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

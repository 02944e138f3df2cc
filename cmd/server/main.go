package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/protocorpus/internal/api"
	"github.com/dgallion1/protocorpus/internal/config"
	"github.com/dgallion1/protocorpus/internal/logging"
	"github.com/dgallion1/protocorpus/internal/pipeline"
	"github.com/dgallion1/protocorpus/internal/search"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path, cfg); err != nil {
			slog.Error("load config file", "path", path, "error", err)
			os.Exit(1)
		}
	}

	log := logging.New(cfg, os.Stdout)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline.RegisterMetrics(prometheus.DefaultRegisterer)

	// The search index is optional; it is built by "protocorpus index".
	var idx *search.Index
	if _, err := os.Stat(cfg.IndexDir); err == nil {
		idx, err = search.Open(cfg.IndexDir)
		if err != nil {
			log.Warn("search disabled", "error", err)
		}
	} else {
		log.Info("search disabled, no index", "index_dir", cfg.IndexDir)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, idx, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting protocorpus server",
		"port", cfg.Port,
		"corpus_root", cfg.CorpusRoot,
		"api_runs", cfg.APIKey != "",
	)
	err := serve(sigCtx, httpServer, log, func() {
		orch.Stop()
		if idx != nil {
			idx.Close()
		}
	})
	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs srv until ctx ends, then shuts the server down and calls
// cleanup. It returns only after cleanup has finished.
func serve(ctx context.Context, srv *http.Server, log *slog.Logger, cleanup func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		cleanup()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	// In-flight runs finish or fail before the index and process go away.
	cleanup()

	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}

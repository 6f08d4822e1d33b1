// Package main is the entry point for the streamcount server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fidde/streamcount/internal/api"
	"github.com/fidde/streamcount/internal/config"
	"github.com/fidde/streamcount/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log.Println("Starting streamcount...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	store, err := storage.NewStorage(storage.Config{
		Backend:        cfg.Storage.Backend,
		Buckets:        cfg.Buckets,
		SQLitePath:     cfg.Storage.SQLitePath,
		ClickHouseAddr: cfg.Storage.ClickHouseAddr,
	})
	if err != nil {
		log.Fatalf("Creating storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}()

	apiServer := api.NewServer(cfg.APIAddr, store)

	// pprof on a separate port
	go func() {
		log.Printf("Starting pprof server on http://%s/debug/pprof", cfg.PprofAddr)
		if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting REST API server on %s", cfg.APIAddr)
		if err := apiServer.Start(); err != nil {
			errChan <- err
		}
	}()

	log.Println("API endpoints:")
	log.Printf("  - Ingest:   POST http://%s/api/v1/counters/{name}/values", cfg.APIAddr)
	log.Printf("  - Reports:  GET  http://%s/api/v1/counters", cfg.APIAddr)
	log.Printf("  - Health:   GET  http://%s/api/v1/health", cfg.APIAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}
	log.Println("Shutdown complete")
}

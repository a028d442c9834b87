package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/url2feed/url2feed/app/api"
	"github.com/url2feed/url2feed/app/cfg"
	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/ingest"
	"github.com/url2feed/url2feed/app/resolver"
	"github.com/url2feed/url2feed/app/safety"
	"github.com/url2feed/url2feed/app/scrape"
	"github.com/url2feed/url2feed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting url2feed server", "version", appCfg.Version)

	policy := safety.Policy{AllowPrivateNetworks: appCfg.AllowPrivateNetworks}
	if policy.AllowPrivateNetworks {
		slog.Warn("Private network targets are allowed; do not run this configuration in production")
	}

	client := fetch.NewClient(appCfg.UserAgent, appCfg.ProxyBaseUrl, appCfg.ProxyAPIKey)
	cache := feed.NewCache(
		time.Duration(appCfg.CacheTTL)*time.Second,
		time.Duration(appCfg.CacheSweepInterval)*time.Second)
	feeds := feed.NewService(client, feed.NewParser(), cache, policy)
	discoverer := discovery.NewDiscoverer(client, policy)
	scraper := scrape.NewScraper(client, policy)
	res := resolver.NewResolver(client, policy, discoverer, feeds, scraper)

	// Bulk ingestion is optional; without a sources file the service only
	// answers API requests.
	var runner *ingest.Runner
	var sources []ingest.Source
	var scheduler tasks.TaskSchedulerInterface

	if appCfg.SourcesFile != "" {
		sources, err = ingest.LoadSources(appCfg.SourcesFile)
		if err != nil {
			slog.Error("Failed to load sources", "file", appCfg.SourcesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Sources loaded", "file", appCfg.SourcesFile, "count", len(sources))

		var forwarder *ingest.Forwarder
		if appCfg.WebhookUrl != "" {
			forwarder = ingest.NewForwarder(appCfg.WebhookUrl)
			slog.Info("Webhook forwarding enabled")
		} else {
			slog.Warn("No webhook configured, ingested items will only be logged")
		}
		runner = ingest.NewRunner(res, forwarder)

		scheduler = tasks.NewScheduler(sources, runner)
		scheduler.Start()
		defer scheduler.Stop()
		slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	}

	apiHandler := api.NewHandler(policy, res, feeds, discoverer, runner, sources)
	server := api.NewServer(apiHandler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

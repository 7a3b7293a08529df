// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command harbor starts the Aleutian Harbor server.
//
// Harbor watches a workspace root, maintains a set of analysis projects
// from a YAML configuration file, and answers file ownership queries over
// HTTP. Files no configured project claims are served by an inferred
// single-file temp project.
//
// Usage:
//
//	go run ./cmd/harbor -root /path/to/workspace -config harbor.yaml
//	go run ./cmd/harbor -root . -config harbor.yaml -port 9090 -log-level debug
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/harbor/health
//
//	# List projects in resolution order
//	curl http://localhost:8080/v1/harbor/projects
//
//	# Resolve file ownership
//	curl 'http://localhost:8080/v1/harbor/resolve?file=/path/to/workspace/src/main.ts'
//
// Editing the configuration file while the server runs applies the new
// project set in place: removed projects are disposed, added ones are
// created, and retained ones are updated without losing their identity.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/harbor/pkg/logging"
	"github.com/AleutianAI/harbor/services/harbor"
	"github.com/AleutianAI/harbor/services/harbor/config"
	"github.com/AleutianAI/harbor/services/harbor/fsevents"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	root := flag.String("root", ".", "Workspace root to watch")
	configPath := flag.String("config", "", "Project configuration file (YAML)")
	defaultLib := flag.String("default-lib", "", "Default library directory (tracked as references)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logDir := flag.String("log-dir", "", "Directory for JSON log files (optional)")
	trace := flag.Bool("trace", false, "Export OTel spans to stdout")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if err := run(*port, *root, *configPath, *defaultLib, *logLevel, *logDir, *trace, *debug); err != nil {
		slog.Error("Harbor failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(port int, root, configPath, defaultLib, logLevel, logDir string, trace, debug bool) error {
	logCloser, err := logging.Setup(logging.Config{
		Level:   logLevel,
		Service: "harbor",
		LogDir:  logDir,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if configPath == "" {
		return errors.New("-config is required")
	}
	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	if trace {
		shutdown, err := setupTracing()
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watch the workspace.
	watcher, err := fsevents.NewWatcher(root, nil)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()

	// Load the initial project set.
	configs, err := config.LoadProjects(absConfig)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	svc := harbor.NewService(harbor.ServiceConfig{
		DefaultLibLocation: defaultLib,
		ResolveTimeout:     10 * time.Second,
		UpdateTimeout:      60 * time.Second,
	})
	if err := svc.Init(ctx, configs, watcher); err != nil {
		return fmt.Errorf("initializing projects: %w", err)
	}
	defer svc.Close()

	slog.Info("Projects initialized",
		slog.Int("count", len(svc.Projects())),
		slog.String("root", watcher.Root()),
		slog.String("config", absConfig),
	)

	// Reload the project set when the config file itself changes.
	subID := watcher.Subscribe(configReloader(svc, absConfig))
	defer watcher.Unsubscribe(subID)

	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	v1 := router.Group("/v1")
	harbor.RegisterRoutes(v1, harbor.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting Harbor server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down Harbor server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// configReloader returns a change handler that re-applies the project set
// whenever the configuration file is touched. Reload failures keep the
// previous project set running.
func configReloader(svc *harbor.Service, absConfig string) fsevents.Handler {
	return func(batch []fsevents.ChangeRecord) {
		touched := false
		for _, rec := range batch {
			if rec.Kind == fsevents.ChangeReset || rec.FileName == absConfig {
				touched = true
				break
			}
		}
		if !touched {
			return
		}

		configs, err := config.LoadProjects(absConfig)
		if err != nil {
			slog.Warn("Config reload failed, keeping current projects",
				slog.String("config", absConfig),
				slog.String("error", err.Error()))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := svc.UpdateConfigs(ctx, configs); err != nil {
			slog.Error("Config update failed",
				slog.String("config", absConfig),
				slog.String("error", err.Error()))
			return
		}
		slog.Info("Projects reloaded", slog.Int("count", len(svc.Projects())))
	}
}

// setupTracing installs a stdout span exporter for local debugging.
func setupTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

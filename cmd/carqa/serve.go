package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carqa/carqa/internal/qa"
	"github.com/carqa/carqa/internal/server"
	"github.com/carqa/carqa/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the carqa HTTP server",
	Long: `Start the HTTP server exposing search, ingestion, and Q&A endpoints.

When articles.watch is enabled, new review files appearing in the articles
directory are ingested automatically.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	var answerer *qa.Service
	if a.config.QA.APIKey != "" || a.config.QA.BaseURL != "" {
		answerer, err = qa.NewService(a.config.QA, a.store, a.logger)
		if err != nil {
			return fmt.Errorf("initializing q&a service: %w", err)
		}
	} else {
		a.logger.Warn("no chat model configured, /api/v1/ask disabled")
	}

	srv, err := server.NewServer(a.store, answerer, a.processor, a.logger, server.Config{
		Port: a.config.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	if a.config.Articles.Watch {
		w, err := watcher.New(a.config.Articles.Dir, a.processor, a.logger)
		if err != nil {
			return fmt.Errorf("initializing article watcher: %w", err)
		}
		w.Start(ctx)
		defer w.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	}

	a.logger.Info("server shutdown complete")
	return nil
}

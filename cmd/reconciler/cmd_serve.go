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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/atlas/reconciler/internal/handlers"
	"github.com/stwalsh4118/atlas/reconciler/internal/scheduler"
)

const (
	shutdownTimeout = 30 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	log := a.log
	log.Info("Starting Atlas reconciler", map[string]interface{}{
		"version":     version,
		"environment": a.cfg.Server.Env,
		"port":        a.cfg.Server.Port,
	})

	// Setup Gin router
	if a.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Log:            log,
		DB:             a.db,
		Runner:         a.pipeline,
		Ledger:         a.ledger,
		Properties:     a.properties,
		Portfolios:     a.portfolios,
		Estimation:     a.estimation,
		Env:            a.cfg.Server.Env,
		CORSOrigins:    a.cfg.CORS.Origins,
		MetricsEnabled: a.cfg.Telemetry.MetricsEnabled,
	})

	// Start the monthly batch schedule when configured
	if a.cfg.Feed.Schedule != "" {
		sched, err := scheduler.New(a.pipeline, a.cfg.Feed.Path, a.cfg.Feed.Schedule, log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": a.cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	}

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
	return nil
}

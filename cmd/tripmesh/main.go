// Command tripmesh serves the trip planning agent over HTTP.
//
// Configuration is read from an optional .env file and the environment; see
// package config for the full list of variables. The minimal setup is:
//
//	export GROQ_API_KEY="your-key-here"
//	go run ./cmd/tripmesh
//	curl -s localhost:8000/query -d '{"query":"Plan 3 days in Lisbon"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/config"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("%v, falling back to info", err)
	}

	logger := logging.NewSlogLogger(level, cfg.LogFormat, false).WithComponent("tripmesh")

	planner, err := tripmesh.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("build planner: %w", err)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: server.New(planner, func(o *server.Options) {
			o.AllowOrigin = cfg.CORSAllowOrigin
			o.Logger = logger.WithComponent("http")
		}),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.InvocationTimeout + shutdownTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("server.start", "addr", srv.Addr, "provider", cfg.Provider)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server.shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

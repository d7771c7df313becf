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
)

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/api"
	"github.com/simplyvikram/koho-account-load-up/internal/core"
	"github.com/simplyvikram/koho-account-load-up/internal/metrics"
)

const loadsResource = "POST:/v1/loads"

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := c.String("addr"); v != "" {
		cfg.Server.HTTPAddr = v
	}

	rootCtx, cancelRoot := context.WithCancel(c.Context)
	defer cancelRoot()

	metrics.Register(prometheus.DefaultRegisterer)

	eval := core.NewSharded(cfg.Engine.Shards,
		core.WithLogger(log.Logger),
		core.WithObserver(metrics.ObserveDecision),
	)

	opts := []api.ServerOption{api.WithServerLogger(log.Logger)}

	audit, closeAudit, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()
	if audit != nil {
		opts = append(opts, api.WithAudit(audit))
	}

	if cfg.Server.ClientRPS > 0 {
		lim := api.NewClientLimiter(cfg.Server.ClientRPS, cfg.Server.ClientBurst, 15*time.Minute)
		lim.StartJanitor(rootCtx, time.Minute)
		opts = append(opts, api.WithClientLimiter(lim))
	}
	if cfg.Server.GlobalQPS > 0 {
		guard, err := api.NewFlowGuard(loadsResource, cfg.Server.GlobalQPS)
		if err != nil {
			return fmt.Errorf("init flow guard: %w", err)
		}
		opts = append(opts, api.WithFlowGuard(guard))
	}

	srv := api.NewServer(cfg.Server, eval, opts...)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Int("pid", os.Getpid()).Int("shards", eval.Shards()).Msg("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	case <-rootCtx.Done():
	}
	log.Info().Msg("shutting down server")
	cancelRoot()

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Int("customers", eval.Customers()).Msg("server exited properly")
	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tinoosan/ghusers/internal/metrics"
	"github.com/tinoosan/ghusers/internal/router"
	"github.com/tinoosan/ghusers/internal/sweeper"
)

func newServeCmd(cfgFile func() string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the users HTTP API",
		Long: `Serve the users API, avatar cache, connectivity stream and Prometheus
metrics over HTTP until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgFile())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	metrics.Register()
	log := a.log.With("operation_id", uuid.NewString())

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router.New(a.log, a.users, a.cfg.Server.APIToken),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if a.cfg.Server.APIToken == "" {
		log.Warn("server.api_token is empty; /v1 is unauthenticated")
	}

	sw := sweeper.New(a.log.With("component", "sweeper"), a.cache, a.cfg.Cache.SweepInterval, a.cfg.Cache.ScratchMaxAge)
	sw.Run()
	defer sw.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting ghusers API", "addr", server.Addr, "cache_root", a.cache.Root())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

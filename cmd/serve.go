package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/server"
	"github.com/sells-group/cellneigh/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the neighbourhood HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := resolvePort(servePort, cfg.Server.Port)
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		shutdown := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
		return startServer(ctx, buildHandler(st), port, shutdown)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

func buildHandler(st store.Store) http.Handler {
	return server.New(server.Config{
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DefaultRank:    cfg.Grid.Rank,
		Workers:        cfg.Grid.Workers,
		MaxCells:       cfg.Server.MaxCells,
		MaxIndices:     cfg.Server.MaxIndices,
		CacheEntries:   cfg.Server.CacheEntries,
		CacheTTL:       time.Duration(cfg.Server.CacheTTLSecs) * time.Second,
	}, st)
}

// startServer serves h on port until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func startServer(ctx context.Context, h http.Handler, port int, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

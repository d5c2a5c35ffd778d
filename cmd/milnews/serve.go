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

	"github.com/spf13/cobra"

	"github.com/deusflow/milnews/internal/app"
	"github.com/deusflow/milnews/internal/logger"
	"github.com/deusflow/milnews/internal/ratelimit"
	"github.com/deusflow/milnews/internal/web"
)

const shutdownTimeout = 10 * time.Second

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and thumbnails over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.ListenAddr = flagAddr
	}

	svc := app.New(cfg)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go keepWarm(ctx, svc, cfg.RefreshInterval)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           web.NewHandler(svc, ratelimit.New(cfg.ThumbRateLimit, time.Minute)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// keepWarm refreshes the aggregate in the background so requests rarely wait
// on a full fetch cycle. It ticks a little before the cached copy expires.
func keepWarm(ctx context.Context, svc *app.Service, every time.Duration) {
	if _, err := svc.Refresh(ctx); err != nil {
		logger.Error("Initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(max(every-every/10, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := svc.Refresh(ctx); err != nil {
				logger.Error("Refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

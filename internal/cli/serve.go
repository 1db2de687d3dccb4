package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"ytrag/internal/jobs"
	"ytrag/internal/logging"
	"ytrag/internal/server"
)

func cmdServe() *cli.Command {
	var cfgPath string
	var addr string

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API for indexing and querying transcripts",
		Flags: []cli.Flag{
			configFlag(&cfgPath),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP server address (overrides config)",
				Sources:     cli.EnvVars("YTRAG_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return goerr.Wrap(err, "loading config failed")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			manager, err := newManager(cfg)
			if err != nil {
				return err
			}

			tracker := jobs.NewTracker()
			runner := jobs.NewRunner(tracker, newYouTubeClient(cfg), manager)
			srv := server.New(manager, runner, server.WithDefaultTopK(cfg.Search.TopK))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// drop finished operations nobody will poll again
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if n := tracker.Cleanup(24 * time.Hour); n > 0 {
							logging.Default().Info("cleaned up old operations", "removed", n)
						}
					}
				}
			}()

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("starting HTTP server",
					"addr", addr, "index_dir", cfg.Storage.IndexDir, "chunks", manager.Count())
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "HTTP server failed")
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			logging.Default().Info("shutting down HTTP server")
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "shutdown failed")
			}
			return nil
		},
	}
}

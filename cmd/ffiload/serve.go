package main

import (
	"context"
	"time"

	"github.com/koustreak/ffiload/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and an import trigger over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(server.Deps{
				Runner:  a.importer,
				Source:  src,
				Checks:  map[string]server.Pinger{"database": a.db, "source": src},
				Metrics: a.metrics,
				Logger:  a.log,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

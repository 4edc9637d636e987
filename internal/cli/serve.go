package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dial-a-ride/internal/handlers"
	"dial-a-ride/internal/server"
)

func newServeCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return err
			}

			h := &handlers.Handler{
				Planner:  d.planner,
				Defaults: cfg.Options(),
			}
			if d.store != nil {
				h.Runs = d.store.Runs()
				h.Health = d.store
			}

			closers := append([]io.Closer(nil), d.closers...)
			srv := server.New(server.Config{Addr: cfg.ListenAddr, Closers: closers}, h)
			addr, err := srv.Start()
			if err != nil {
				d.Close()
				return fmt.Errorf("failed to start server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTTP listening on %s\n", addr)

			<-ctx.Done()
			log.Printf("[HTTP] Shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("could not gracefully shutdown the server: %w", err)
			}

			log.Println("[HTTP] Server stopped")
			return nil
		},
	}

	cmd.Flags().String("listen-addr", "", "address to listen on")
	return cmd
}

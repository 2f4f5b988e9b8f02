package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docchat/app/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return withComponents(ctx, func(c *server.Components) error {
		s := server.NewServer(c, logger)

		var wg sync.WaitGroup
		watcher, err := c.Watcher()
		if err != nil {
			return err
		}
		if watcher != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := watcher.Run(ctx); err != nil {
					logger.Error("inbox watcher stopped", "error", err)
				}
			}()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Run()
		}()

		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigch)

		select {
		case err := <-errCh:
			cancel()
			wg.Wait()
			return err
		case <-sigch:
			logger.Info("received shutdown signal, shutting down server")
		}

		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		err = s.Stop(shutdownCtx)
		wg.Wait()
		return err
	})
}

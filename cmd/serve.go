package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ldsgroups225/taskora/internal/api"
	"github.com/ldsgroups225/taskora/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serves the REST API and runs the daily auto-assignment sweep in the
background. The sweep time is configured via assign.daily_at (HH:MM,
local time).`,
	RunE: serveRun,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().Bool("no-schedule", false, "Disable the daily auto-assignment sweep")
	rootCmd.AddCommand(serveCmd)
}

func serveRun(cmd *cobra.Command, args []string) error {
	svc, err := getTriage()
	if err != nil {
		return err
	}

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = viper.GetInt("serve.port")
	}
	noSchedule, _ := cmd.Flags().GetBool("no-schedule")

	pidPath := filepath.Join(viper.GetString("state_dir"), "taskora.pid")
	pidFile := daemon.NewPIDFile(pidPath)
	if err := pidFile.Acquire(); err != nil {
		return fmt.Errorf("acquire pid file: %w", err)
	}
	defer func() { _ = pidFile.Remove() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var parser api.QueryParser
	if c := newLLMClient(); c != nil {
		parser = c
	}
	server := api.NewServer(dataStore, svc, parser)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !noSchedule {
		scheduler := &daemon.Scheduler{
			At:   viper.GetString("assign.daily_at"),
			Name: "auto-assign",
			Run: func(ctx context.Context) error {
				outcome, err := svc.AutoAssign(ctx, "")
				if err != nil {
					return err
				}
				slog.Info("auto-assign sweep finished",
					"candidates", outcome.Candidates,
					"assigned", outcome.Assigned,
					"skipped", outcome.Skipped,
					"degraded", outcome.Degraded)
				return nil
			},
		}
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("scheduler stopped", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

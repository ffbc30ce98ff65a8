package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/process"
	"github.com/audiolibrelab/loopcap/internal/server"
	"github.com/audiolibrelab/loopcap/internal/service"
	"github.com/audiolibrelab/loopcap/internal/shutdown"
	"github.com/audiolibrelab/loopcap/internal/transcripts"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the app: helpers, session flag and control API",
	Long: `Run loopcap as the desktop app backend. It writes the session flag, starts
the helper processes, serves the control API and streams recording events
over /events.

On Ctrl+C or SIGTERM the session flag is removed and every helper is
terminated, first through its handle and then by executable name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		applyOutputFlag(cmd)

		outDir := cfg.Output.Directory
		if outDir == "" {
			outDir = "."
		}
		outDir, err := filepath.Abs(outDir)
		if err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		cfg.Output.Directory = outDir

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		flags := flagstore.New(cfg.FlagPath())
		if err := flags.Write(outDir); err != nil {
			return err
		}

		sup, err := process.NewSupervisor()
		if err != nil {
			flags.Clear()
			return err
		}

		coordinator := shutdown.New(flags, sup, shutdown.NewPsKiller(), cfg.HelperProcessNames()...)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := coordinator.Run(ctx); err != nil {
				slog.Error("Cleanup finished with errors", "error", err)
			}
		}()

		hub := server.NewHub()
		svc, release, err := newService(sup, audio.MultiNotifier{audio.LogNotifier{}, hub})
		if err != nil {
			return err
		}
		defer release()
		defer svc.Close()

		started := service.StartHelpers(cfg.Helpers, sup, flags)
		slog.Info("Helpers started", "count", len(started))

		if err := transcripts.Watch(ctx, outDir, func(path string) {
			hub.Notify(server.EventTranscriptUpdated, path)
		}); err != nil {
			slog.Warn("Transcript updates disabled", "error", err)
		}

		srv := server.New(svc, hub, cfg.Server.Port)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		slog.Info("loopcap running - Press Ctrl+C to stop", "output_dir", outDir, "flag", flags.Path())

		var serveErr error
		select {
		case <-ctx.Done():
			slog.Info("Shutting down")
		case serveErr = <-errCh:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Control API did not shut down cleanly", "error", err)
		}
		return serveErr
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port for the control API (overrides config)")
	serveCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}

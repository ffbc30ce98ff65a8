package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/process"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record <device-id>",
	Short: "Record one fixed-length session from a device",
	Long: `Record one session (audio.session_duration, 10s by default) of what the
device is playing and save it as record_YYYYMMDD_HHMMSS.wav in the output
directory. Ctrl+C aborts the session without writing a file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID := args[0]
		applyOutputFlag(cmd)

		sup, err := process.NewSupervisor()
		if err != nil {
			return err
		}
		defer sup.Close()

		svc, release, err := newService(sup, audio.LogNotifier{})
		if err != nil {
			return err
		}
		defer release()
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("Record command started", "device_id", deviceID, "duration", cfg.Audio.SessionDuration)
		filename, err := svc.RecordSync(ctx, deviceID)
		if errors.Is(err, context.Canceled) {
			slog.Info("Recording aborted, nothing written")
			return nil
		}
		if err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		fmt.Println(filename)
		return nil
	},
}

var continuousCmd = &cobra.Command{
	Use:   "continuous <device-id>",
	Short: "Record back-to-back sessions until interrupted",
	Long: `Record sessions one after another, each to its own WAV file. Ctrl+C requests
a stop: the session in flight is finished before the loop exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID := args[0]
		applyOutputFlag(cmd)

		sup, err := process.NewSupervisor()
		if err != nil {
			return err
		}
		defer sup.Close()

		svc, release, err := newService(sup, audio.LogNotifier{})
		if err != nil {
			return err
		}
		defer release()
		defer svc.Close()

		h, err := svc.StartContinuous(deviceID)
		if err != nil {
			return fmt.Errorf("failed to start continuous recording: %w", err)
		}
		slog.Info("Continuous recording started - Press Ctrl+C to stop", "handle_id", h.ID, "device_id", deviceID)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			slog.Info("Stopping after the current session...")
			if err := svc.StopContinuous(h.ID); err != nil && !errors.Is(err, audio.ErrNotRunning) {
				return err
			}
			select {
			case <-h.Done():
			case <-sigChan:
				slog.Warn("Second interrupt, aborting the current session")
			}
		case <-h.Done():
		}

		slog.Info("Continuous recording finished", "sessions", h.Iterations())
		if msg := svc.GetLastError(); msg != "" {
			return errors.New(msg)
		}
		return nil
	},
}

func applyOutputFlag(cmd *cobra.Command) {
	if dir, _ := cmd.Flags().GetString("output"); dir != "" {
		cfg.Output.Directory = dir
	}
}

func init() {
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	continuousCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/audiolibrelab/loopcap/internal/play"
	"github.com/audiolibrelab/loopcap/internal/process"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a recording",
	Long: `Play a WAV file with the first player found on PATH (vlc, mpv, ffplay, aplay,
afplay). A bare file name is looked up in the output directory. The player is
stopped when loopcap is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		if !filepath.IsAbs(file) && filepath.Dir(file) == "." && cfg.Output.Directory != "" {
			if _, err := os.Stat(file); err != nil {
				file = filepath.Join(cfg.Output.Directory, file)
			}
		}

		sup, err := process.NewSupervisor()
		if err != nil {
			return err
		}
		defer sup.Close()

		h, err := play.New(sup).Play(file)
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		fmt.Printf("Playing: %s\n", file)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-h.Done():
		case <-sigChan:
			slog.Info("Stopping playback")
		}
		return nil
	},
}

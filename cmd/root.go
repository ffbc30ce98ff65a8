package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/loopcap/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "loopcap",
	Short: "Record what your computer is playing",
	Long: `loopcap captures system audio output in loopback mode and writes it to
WAV files, one session at a time or continuously.

It also manages the helper processes of the desktop app (backend server,
transcription file monitor and its GUI), the session flag that tells them
where recordings go, and a control API the GUI drives.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel, nil)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Log.File != "" {
			setupLogging(verboseLevel, &lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: 3,
			})
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/loopcap.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(continuousCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(flagCmd)
	rootCmd.AddCommand(transcriptsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level. When file is set,
// records go to stderr and to the rotating log file.
func setupLogging(level int, file io.Writer) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if file != nil {
		out = io.MultiWriter(os.Stderr, file)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/transcripts"

	"github.com/spf13/cobra"
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "Browse transcripts in the session output directory",
}

var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transcripts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := flagstore.New(cfg.FlagPath()).Read()
		if err != nil {
			return err
		}
		files, err := transcripts.List(dir)
		if err != nil {
			return err
		}

		fmt.Printf("📝 Transcripts in %s (%d found)\n", dir, len(files))
		for _, f := range files {
			fmt.Printf("  %s  %8d  %s\n", f.Modified.Format("2006-01-02 15:04:05"), f.Size, f.Name)
		}
		return nil
	},
}

var transcriptsReadCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Print one transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := flagstore.New(cfg.FlagPath()).Read()
		if err != nil {
			return err
		}
		text, err := transcripts.ReadIn(dir, args[0])
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

var transcriptsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print transcripts as they are written",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := flagstore.New(cfg.FlagPath()).Read()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := transcripts.Watch(ctx, dir, func(path string) {
			fmt.Println(path)
		}); err != nil {
			return err
		}
		fmt.Printf("Watching %s - Press Ctrl+C to stop\n", dir)
		<-ctx.Done()
		return nil
	},
}

func init() {
	transcriptsCmd.AddCommand(transcriptsListCmd)
	transcriptsCmd.AddCommand(transcriptsReadCmd)
	transcriptsCmd.AddCommand(transcriptsWatchCmd)
}

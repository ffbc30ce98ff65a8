package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/audiolibrelab/loopcap/internal/flagstore"

	"github.com/spf13/cobra"
)

var flagCmd = &cobra.Command{
	Use:   "flag",
	Short: "Inspect or change the session flag",
	Long: `The session flag is a small file holding the output directory of the running
session. Helpers read it to find recordings; its absence means no session.`,
}

var flagWriteCmd = &cobra.Command{
	Use:   "write <dir>",
	Short: "Point the session flag at a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid directory %q: %w", args[0], err)
		}
		store := flagstore.New(cfg.FlagPath())
		if err := store.Write(dir); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", store.Path(), dir)
		return nil
	},
}

var flagReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the directory in the session flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := flagstore.New(cfg.FlagPath()).Read()
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var flagClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the session flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		return flagstore.New(cfg.FlagPath()).Clear()
	},
}

func init() {
	flagCmd.AddCommand(flagWriteCmd)
	flagCmd.AddCommand(flagReadCmd)
	flagCmd.AddCommand(flagClearCmd)
}

package cmd

import (
	"fmt"

	"github.com/audiolibrelab/loopcap/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View loopcap configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration and the session flag live",
	RunE: func(cmd *cobra.Command, args []string) error {
		file := cfgFile
		if file == "" {
			file = config.DefaultConfigFile()
		}
		fmt.Printf("config: %s\n", file)
		fmt.Printf("flag:   %s\n", cfg.FlagPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

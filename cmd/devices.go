package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/loopcap/internal/audio"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List output devices that can be recorded in loopback",
	Long: `List the render endpoints whose output can be captured. The id column is what
record and continuous expect; ids are only valid until the device set changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, release, err := newBackend()
		if err != nil {
			return err
		}
		defer release()

		devices, err := audio.NewCatalog(backend).ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		fmt.Printf("🔊 Loopback devices (%s, %s)\n", runtime.GOOS, backend.Type())
		fmt.Printf("═══════════════════════════════════════\n\n")
		if len(devices) == 0 {
			fmt.Println("  No devices found")
			return nil
		}
		for i, d := range devices {
			fmt.Printf("  %d. %s\n     id: %s\n", i+1, d.Name, d.ID)
		}
		return nil
	},
}

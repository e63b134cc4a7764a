package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand scans, like "scan".
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bt-le-central",
		Short: "Interactive Bluetooth LE Central",
		Long: `Interactive Bluetooth Low Energy (BLE) Central client:

- Scan and print nearby BLE peripherals as they are discovered
- Stop after the first discovery (--scan-once)
- Connect to the first connectable peripheral (--connect) or to a known one
- Explore the connected peripheral's GATT services from an interactive prompt`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		Args:    cobra.NoArgs,
		RunE:    runScan,
	}

	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().Duration("connect-timeout", 0, "Connection timeout (default from config, 30s)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output in the GATT prompt")

	addScanFlags(rootCmd)
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newConnectCmd())

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/futarchy-labs/futarchyd/internal/version"
)

var (
	// Global flags
	configFile string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "futarchyd",
	Short: "futarchyd - futarchy market daemon",
	Long: `futarchyd runs the market core of a futarchy governance protocol:
a priority queue of pending proposals, conditional outcome markets with
TWAP oracles, and finalization that compares each outcome against the
baseline. It exposes an HTTP JSON-RPC API and a websocket event stream.`,
	Version: version.Version,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

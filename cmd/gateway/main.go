package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "gateway [MAPPING_INI]",
	Short: "IEC 61850 to IEC 60870-5-104 protocol gateway",
	Long: `Gateway bridges a fleet of IEC 61850 substation devices (IEDs) to an
IEC 60870-5-104 telecontrol master. Monitoring data published by IEDs is
translated into 104 information objects; commands issued by the 104 master
are routed back as MMS select/operate sequences.

The positional argument is the point mapping INI file (default
config.local.ini). Runtime settings come from --config.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runGateway,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is ./gateway.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

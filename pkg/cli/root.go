// Package cli implements the vhostd command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	jsonOutput  bool
	pidFilePath string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vhostd",
	Short: "vhostd is a small virtual-hosting HTTP server",
	Long: `vhostd serves static files and canned responses on one or more ports,
optionally choosing the content by request host name.

Configuration can be provided via a YAML/JSON file, VHOSTD_* environment
variables, or flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	rootCmd.PersistentFlags().StringVar(&pidFilePath, "pid-file", "", "Path to PID file (default: ~/.vhostd/vhostd.pid)")

	initServeCmd()
	rootCmd.AddCommand(validateCmd, stopCmd, restartCmd, statusCmd, ipCmd, versionCmd)
}

// resolvedPIDPath returns the --pid-file value or the default location.
func resolvedPIDPath() string {
	if pidFilePath != "" {
		return pidFilePath
	}
	return DefaultPIDPath()
}

// Package main implements the sl command-line entry point: a root cobra
// command plus the run/status/rollback/validate subcommands that drive
// the iteration loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	output  string
	baseDir string
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "sl iterates on trading strategy proposals inside a sandbox",
	Long: `sl runs the autonomous strategy-iteration loop: it asks a proposer
for a candidate strategy, validates it statically, executes it in an
isolated sandbox, classifies the result, and tracks a running champion
across iterations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to stratloop.yaml (default: ./stratloop.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output format: table, json, markdown")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "directory holding history.jsonl, champion.json, failure_patterns.json")
}

// Execute runs the root command, exiting the process with its error's
// exit code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func main() {
	Execute()
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/manifest"
	"github.com/paicy-t/stratloop/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "run the static validator against a strategy source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	m, err := manifest.Load(cfg.FieldManifest.Path)
	if err != nil {
		return withExitCode(exitMisconfiguration, fmt.Errorf("loading field manifest: %w", err))
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	res, err := validator.Validate(context.Background(), string(src), m)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	if !res.Valid {
		for _, v := range res.Violations {
			fmt.Fprintf(cmd.OutOrStdout(), "line %d: %s\n", v.Line, v.Message)
		}
		return withExitCode(exitValidationFailure, fmt.Errorf("validation failed with %d violation(s)", len(res.Violations)))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		// config.Load reads the project file from STRATLOOP_CONFIG.
		if err := os.Setenv("STRATLOOP_CONFIG", cfgFile); err != nil {
			return nil, err
		}
	}
	overrides := &config.Config{Output: output, BaseDir: baseDir, Verbose: verbose}
	return config.Load(overrides)
}

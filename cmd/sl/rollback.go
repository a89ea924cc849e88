package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paicy-t/stratloop/internal/champion"
	"github.com/paicy-t/stratloop/internal/history"
)

var rollbackTo int

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "atomically replace the current champion with an earlier iteration",
	RunE:  runRollback,
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackTo, "to", -1, "iteration index to roll back to")
	rollbackCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	historyPath := filepath.Join(cfg.BaseDir, cfg.History.Path)
	recs, err := history.LoadAll(historyPath, nil)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	champPath := filepath.Join(cfg.BaseDir, "champion.json")
	tr, err := champion.Open(champPath, cfg.Champion, nil)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	if _, err := tr.RollbackTo(rollbackTo, recs); err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rolled back champion to iteration %d\n", rollbackTo)
	return nil
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paicy-t/stratloop/internal/champion"
	"github.com/paicy-t/stratloop/internal/formatter"
	"github.com/paicy-t/stratloop/internal/history"
)

var statusTailN int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the current champion and the last N iteration outcomes",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusTailN, "tail", 10, "number of recent iterations to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	champPath := filepath.Join(cfg.BaseDir, "champion.json")
	tr, err := champion.Open(champPath, cfg.Champion, nil)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	historyPath := filepath.Join(cfg.BaseDir, cfg.History.Path)
	recent, err := history.Tail(historyPath, statusTailN, nil)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	if cfg.Output == "json" {
		return formatter.RenderJSON(cmd.OutOrStdout(), map[string]any{
			"champion": tr.Current(),
			"recent":   recent,
		})
	}

	w := cmd.OutOrStdout()
	if c := tr.Current(); c != nil {
		fmt.Fprintf(w, "champion: iteration=%d fingerprint=%s established_at=%s probation_remaining=%d\n",
			c.Iteration, c.Fingerprint, c.EstablishedAt.Format("2006-01-02T15:04:05"), c.ProbationRemaining)
	} else {
		fmt.Fprintln(w, "champion: none")
	}

	if cfg.Output == "markdown" {
		md := formatter.NewMarkdown(w, "index", "outcome", "error_kind", "fingerprint")
		for _, rec := range recent {
			md.AddRow(fmt.Sprintf("%d", rec.Index), rec.Outcome.String(), string(rec.ErrorKind), rec.Fingerprint)
		}
		return nil
	}

	t := formatter.NewTable(w, "index", "outcome", "error_kind", "fingerprint")
	for _, rec := range recent {
		t.AddRow(fmt.Sprintf("%d", rec.Index), rec.Outcome.String(), string(rec.ErrorKind), rec.Fingerprint)
	}
	return t.Render()
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/alert"
	"github.com/paicy-t/stratloop/internal/atomicfile"
	"github.com/paicy-t/stratloop/internal/champion"
	"github.com/paicy-t/stratloop/internal/diversity"
	"github.com/paicy-t/stratloop/internal/executor"
	"github.com/paicy-t/stratloop/internal/feedback"
	"github.com/paicy-t/stratloop/internal/history"
	"github.com/paicy-t/stratloop/internal/manifest"
	"github.com/paicy-t/stratloop/internal/obslog"
	"github.com/paicy-t/stratloop/internal/proposer"
	"github.com/paicy-t/stratloop/internal/sandbox"
	"github.com/paicy-t/stratloop/internal/types"
)

var (
	runIterations  int
	runOpenAIKey   string
	runOpenAIModel string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start an iteration stream",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runIterations, "iterations", 1, "number of iterations to run")
	runCmd.Flags().StringVar(&runOpenAIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for the OpenAI-backed proposer")
	runCmd.Flags().StringVar(&runOpenAIModel, "openai-model", "", "chat model name (default: provider default)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	logger, err := obslog.New(cfg.Verbose)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}
	defer logger.Sync()

	m, err := manifest.Load(cfg.FieldManifest.Path)
	if err != nil {
		return withExitCode(exitMisconfiguration, fmt.Errorf("loading field manifest: %w", err))
	}

	h, err := history.Open(filepath.Join(cfg.BaseDir, cfg.History.Path), logger)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}
	defer h.Close()

	ct, err := champion.Open(filepath.Join(cfg.BaseDir, "champion.json"), cfg.Champion, logger)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	ft, err := feedback.OpenFailureTracker(filepath.Join(cfg.BaseDir, "failure_patterns.json"))
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}

	alertsLog, err := atomicfile.OpenAppendLog(filepath.Join(cfg.BaseDir, "alerts.log.jsonl"))
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}
	defer alertsLog.Close()

	div := diversity.NewMonitor(cfg.Diversity)
	am := alert.NewManager(cfg.Alerts, nil)
	am.Subscribe(func(ev types.AlertEvent) {
		if err := alertsLog.Append(ev); err != nil {
			logger.Warn("run: failed to persist alert", zap.Error(err))
		}
	})

	var p proposer.Proposer
	if runOpenAIKey == "" {
		return withExitCode(exitMisconfiguration, fmt.Errorf("run: no OpenAI API key configured (set --openai-api-key or OPENAI_API_KEY)"))
	}
	p = proposer.NewOpenAIProposer(runOpenAIKey, runOpenAIModel)

	runner, err := sandbox.NewDockerRunner(cfg.Sandbox, logger)
	if err != nil {
		return withExitCode(exitSandboxUnavailable, err)
	}
	if err := runner.CleanupOrphans(context.Background()); err != nil {
		logger.Warn("run: orphan cleanup failed", zap.Error(err))
	}

	stream := executor.NewStream(p, runner, m, h, ct, ft, div, am, cfg, logger)

	existing, err := history.LoadAll(filepath.Join(cfg.BaseDir, cfg.History.Path), logger)
	if err != nil {
		return withExitCode(exitMisconfiguration, err)
	}
	startIndex := len(existing)

	for i := 0; i < runIterations; i++ {
		rec, err := stream.Run(cmd.Context(), startIndex+i)
		if err != nil {
			return withExitCode(exitSandboxUnavailable, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "iteration %d: %s\n", rec.Index, rec.Outcome)
	}
	return nil
}

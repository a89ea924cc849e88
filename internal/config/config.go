// Package config loads stratloop's configuration by layering defaults,
// a home-directory file, a project-directory file, environment
// variables, and command-line flags, in that order of increasing
// precedence — the same chain the teacher CLI's config package applies,
// generalized to the iteration-loop's own sections.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source records which layer a resolved field's value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "home"
	SourceProject Source = "project"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// SandboxConfig controls the Docker-backed sandbox executor.
type SandboxConfig struct {
	Image          string `yaml:"image"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MemoryMB       int    `yaml:"memory_mb"`
	NanoCPUs       int64  `yaml:"nano_cpus"`
	PidsLimit      int64  `yaml:"pids_limit"`
	SeccompProfile string `yaml:"seccomp_profile"`
}

// RuntimeMonitorConfig controls background kill-policy sampling.
type RuntimeMonitorConfig struct {
	CheckIntervalMS  int     `yaml:"check_interval_ms"`
	CPUWindowSeconds int     `yaml:"cpu_window_seconds"`
	MaxCPUPercent    float64 `yaml:"max_cpu_percent"`
	MaxMemoryMB      int     `yaml:"max_memory_mb"`
	MaxOpenFiles     int     `yaml:"max_open_files"`
	MaxProcesses     int     `yaml:"max_processes"`
}

// ChampionConfig controls the Champion Tracker's promotion gates.
type ChampionConfig struct {
	ProbationPeriod             int     `yaml:"probation_period"`
	ProbationMinImprovement     float64 `yaml:"probation_min_improvement"`
	PostProbationMinImprovement float64 `yaml:"post_probation_min_improvement"`
	MinSharpe                   float64 `yaml:"min_sharpe"`
	CalmarRetention             float64 `yaml:"calmar_retention"`
	DrawdownTolerance           float64 `yaml:"drawdown_tolerance"`
}

// DiversityConfig controls the convergence monitor's window and thresholds.
type DiversityConfig struct {
	WindowSize           int     `yaml:"window_size"`
	MinSequenceDiversity float64 `yaml:"min_sequence_diversity"`
	MinPopulationDiv     float64 `yaml:"min_population_diversity"`
	ConvergenceWindow    int     `yaml:"convergence_window"`
	StagnationWindow     int     `yaml:"stagnation_window"`
	DiversityStride      int     `yaml:"diversity_stride"`
}

// AlertsConfig controls the Alert Manager's thresholded conditions and
// the per-kind suppression window.
type AlertsConfig struct {
	SuppressionWindowSeconds int     `yaml:"suppression_window_seconds"`
	HighMemoryPercent        float64 `yaml:"high_memory_percent"`
	DiversityCollapseTicks   int     `yaml:"diversity_collapse_ticks"`
	ChampionStalenessIters   int     `yaml:"champion_staleness_iterations"`
	LowSuccessRate           float64 `yaml:"low_success_rate"`
	LowSuccessRateWindow     int     `yaml:"low_success_rate_window"`
	OrphanedSandboxLimit     int     `yaml:"orphaned_sandbox_limit"`
}

// HistoryConfig controls the iteration journal.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// FieldManifestConfig points at the canonical field catalogue.
type FieldManifestConfig struct {
	Path string `yaml:"path"`
}

// Config is the fully resolved process configuration.
type Config struct {
	Output        string              `yaml:"output"`
	BaseDir       string              `yaml:"base_dir"`
	Verbose       bool                `yaml:"verbose"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	RuntimeMonitor RuntimeMonitorConfig `yaml:"runtime_monitor"`
	Champion      ChampionConfig      `yaml:"champion"`
	Diversity     DiversityConfig     `yaml:"diversity"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	History       HistoryConfig       `yaml:"history"`
	FieldManifest FieldManifestConfig `yaml:"field_manifest"`
}

// Default returns the built-in defaults for every field.
func Default() *Config {
	return &Config{
		Output:  "table",
		BaseDir: ".stratloop",
		Sandbox: SandboxConfig{
			Image:          "stratloop/sandbox-runner@sha256:0000000000000000000000000000000000000000000000000000000000000",
			TimeoutSeconds: 600,
			MemoryMB:       512,
			NanoCPUs:       1_000_000_000,
			PidsLimit:      64,
			SeccompProfile: "default",
		},
		RuntimeMonitor: RuntimeMonitorConfig{
			CheckIntervalMS:  500,
			CPUWindowSeconds: 10,
			MaxCPUPercent:    95,
			MaxMemoryMB:      512,
			MaxOpenFiles:     256,
			MaxProcesses:     32,
		},
		Champion: ChampionConfig{
			ProbationPeriod:             2,
			ProbationMinImprovement:     0.10,
			PostProbationMinImprovement: 0.05,
			MinSharpe:                   0.5,
			CalmarRetention:             0.90,
			DrawdownTolerance:           1.10,
		},
		Diversity: DiversityConfig{
			WindowSize:           10,
			MinSequenceDiversity: 0.5,
			MinPopulationDiv:     0.5,
			ConvergenceWindow:    10,
			StagnationWindow:     20,
			DiversityStride:      5,
		},
		Alerts: AlertsConfig{
			SuppressionWindowSeconds: 300,
			HighMemoryPercent:        80,
			DiversityCollapseTicks:   5,
			ChampionStalenessIters:   20,
			LowSuccessRate:           0.2,
			LowSuccessRateWindow:     20,
			OrphanedSandboxLimit:     3,
		},
		History: HistoryConfig{
			Path: "history.jsonl",
		},
		FieldManifest: FieldManifestConfig{
			Path: "field_manifest.yaml",
		},
	}
}

// Load resolves configuration from home file, project file, environment,
// then flagOverrides, in that order of increasing precedence.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if home, err := homeConfigPath(); err == nil {
		if err := mergeFromPath(cfg, home); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: loading home config: %w", ErrConfig, err)
		}
	}

	if proj, err := projectConfigPath(); err == nil {
		if err := mergeFromPath(cfg, proj); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: loading project config: %w", ErrConfig, err)
		}
	}

	applyEnv(cfg)

	if flagOverrides != nil {
		merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stratloop", "config.yaml"), nil
}

func projectConfigPath() (string, error) {
	if p := os.Getenv("STRATLOOP_CONFIG"); p != "" {
		return p, nil
	}
	return filepath.Join(".", "stratloop.yaml"), nil
}

func mergeFromPath(dst *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded Config
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	merge(dst, &loaded)
	return nil
}

// applyEnv overlays STRATLOOP_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STRATLOOP_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("STRATLOOP_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("STRATLOOP_VERBOSE"); v == "1" || v == "true" {
		cfg.Verbose = true
	}
	if v := os.Getenv("STRATLOOP_SANDBOX_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
}

// merge overlays every non-zero field of src onto dst, field by field,
// the same override-if-nonzero convention the teacher's config uses.
func merge(dst, src *Config) {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Sandbox.Image != "" {
		dst.Sandbox.Image = src.Sandbox.Image
	}
	if src.Sandbox.TimeoutSeconds != 0 {
		dst.Sandbox.TimeoutSeconds = src.Sandbox.TimeoutSeconds
	}
	if src.Sandbox.MemoryMB != 0 {
		dst.Sandbox.MemoryMB = src.Sandbox.MemoryMB
	}
	if src.Sandbox.NanoCPUs != 0 {
		dst.Sandbox.NanoCPUs = src.Sandbox.NanoCPUs
	}
	if src.Sandbox.PidsLimit != 0 {
		dst.Sandbox.PidsLimit = src.Sandbox.PidsLimit
	}
	if src.Sandbox.SeccompProfile != "" {
		dst.Sandbox.SeccompProfile = src.Sandbox.SeccompProfile
	}
	if src.RuntimeMonitor.CheckIntervalMS != 0 {
		dst.RuntimeMonitor.CheckIntervalMS = src.RuntimeMonitor.CheckIntervalMS
	}
	if src.RuntimeMonitor.CPUWindowSeconds != 0 {
		dst.RuntimeMonitor.CPUWindowSeconds = src.RuntimeMonitor.CPUWindowSeconds
	}
	if src.RuntimeMonitor.MaxCPUPercent != 0 {
		dst.RuntimeMonitor.MaxCPUPercent = src.RuntimeMonitor.MaxCPUPercent
	}
	if src.RuntimeMonitor.MaxMemoryMB != 0 {
		dst.RuntimeMonitor.MaxMemoryMB = src.RuntimeMonitor.MaxMemoryMB
	}
	if src.RuntimeMonitor.MaxOpenFiles != 0 {
		dst.RuntimeMonitor.MaxOpenFiles = src.RuntimeMonitor.MaxOpenFiles
	}
	if src.RuntimeMonitor.MaxProcesses != 0 {
		dst.RuntimeMonitor.MaxProcesses = src.RuntimeMonitor.MaxProcesses
	}
	if src.Champion.ProbationPeriod != 0 {
		dst.Champion.ProbationPeriod = src.Champion.ProbationPeriod
	}
	if src.Champion.ProbationMinImprovement != 0 {
		dst.Champion.ProbationMinImprovement = src.Champion.ProbationMinImprovement
	}
	if src.Champion.PostProbationMinImprovement != 0 {
		dst.Champion.PostProbationMinImprovement = src.Champion.PostProbationMinImprovement
	}
	if src.Champion.MinSharpe != 0 {
		dst.Champion.MinSharpe = src.Champion.MinSharpe
	}
	if src.Champion.CalmarRetention != 0 {
		dst.Champion.CalmarRetention = src.Champion.CalmarRetention
	}
	if src.Champion.DrawdownTolerance != 0 {
		dst.Champion.DrawdownTolerance = src.Champion.DrawdownTolerance
	}
	if src.Diversity.WindowSize != 0 {
		dst.Diversity.WindowSize = src.Diversity.WindowSize
	}
	if src.Diversity.MinSequenceDiversity != 0 {
		dst.Diversity.MinSequenceDiversity = src.Diversity.MinSequenceDiversity
	}
	if src.Diversity.MinPopulationDiv != 0 {
		dst.Diversity.MinPopulationDiv = src.Diversity.MinPopulationDiv
	}
	if src.Diversity.ConvergenceWindow != 0 {
		dst.Diversity.ConvergenceWindow = src.Diversity.ConvergenceWindow
	}
	if src.Diversity.StagnationWindow != 0 {
		dst.Diversity.StagnationWindow = src.Diversity.StagnationWindow
	}
	if src.Diversity.DiversityStride != 0 {
		dst.Diversity.DiversityStride = src.Diversity.DiversityStride
	}
	if src.Alerts.SuppressionWindowSeconds != 0 {
		dst.Alerts.SuppressionWindowSeconds = src.Alerts.SuppressionWindowSeconds
	}
	if src.Alerts.HighMemoryPercent != 0 {
		dst.Alerts.HighMemoryPercent = src.Alerts.HighMemoryPercent
	}
	if src.Alerts.DiversityCollapseTicks != 0 {
		dst.Alerts.DiversityCollapseTicks = src.Alerts.DiversityCollapseTicks
	}
	if src.Alerts.ChampionStalenessIters != 0 {
		dst.Alerts.ChampionStalenessIters = src.Alerts.ChampionStalenessIters
	}
	if src.Alerts.LowSuccessRate != 0 {
		dst.Alerts.LowSuccessRate = src.Alerts.LowSuccessRate
	}
	if src.Alerts.LowSuccessRateWindow != 0 {
		dst.Alerts.LowSuccessRateWindow = src.Alerts.LowSuccessRateWindow
	}
	if src.Alerts.OrphanedSandboxLimit != 0 {
		dst.Alerts.OrphanedSandboxLimit = src.Alerts.OrphanedSandboxLimit
	}
	if src.History.Path != "" {
		dst.History.Path = src.History.Path
	}
	if src.FieldManifest.Path != "" {
		dst.FieldManifest.Path = src.FieldManifest.Path
	}
}

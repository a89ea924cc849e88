package sandbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/config"
)

// KillReason names which policy triggered a container kill.
type KillReason string

const (
	KillReasonCPU       KillReason = "cpu_sustained_high"
	KillReasonMemory    KillReason = "memory_over_limit"
	KillReasonOpenFiles KillReason = "open_files_over_limit"
	KillReasonProcesses KillReason = "process_count_over_limit"
)

// SecurityEvent records one runtime-monitor-triggered kill for alerting.
type SecurityEvent struct {
	ContainerID string
	Reason      KillReason
	At          time.Time
}

// RuntimeMonitor samples container resource usage and kills any container
// that breaches its configured limits, the one shared mutable resource
// between the Sandbox Executor and the monitor being the watch map below.
type RuntimeMonitor struct {
	cli    *client.Client
	cfg    config.RuntimeMonitorConfig
	logger *zap.Logger

	mu      sync.Mutex
	watched map[string]*cpuWindow
	onKill  func(SecurityEvent)
}

type cpuWindow struct {
	samples []float64
	cap     int
}

func (w *cpuWindow) add(v float64) {
	w.samples = append(w.samples, v)
	if len(w.samples) > w.cap {
		w.samples = w.samples[len(w.samples)-w.cap:]
	}
}

func (w *cpuWindow) full() bool {
	return len(w.samples) >= w.cap
}

func (w *cpuWindow) allAbove(threshold float64) bool {
	if !w.full() {
		return false
	}
	for _, s := range w.samples {
		if s <= threshold {
			return false
		}
	}
	return true
}

// NewRuntimeMonitor constructs a monitor sharing the given Docker client.
func NewRuntimeMonitor(cli *client.Client, cfg config.RuntimeMonitorConfig, logger *zap.Logger) *RuntimeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuntimeMonitor{
		cli:     cli,
		cfg:     cfg,
		logger:  logger,
		watched: make(map[string]*cpuWindow),
	}
}

// OnKill registers a callback invoked whenever this monitor kills a
// container, so the caller can forward a security_killed AlertEvent.
func (m *RuntimeMonitor) OnKill(fn func(SecurityEvent)) {
	m.onKill = fn
}

// Watch begins polling containerID's stats every CheckIntervalMS, in its
// own goroutine, until ctx is canceled or Unwatch is called.
func (m *RuntimeMonitor) Watch(ctx context.Context, containerID string) {
	samplesPerWindow := 1
	if m.cfg.CheckIntervalMS > 0 {
		samplesPerWindow = (m.cfg.CPUWindowSeconds * 1000) / m.cfg.CheckIntervalMS
		if samplesPerWindow < 1 {
			samplesPerWindow = 1
		}
	}

	m.mu.Lock()
	m.watched[containerID] = &cpuWindow{cap: samplesPerWindow}
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Duration(m.cfg.CheckIntervalMS) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.Unwatch(containerID)
				return
			case <-ticker.C:
				if !m.sample(ctx, containerID) {
					return
				}
			}
		}
	}()
}

// Unwatch stops tracking containerID, e.g. after the Sandbox Executor has
// removed it.
func (m *RuntimeMonitor) Unwatch(containerID string) {
	m.mu.Lock()
	delete(m.watched, containerID)
	m.mu.Unlock()
}

// statsSnapshot is the subset of container.StatsResponse this monitor
// reads.
type statsSnapshot struct {
	CPUPercent  float64
	MemoryBytes uint64
	PidsCurrent uint64
}

func (m *RuntimeMonitor) sample(ctx context.Context, containerID string) bool {
	m.mu.Lock()
	w, ok := m.watched[containerID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	resp, err := m.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return false // container likely already exited; Watch's ctx cancellation will stop polling
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return true
	}
	snap := toSnapshot(raw)

	w.add(snap.CPUPercent)

	switch {
	case w.allAbove(m.cfg.MaxCPUPercent):
		m.kill(ctx, containerID, KillReasonCPU)
		return false
	case float64(snap.MemoryBytes)/(1024*1024) > float64(m.cfg.MaxMemoryMB):
		m.kill(ctx, containerID, KillReasonMemory)
		return false
	case m.cfg.MaxProcesses > 0 && int(snap.PidsCurrent) > m.cfg.MaxProcesses:
		m.kill(ctx, containerID, KillReasonProcesses)
		return false
	}
	return true
}

func toSnapshot(raw container.StatsResponse) statsSnapshot {
	var cpuPercent float64
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage - raw.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(raw.CPUStats.SystemUsage - raw.PreCPUStats.SystemUsage)
	if sysDelta > 0 && cpuDelta > 0 {
		cpuPercent = (cpuDelta / sysDelta) * float64(len(raw.CPUStats.CPUUsage.PercpuUsage)) * 100.0
	}
	return statsSnapshot{
		CPUPercent:  cpuPercent,
		MemoryBytes: raw.MemoryStats.Usage,
		PidsCurrent: raw.PidsStats.Current,
	}
}

func (m *RuntimeMonitor) kill(ctx context.Context, containerID string, reason KillReason) {
	m.logger.Warn("sandbox: killing container over resource limit",
		zap.String("container_id", containerID), zap.String("reason", string(reason)))
	_ = m.cli.ContainerKill(ctx, containerID, "SIGKILL")
	m.Unwatch(containerID)
	if m.onKill != nil {
		m.onKill(SecurityEvent{ContainerID: containerID, Reason: reason, At: time.Now()})
	}
}

package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/types"
)

// containerLabel tags every container stratloop creates, so orphan
// cleanup on startup can find and remove them without touching anything
// else on the host.
const containerLabel = "io.stratloop.sandbox"

const (
	harnessPath  = "/sandbox/strategy.py"
	scratchPath  = "/tmp/report.json"
)

// DockerRunner executes artifacts in short-lived, hardened containers via
// the Docker Engine API.
type DockerRunner struct {
	cli    *client.Client
	cfg    config.SandboxConfig
	logger *zap.Logger
	onStart func(containerID string)
	onStop  func(containerID string)
}

// NewDockerRunner builds a runner from the ambient Docker environment
// (DOCKER_HOST and friends), applying cfg's resource limits to every
// container it creates.
func NewDockerRunner(cfg config.SandboxConfig, logger *zap.Logger) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerRunner{cli: cli, cfg: cfg, logger: logger}, nil
}

// OnContainerStart/OnContainerStop let the Runtime Monitor register
// hooks so it can begin and end stats polling for a container's lifetime.
func (r *DockerRunner) OnContainerStart(fn func(containerID string)) { r.onStart = fn }
func (r *DockerRunner) OnContainerStop(fn func(containerID string))  { r.onStop = fn }

// CleanupOrphans force-removes any container left over from a previous,
// crashed run, identified by containerLabel.
func (r *DockerRunner) CleanupOrphans(ctx context.Context) error {
	list, err := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return fmt.Errorf("sandbox: listing containers: %w", err)
	}
	for _, c := range list {
		if c.Labels[containerLabel] != "true" {
			continue
		}
		r.logger.Warn("sandbox: removing orphaned container", zap.String("id", c.ID))
		_ = r.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true})
	}
	return nil
}

// Execute runs one artifact to completion inside a fresh container.
func (r *DockerRunner) Execute(ctx context.Context, artifact types.StrategyArtifact) (res ExecutionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = ExecutionResult{
				ExecutionSuccess: false,
				ErrorKind:        types.ErrorKindSandboxUnavail,
				ErrorDetail:      fmt.Sprintf("sandbox: recovered panic: %v", p),
			}
			err = nil
		}
	}()

	start := time.Now()
	name := "stratloop-" + uuid.NewString()

	resources := container.Resources{
		Memory:    int64(r.cfg.MemoryMB) * 1024 * 1024,
		NanoCPUs:  r.cfg.NanoCPUs,
		PidsLimit: &r.cfg.PidsLimit,
	}

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"seccomp=" + r.cfg.SeccompProfile, "no-new-privileges"},
		Resources:      resources,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=64m"},
		Mounts:         []mount.Mount{},
	}

	containerCfg := &container.Config{
		Image:  r.cfg.Image,
		User:   "65534:65534",
		Labels: map[string]string{containerLabel: "true"},
		Cmd:    []string{"python3", harnessPath},
	}

	created, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("sandbox: create: %w", err)
	}
	id := created.ID

	defer func() {
		if r.onStop != nil {
			r.onStop(id)
		}
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(removeCtx, id, container.RemoveOptions{Force: true})
	}()

	if err := r.copySource(ctx, id, artifact.Source); err != nil {
		return ExecutionResult{
			ExecutionSuccess: false,
			ErrorKind:        types.ErrorKindSandboxUnavail,
			ErrorDetail:      err.Error(),
		}, nil
	}

	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return ExecutionResult{
			ExecutionSuccess: false,
			ErrorKind:        types.ErrorKindSandboxUnavail,
			ErrorDetail:      err.Error(),
		}, nil
	}
	if r.onStart != nil {
		r.onStart(id)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	statusCh, errCh := r.cli.ContainerWait(timeoutCtx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if timeoutCtx.Err() != nil {
			return ExecutionResult{
				ExecutionSuccess: false,
				ErrorKind:        types.ErrorKindTimeout,
				ErrorDetail:      "sandbox execution exceeded timeout",
				Duration:         time.Since(start),
			}, nil
		}
		return ExecutionResult{
			ExecutionSuccess: false,
			ErrorKind:        types.ErrorKindSandboxUnavail,
			ErrorDetail:      err.Error(),
		}, nil
	case status := <-statusCh:
		blob, _ := r.readReport(ctx, id)
		success := status.StatusCode == 0
		return ExecutionResult{
			ExecutionSuccess: success,
			ReportBlob:       blob,
			Duration:         time.Since(start),
			ErrorKind:        errorKindForExit(success),
		}, nil
	}
}

func errorKindForExit(success bool) types.ErrorKind {
	if success {
		return types.ErrorKindNone
	}
	return types.ErrorKindExtraction
}

// copySource tars artifact.Source into a single-file archive and copies it
// into the container at harnessPath before the container starts.
func (r *DockerRunner) copySource(ctx context.Context, containerID, source string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: "strategy.py", Mode: 0o444, Size: int64(len(source))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(source)); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return r.cli.CopyToContainer(ctx, containerID, "/sandbox", &buf, container.CopyToContainerOptions{})
}

// readReport copies the report blob back out of the container's scratch
// tmpfs after it exits.
func (r *DockerRunner) readReport(ctx context.Context, containerID string) ([]byte, error) {
	rc, _, err := r.cli.CopyFromContainer(ctx, containerID, scratchPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	if _, err := tr.Next(); err != nil {
		return nil, err
	}
	return io.ReadAll(tr)
}

package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// WorkDir is where submission files land inside a container.
	WorkDir = "/workspace"

	labelSandbox = "coach.sandbox"
	labelSession = "coach.session"
)

// DockerBackend runs sandboxes as Docker containers.
type DockerBackend struct {
	client *client.Client
}

// NewDockerBackend connects to the Docker daemon configured by the
// environment and checks that it answers.
func NewDockerBackend(ctx context.Context) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}
	return &DockerBackend{client: cli}, nil
}

// Start runs an idle container with no network, no capabilities and the
// spec's resource limits. Submissions are exec'd into it later.
func (b *DockerBackend) Start(ctx context.Context, spec Spec) (string, error) {
	if err := b.pullIfMissing(ctx, spec.Image); err != nil {
		return "", err
	}

	memory := int64(spec.Limits.MemoryMB) << 20
	pids := spec.Limits.Pids
	resp, err := b.client.ContainerCreate(ctx,
		&container.Config{
			Image:           spec.Image,
			Cmd:             []string{"tail", "-f", "/dev/null"},
			WorkingDir:      WorkDir,
			NetworkDisabled: true,
			Labels: map[string]string{
				labelSandbox: "true",
				labelSession: spec.SessionID,
			},
		},
		&container.HostConfig{
			NetworkMode: "none",
			CapDrop:     []string{"ALL"},
			SecurityOpt: []string{"no-new-privileges"},
			IpcMode:     "private",
			Resources: container.Resources{
				Memory:     memory,
				MemorySwap: memory,
				NanoCPUs:   int64(spec.Limits.CPU * 1e9),
				PidsLimit:  &pids,
			},
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = b.client.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}

// Upload writes files into WorkDir, replacing files of the same name.
func (b *DockerBackend) Upload(ctx context.Context, containerID string, files map[string]string) error {
	archive, err := tarFiles(files, time.Now())
	if err != nil {
		return err
	}
	if err := b.client.CopyToContainer(ctx, containerID, WorkDir, archive, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

// tarFiles packs files into an uncompressed tar stream in name order.
func tarFiles(files map[string]string, modTime time.Time) (io.Reader, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), ModTime: modTime}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("tar %s: %w", name, err)
		}
		if _, err := io.WriteString(tw, content); err != nil {
			return nil, fmt.Errorf("tar %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// Exec runs cmd and waits for it to exit or for ctx to end.
func (b *DockerBackend) Exec(ctx context.Context, containerID string, cmd []string, limit int) (*Output, error) {
	created, err := b.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attached, err := b.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attached.Close()

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attached.Reader)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("read exec output: %w", err)
		}
	}
	elapsed := time.Since(start)

	inspected, err := b.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}
	return &Output{
		ExitCode:  inspected.ExitCode,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  elapsed,
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}

// Remove force-removes a container.
func (b *DockerBackend) Remove(ctx context.Context, containerID string) error {
	err := b.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Containers lists every container carrying the sandbox label, running or
// not.
func (b *DockerBackend) Containers(ctx context.Context) ([]string, error) {
	list, err := b.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelSandbox+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Close releases the Docker client.
func (b *DockerBackend) Close() error {
	return b.client.Close()
}

func (b *DockerBackend) pullIfMissing(ctx context.Context, ref string) error {
	if _, err := b.client.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	progress, err := b.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer progress.Close()
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
// Writes always report success so the producer is drained.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if c.limit > 0 && len(p) > room {
		if room > 0 {
			c.buf.Write(p[:room])
		}
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}

var _ Backend = (*DockerBackend)(nil)

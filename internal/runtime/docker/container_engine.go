package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

type containerEngine struct {
	cli    dockerClient
	limits conformance.RunLimits
}

// containerRun is what a finished container left behind.
type containerRun struct {
	id        string
	exitCode  int64
	stdout    string
	stderr    string
	duration  time.Duration
	timedOut  bool
	oomKilled bool
}

func newContainerEngine(cli dockerClient, limits conformance.RunLimits) *containerEngine {
	return &containerEngine{
		cli:    cli,
		limits: limits.Normalize(),
	}
}

func (c *containerEngine) pullImage(ctx context.Context, ref string) error {
	reader, err := c.cli.ImagePull(ctx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	return nil
}

// execute creates a container from image, copies files into workdir, runs
// command to completion and collects its exit status and logs. The returned
// cleanup removes the container; callers may still copy files out of it
// before calling cleanup.
func (c *containerEngine) execute(
	ctx context.Context,
	image string,
	workdir string,
	command []string,
	files []workspaceFile,
) (*containerRun, func(), error) {
	containerID, cleanup, err := c.createContainer(ctx, image, workdir, command)
	if err != nil {
		return nil, nil, err
	}

	run, err := c.startAndWait(ctx, containerID, workdir, files)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	run.id = containerID
	return run, cleanup, nil
}

func (c *containerEngine) startAndWait(ctx context.Context, containerID, workdir string, files []workspaceFile) (*containerRun, error) {
	if err := c.upload(ctx, containerID, workdir, files); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	status, err := c.awaitExit(ctx, containerID)
	if errors.Is(err, errTimeLimit) {
		return c.reapTimedOut(containerID, start)
	}
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	// The container is gone already; what it left is still worth collecting
	// if ctx was cancelled in the meantime.
	collectCtx := context.WithoutCancel(ctx)

	inspect, err := c.cli.ContainerInspect(collectCtx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}
	stdout, stderr, err := c.collectLogs(collectCtx, containerID)
	if err != nil {
		return nil, err
	}

	run := &containerRun{
		exitCode: status.StatusCode,
		stdout:   stdout,
		stderr:   stderr,
		duration: duration,
	}
	if inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.OOMKilled {
		// Docker reports the kill as 128+9. The local backend reports a
		// signal death as the negated signal number.
		run.oomKilled = true
		run.exitCode = -int64(syscall.SIGKILL)
	}
	return run, nil
}

var errTimeLimit = errors.New("time limit exceeded")

// awaitExit blocks until the container stops. It returns errTimeLimit when
// the configured time limit runs out first, and ctx's error when ctx ends.
func (c *containerEngine) awaitExit(ctx context.Context, containerID string) (container.WaitResponse, error) {
	waitCtx := ctx
	if c.limits.TimeLimit > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.limits.TimeLimit)
		defer cancel()
	}

	statusCh, errCh := c.cli.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)

	var waitErr error
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return status, fmt.Errorf("wait for container: %s", status.Error.Message)
		}
		return status, nil
	case waitErr = <-errCh:
	case <-waitCtx.Done():
		waitErr = waitCtx.Err()
	}

	switch {
	case ctx.Err() != nil:
		return container.WaitResponse{}, fmt.Errorf("wait for container: %w", ctx.Err())
	case waitCtx.Err() != nil:
		return container.WaitResponse{}, errTimeLimit
	default:
		return container.WaitResponse{}, fmt.Errorf("wait for container: %w", waitErr)
	}
}

// reapTimeout bounds the cleanup of a container that overran its limit.
const reapTimeout = 15 * time.Second

// reapTimedOut kills a container that hit the time limit and keeps whatever
// output it produced. Its exit status is meaningless and not recorded.
func (c *containerEngine) reapTimedOut(containerID string, start time.Time) (*containerRun, error) {
	duration := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), reapTimeout)
	defer cancel()

	noGrace := 0
	if err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &noGrace}); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("stop container after time limit: %w", err)
	}

	stdout, stderr, err := c.collectLogs(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return &containerRun{
		stdout:   stdout,
		stderr:   stderr,
		duration: duration,
		timedOut: true,
	}, nil
}

func (c *containerEngine) collectLogs(ctx context.Context, containerID string) (stdout, stderr string, err error) {
	logs, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("fetch logs: %w", err)
	}
	defer logs.Close()

	var outBuf, errBuf strings.Builder
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, logs); err != nil {
		return "", "", fmt.Errorf("demultiplex logs: %w", err)
	}
	return outBuf.String(), errBuf.String(), nil
}

func (c *containerEngine) createContainer(ctx context.Context, image, workdir string, cmd []string) (string, func(), error) {
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			NanoCPUs: 1_000_000_000,
		},
	}
	if c.limits.MemoryLimitBytes > 0 {
		hostConfig.Resources.Memory = c.limits.MemoryLimitBytes
		hostConfig.Resources.MemorySwap = c.limits.MemoryLimitBytes
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        image,
			Cmd:          cmd,
			AttachStdout: true,
			AttachStderr: true,
			WorkingDir:   workdir,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		_ = c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}

	return resp.ID, cleanup, nil
}

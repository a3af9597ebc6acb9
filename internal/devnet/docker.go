package devnet

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/compose-network/factory-deployer/internal/logger"
)

const logTail = "50"

type (
	DockerClient struct {
		cli    *client.Client
		logger *slog.Logger
	}

	ContainerOptions struct {
		Name       string
		Image      string
		Entrypoint []string
		Cmd        []string
		// Port inside the container published on the loopback interface.
		Port nat.Port
		// HostPort is the published port, empty for a random one.
		HostPort string
	}

	// Container is a started container and the host port its service is reachable on.
	Container struct {
		ID       string
		HostPort string
	}
)

// NewDockerClient creates a Docker client from the environment.
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerClient{cli: cli, logger: logger.Named("docker_client")}, nil
}

func (c *DockerClient) Close() error {
	return c.cli.Close()
}

// EnsureImage pulls imageName unless it is already present locally.
func (c *DockerClient) EnsureImage(ctx context.Context, imageName string) error {
	_, err := c.cli.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	return c.pullImage(ctx, imageName)
}

func (c *DockerClient) pullImage(ctx context.Context, imageName string) error {
	c.logger.With("image", imageName).Info("pulling docker image")

	resp, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer resp.Close()

	scanner := bufio.NewScanner(resp)
	var pullError error
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug(line)

		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Error != "" {
			pullError = fmt.Errorf("pull failed: %s", msg.Error)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull output: %w", err)
	}
	if pullError != nil {
		return pullError
	}

	c.logger.With("image", imageName).Info("docker image pulled successfully")
	return nil
}

// Start creates and starts a detached container publishing opts.Port on 127.0.0.1.
func (c *DockerClient) Start(ctx context.Context, opts ContainerOptions) (*Container, error) {
	config := &container.Config{
		Image:        opts.Image,
		Entrypoint:   opts.Entrypoint,
		Cmd:          opts.Cmd,
		ExposedPorts: nat.PortSet{opts.Port: struct{}{}},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			opts.Port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: opts.HostPort}},
		},
	}

	if opts.Name != "" {
		// A container left behind by an interrupted run would block the name.
		if err := c.cli.ContainerRemove(ctx, opts.Name, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("failed to remove stale container '%s': %w", opts.Name, err)
		}
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		c.Remove(context.WithoutCancel(ctx), resp.ID)
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := c.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		c.Remove(context.WithoutCancel(ctx), resp.ID)
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	var hostPort string
	if inspect.NetworkSettings != nil {
		if bindings := inspect.NetworkSettings.Ports[opts.Port]; len(bindings) > 0 {
			hostPort = bindings[0].HostPort
		}
	}
	if hostPort == "" {
		c.Remove(context.WithoutCancel(ctx), resp.ID)
		return nil, fmt.Errorf("container %s did not publish port %s", resp.ID[:12], opts.Port)
	}

	c.logger.
		With("container", resp.ID[:12]).
		With("image", opts.Image).
		With("host_port", hostPort).
		Info("container started")

	return &Container{ID: resp.ID, HostPort: hostPort}, nil
}

// Logs returns the last lines of the container output.
func (c *DockerClient) Logs(ctx context.Context, id string) string {
	reader, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: logTail})
	if err != nil {
		return ""
	}
	defer reader.Close()

	var out strings.Builder
	_, _ = stdcopy.StdCopy(&out, &out, io.LimitReader(reader, 64<<10))
	return strings.TrimSpace(out.String())
}

// Remove force-removes a container. Failures are logged only.
func (c *DockerClient) Remove(ctx context.Context, id string) {
	if err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		c.logger.With("container", id[:12]).With("err", err.Error()).Warn("failed to remove container")
		return
	}
	c.logger.With("container", id[:12]).Debug("container removed")
}

package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// defaultPingTimeout bounds Ping and the cleanup of throwaway containers.
const defaultPingTimeout = 5 * time.Second

// Client talks to the Docker daemon that holds the images to verify. It
// implements Runtime.
type Client struct {
	inner *client.Client
}

// NewClient connects to the daemon named by the DOCKER_* environment
// (DOCKER_HOST, DOCKER_TLS_VERIFY, DOCKER_CERT_PATH, as CI runners set
// them). Without DOCKER_HOST the local socket is located, so that
// "image verify" also works on Docker Desktop setups without the
// /var/run/docker.sock symlink.
//
// Returns a model.CLIError with ExitDockerNotRunning if no daemon address
// can be determined.
func NewClient() (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}

	if os.Getenv("DOCKER_HOST") == "" {
		host, err := detectDockerHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		opts = append(opts, client.WithHost(host))
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to create Docker client", err)
	}
	return &Client{inner: c}, nil
}

// detectDockerHost returns the first local Docker socket that exists.
// Windows hosts are expected to export DOCKER_HOST.
func detectDockerHost() (string, error) {
	paths := []string{"/var/run/docker.sock"}
	switch runtime.GOOS {
	case "linux":
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			// rootless daemon
			paths = append(paths, filepath.Join(dir, "docker.sock"))
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
	default:
		return "", fmt.Errorf("no default Docker socket on %s; set DOCKER_HOST", runtime.GOOS)
	}
	return detectUnixSocket(paths)
}

// detectUnixSocket returns the host URI of the first path that exists.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v; is Docker running?", paths)
}

// Ping verifies that the daemon answers within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "Docker daemon is not responding; is Docker running?", err)
	}
	return nil
}

// Close releases the connection to the daemon.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

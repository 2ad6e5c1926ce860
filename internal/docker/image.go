package docker

import (
	"context"
	"fmt"
	"os"
	"slices"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// DefaultEntrypoint is the entrypoint the action image must declare.
const DefaultEntrypoint = "/entrypoint.sh"

// DefaultPaths are the files the image must ship as executables.
var DefaultPaths = []string{"/entrypoint.sh", "/auto-changelog"}

// Runtime is the subset of the Docker Engine API needed to verify an image.
// Client implements it.
type Runtime interface {
	// Entrypoint returns the entrypoint configured in the image.
	Entrypoint(ctx context.Context, ref string) ([]string, error)

	// FileModes returns the mode of every path that exists in the image.
	// Missing paths are absent from the result.
	FileModes(ctx context.Context, ref string, paths []string) (map[string]os.FileMode, error)

	// Run executes cmd in a throwaway container of the image, replacing
	// its entrypoint, and returns the exit status.
	Run(ctx context.Context, ref string, cmd []string) (int64, error)
}

// VerifyOptions configures VerifyImage. Zero values select the defaults.
type VerifyOptions struct {
	Entrypoint string
	Paths      []string
}

// Check is the outcome of one contract check.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report collects the checks performed on an image.
type Report struct {
	Image  string  `json:"image"`
	Checks []Check `json:"checks"`
}

// Passed reports whether every check succeeded.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not succeed.
func (r *Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r *Report) add(name string, ok bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: detail})
}

// VerifyImage checks that the image ref:
//  1. declares opts.Entrypoint as its only entrypoint
//  2. contains every path in opts.Paths as an executable regular file
//  3. can run "git --version" successfully
//
// Failed checks are recorded in the Report. An error is returned only when
// the runtime itself fails, e.g. the image does not exist.
func VerifyImage(ctx context.Context, rt Runtime, ref string, opts VerifyOptions) (*Report, error) {
	if opts.Entrypoint == "" {
		opts.Entrypoint = DefaultEntrypoint
	}
	if len(opts.Paths) == 0 {
		opts.Paths = DefaultPaths
	}

	report := &Report{Image: ref}

	entrypoint, err := rt.Entrypoint(ctx, ref)
	if err != nil {
		return nil, err
	}
	if slices.Equal(entrypoint, []string{opts.Entrypoint}) {
		report.add("entrypoint", true, opts.Entrypoint)
	} else {
		report.add("entrypoint", false, fmt.Sprintf("want [%s], got %v", opts.Entrypoint, entrypoint))
	}

	modes, err := rt.FileModes(ctx, ref, opts.Paths)
	if err != nil {
		return nil, err
	}
	for _, path := range opts.Paths {
		mode, ok := modes[path]
		switch {
		case !ok:
			report.add("executable "+path, false, "file not found")
		case !mode.IsRegular():
			report.add("executable "+path, false, fmt.Sprintf("not a regular file (%s)", mode))
		default:
			report.add("executable "+path, mode&0o111 != 0, mode.String())
		}
	}

	status, err := rt.Run(ctx, ref, []string{"git", "--version"})
	if err != nil {
		report.add("git", false, err.Error())
	} else {
		report.add("git", status == 0, fmt.Sprintf("exit status %d", status))
	}
	return report, nil
}

// Entrypoint implements Runtime.
func (c *Client) Entrypoint(ctx context.Context, ref string) ([]string, error) {
	resp, err := c.inner.ImageInspect(ctx, ref)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, model.WrapCLIError(model.ExitImageCheckFailed, fmt.Sprintf("image %q not found", ref), err)
		}
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect image %q", ref), err)
	}
	if resp.Config == nil {
		return nil, nil
	}
	return resp.Config.Entrypoint, nil
}

// FileModes implements Runtime. The paths are read from a created but
// never started container.
func (c *Client) FileModes(ctx context.Context, ref string, paths []string) (map[string]os.FileMode, error) {
	id, err := c.create(ctx, ref, nil)
	if err != nil {
		return nil, err
	}
	defer c.remove(id)

	modes := make(map[string]os.FileMode, len(paths))
	for _, path := range paths {
		stat, err := c.inner.ContainerStatPath(ctx, id, path)
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				continue
			}
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to stat %s in image %q", path, ref), err)
		}
		modes[path] = stat.Mode
	}
	return modes, nil
}

// Run implements Runtime.
func (c *Client) Run(ctx context.Context, ref string, cmd []string) (int64, error) {
	id, err := c.create(ctx, ref, cmd)
	if err != nil {
		return 0, err
	}
	defer c.remove(id)

	if err := c.inner.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to start container for %q", ref), err)
	}

	statusCh, errCh := c.inner.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to wait for container of %q", ref), err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return 0, model.NewCLIError(model.ExitDockerNotRunning, status.Error.Message)
		}
		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// create creates a container of ref. A non-nil entrypoint replaces the
// image's entrypoint.
func (c *Client) create(ctx context.Context, ref string, entrypoint []string) (string, error) {
	cfg := &container.Config{Image: ref}
	if entrypoint != nil {
		cfg.Entrypoint = entrypoint
	}
	resp, err := c.inner.ContainerCreate(ctx, cfg, nil, nil, nil, "")
	if err != nil {
		return "", model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to create container from %q", ref), err)
	}
	return resp.ID, nil
}

// remove force-removes a container. It uses a fresh context so that cleanup
// still happens after the caller's context is cancelled.
func (c *Client) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	_ = c.inner.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

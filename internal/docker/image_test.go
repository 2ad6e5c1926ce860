package docker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime is an in-memory Runtime describing a single image.
type fakeRuntime struct {
	entrypoint []string
	files      map[string]os.FileMode
	gitStatus  int64
	runErr     error
	inspectErr error

	ran [][]string
}

func (f *fakeRuntime) Entrypoint(_ context.Context, _ string) ([]string, error) {
	return f.entrypoint, f.inspectErr
}

func (f *fakeRuntime) FileModes(_ context.Context, _ string, paths []string) (map[string]os.FileMode, error) {
	out := make(map[string]os.FileMode)
	for _, p := range paths {
		if mode, ok := f.files[p]; ok {
			out[p] = mode
		}
	}
	return out, nil
}

func (f *fakeRuntime) Run(_ context.Context, _ string, cmd []string) (int64, error) {
	f.ran = append(f.ran, cmd)
	return f.gitStatus, f.runErr
}

// goodImage returns a runtime for an image that satisfies the contract.
func goodImage() *fakeRuntime {
	return &fakeRuntime{
		entrypoint: []string{"/entrypoint.sh"},
		files: map[string]os.FileMode{
			"/entrypoint.sh":  0o755,
			"/auto-changelog": 0o755,
		},
	}
}

// TestVerifyImagePasses verifies a conforming image with default options.
func TestVerifyImagePasses(t *testing.T) {
	rt := goodImage()

	report, err := VerifyImage(context.Background(), rt, "auto-changelog:test", VerifyOptions{})
	require.NoError(t, err)

	assert.True(t, report.Passed(), "failed checks: %v", report.Failed())
	assert.Equal(t, "auto-changelog:test", report.Image)
	assert.Len(t, report.Checks, 4)
	assert.Equal(t, [][]string{{"git", "--version"}}, rt.ran)
}

// TestVerifyImageFailures verifies that each broken part of the contract
// is reported as its own failed check.
func TestVerifyImageFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeRuntime)
		failed string
	}{
		{
			name:   "shell form entrypoint",
			mutate: func(f *fakeRuntime) { f.entrypoint = []string{"/bin/sh", "-c", "/entrypoint.sh"} },
			failed: "entrypoint",
		},
		{
			name:   "no entrypoint",
			mutate: func(f *fakeRuntime) { f.entrypoint = nil },
			failed: "entrypoint",
		},
		{
			name:   "not executable",
			mutate: func(f *fakeRuntime) { f.files["/entrypoint.sh"] = 0o644 },
			failed: "executable /entrypoint.sh",
		},
		{
			name:   "missing binary",
			mutate: func(f *fakeRuntime) { delete(f.files, "/auto-changelog") },
			failed: "executable /auto-changelog",
		},
		{
			name:   "directory",
			mutate: func(f *fakeRuntime) { f.files["/auto-changelog"] = os.ModeDir | 0o755 },
			failed: "executable /auto-changelog",
		},
		{
			name:   "git missing",
			mutate: func(f *fakeRuntime) { f.gitStatus = 127 },
			failed: "git",
		},
		{
			name:   "git cannot start",
			mutate: func(f *fakeRuntime) { f.runErr = errors.New("exec: \"git\": executable file not found") },
			failed: "git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := goodImage()
			tt.mutate(rt)

			report, err := VerifyImage(context.Background(), rt, "img", VerifyOptions{})
			require.NoError(t, err)

			assert.False(t, report.Passed())
			failed := report.Failed()
			require.Len(t, failed, 1)
			assert.Equal(t, tt.failed, failed[0].Name)
			assert.NotEmpty(t, failed[0].Detail)
		})
	}
}

// TestVerifyImageCustomPaths verifies that only the requested paths are
// checked.
func TestVerifyImageCustomPaths(t *testing.T) {
	rt := goodImage()
	rt.files["/usr/local/bin/helper"] = 0o700

	report, err := VerifyImage(context.Background(), rt, "img", VerifyOptions{Paths: []string{"/usr/local/bin/helper"}})
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.Len(t, report.Checks, 3)
	assert.Equal(t, "executable /usr/local/bin/helper", report.Checks[1].Name)
}

// TestVerifyImageInspectError verifies that a runtime failure aborts
// verification.
func TestVerifyImageInspectError(t *testing.T) {
	rt := goodImage()
	rt.inspectErr = errors.New("no such image")

	_, err := VerifyImage(context.Background(), rt, "img", VerifyOptions{})
	require.Error(t, err)
	assert.Empty(t, rt.ran)
}

// TestDetectUnixSocket verifies that the first existing socket path wins.
func TestDetectUnixSocket(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "docker.sock")
	require.NoError(t, os.WriteFile(present, nil, 0o600))

	host, err := detectUnixSocket([]string{filepath.Join(dir, "missing.sock"), present})
	require.NoError(t, err)
	assert.Equal(t, "unix://"+present, host)

	_, err = detectUnixSocket([]string{filepath.Join(dir, "missing.sock")})
	assert.Error(t, err)
}

// TestDetectDockerHostRootless verifies that a rootless daemon socket is
// found through XDG_RUNTIME_DIR.
func TestDetectDockerHostRootless(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("rootless socket lookup is Linux only")
	}
	if _, err := os.Stat("/var/run/docker.sock"); err == nil {
		t.Skip("system socket takes precedence")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker.sock"), nil, 0o600))
	t.Setenv("XDG_RUNTIME_DIR", dir)

	host, err := detectDockerHost()
	require.NoError(t, err)
	assert.Equal(t, "unix://"+filepath.Join(dir, "docker.sock"), host)
}

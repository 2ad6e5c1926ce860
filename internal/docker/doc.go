// Package docker checks a built auto-changelog image against its packaging
// contract through the Docker Engine API.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Image verification: the configured entrypoint, the executable bit
//     of the shipped files, and a working git binary inside the image
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
// Verification talks to the daemon through the small Runtime interface so
// that it can be exercised without a daemon.
package docker

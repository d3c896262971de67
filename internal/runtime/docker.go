package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cme-labs/cme-init/internal/selector"
	"github.com/cme-labs/cme-init/pkg/errors"
	"github.com/cme-labs/cme-init/pkg/logger"
)

const (
	dockerCommand = "docker"
	podmanCommand = "podman"
)

// DockerCLI drives containers through the docker (or podman) command line.
type DockerCLI struct {
	bin string
	log logger.Logger
}

// NewDockerCLI returns a DockerCLI, preferring docker and falling back to
// podman when only podman is installed.
func NewDockerCLI() *DockerCLI {
	bin := dockerCommand
	if _, err := exec.LookPath(dockerCommand); err != nil {
		if _, err := exec.LookPath(podmanCommand); err == nil {
			bin = podmanCommand
		}
	}
	return &DockerCLI{bin: bin, log: logger.Log.With("runtime", bin)}
}

func (d *DockerCLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.bin, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Start launches the spec detached and returns the container ID.
func (d *DockerCLI) Start(ctx context.Context, spec LaunchSpec) (Handle, error) {
	args := []string{"run", "-d", "--name", spec.ContainerName}
	if spec.Privileged {
		args = append(args, "--privileged")
	}
	if spec.Network != "" {
		args = append(args, "--net="+spec.Network)
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m)
	}
	for _, dev := range spec.Devices {
		args = append(args, "--device="+dev)
	}
	args = append(args, spec.Image)

	d.log.Info("Launching service instance", "service", spec.Name, "args", strings.Join(args, " "))
	out, err := d.run(ctx, args...)
	if err != nil {
		return "", errors.New(errors.ErrCodeModuleLaunch, "start",
			fmt.Sprintf("service %s (%s): %s", spec.Name, spec.Image, out), err)
	}
	// docker run -d prints the container ID on the last line.
	lines := strings.Split(out, "\n")
	return Handle(strings.TrimSpace(lines[len(lines)-1])), nil
}

// Wait blocks until the container exits and returns its exit code.
func (d *DockerCLI) Wait(ctx context.Context, h Handle) (int, error) {
	out, err := d.run(ctx, "wait", string(h))
	if err != nil {
		return -1, fmt.Errorf("wait %s: %s: %w", h, out, err)
	}
	code, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return -1, fmt.Errorf("wait %s: unparseable status %q", h, out)
	}
	return code, nil
}

// Stop stops the container. Already-gone containers are not errors.
func (d *DockerCLI) Stop(ctx context.Context, h Handle) error {
	out, err := d.run(ctx, "stop", string(h))
	if err != nil && !absent(out) {
		return fmt.Errorf("stop %s: %s: %w", h, out, err)
	}
	return nil
}

// Remove deletes the container record. Already-gone containers are not errors.
func (d *DockerCLI) Remove(ctx context.Context, h Handle) error {
	out, err := d.run(ctx, "rm", string(h))
	if err != nil && !absent(out) {
		return fmt.Errorf("rm %s: %s: %w", h, out, err)
	}
	return nil
}

// Instances lists all containers, running or exited, whose name exactly
// matches one of names.
func (d *DockerCLI) Instances(ctx context.Context, names []string) ([]Handle, error) {
	var handles []Handle
	for _, name := range names {
		out, err := d.run(ctx, "ps", "-aq", "--filter", "name=^"+name+"$")
		if err != nil {
			return nil, fmt.Errorf("ps %s: %s: %w", name, out, err)
		}
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				handles = append(handles, Handle(line))
			}
		}
	}
	return handles, nil
}

// Artifacts parses `docker images` into catalog entries. The repository name
// is the service name; the tag is its version string.
func (d *DockerCLI) Artifacts(ctx context.Context) ([]selector.Artifact, error) {
	out, err := d.run(ctx, "images", "--format", "{{.Repository}} {{.Tag}}")
	if err != nil {
		return nil, errors.New(errors.ErrCodeCatalogQuery, "images", out, err)
	}
	var artifacts []selector.Artifact
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		artifacts = append(artifacts, selector.Artifact{Name: fields[0], Version: fields[1]})
	}
	return artifacts, nil
}

func absent(out string) bool {
	low := strings.ToLower(out)
	return strings.Contains(low, "no such container") ||
		strings.Contains(low, "is not running") ||
		strings.Contains(low, "no container with name")
}

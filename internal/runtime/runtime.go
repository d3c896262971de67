// Package runtime is the narrow process-isolation boundary the supervisor is
// written against: start a detached instance, wait on it, stop it, remove it.
// The docker CLI implementation lives here too; nothing above this package
// knows which container engine is underneath.
package runtime

import (
	"context"

	"github.com/cme-labs/cme-init/internal/selector"
	"github.com/cme-labs/cme-init/pkg/consts"
)

// Handle is an opaque reference to one launched service instance.
type Handle string

// LaunchSpec describes one service instance to start: the selected artifact
// plus the service's fixed resource bindings.
type LaunchSpec struct {
	Name          consts.ServiceName
	ContainerName string
	Image         string // image reference including tag
	Network       string
	Privileged    bool
	Mounts        []string // host:container bind specs
	Devices       []string // device file bindings
}

// Runtime launches and reaps isolated service processes.
type Runtime interface {
	// Start launches the spec detached and returns its handle.
	Start(ctx context.Context, spec LaunchSpec) (Handle, error)
	// Wait blocks until the instance terminates and returns its exit status.
	Wait(ctx context.Context, h Handle) (int, error)
	// Stop stops the instance. Unknown or already-stopped handles are not errors.
	Stop(ctx context.Context, h Handle) error
	// Remove deletes the instance record. Unknown handles are not errors.
	Remove(ctx context.Context, h Handle) error
	// Instances lists all existing instances, running or not, whose container
	// name matches one of the given names.
	Instances(ctx context.Context, names []string) ([]Handle, error)
}

// Catalog enumerates discoverable service artifacts.
type Catalog interface {
	// Artifacts returns every (name, version) pair the catalog knows about.
	Artifacts(ctx context.Context) ([]selector.Artifact, error)
}

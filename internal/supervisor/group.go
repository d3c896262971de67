// Package supervisor runs the fixed service group with fail-together
// semantics: the three layers form one application, so the first member to
// exit takes the whole group down, and the caller falls back to recovery.
// There is deliberately no restart policy here.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/cme-labs/cme-init/internal/monitor"
	"github.com/cme-labs/cme-init/internal/runtime"
	"github.com/cme-labs/cme-init/internal/selector"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/logger"
	"github.com/cme-labs/cme-init/pkg/protocol"
)

// Report is the outcome of one Launch attempt.
type Report struct {
	// Incomplete is set when at least one required service had no resolvable
	// artifact; nothing was launched in that case.
	Incomplete bool
	// Missing lists the unresolved services when Incomplete is set.
	Missing []consts.ServiceName
	// First identifies the first service observed to exit.
	First consts.ServiceName
	// ExitCode is the exit status of the first-exited service, for diagnostics
	// only; the teardown does not act on it.
	ExitCode int
}

type exitEvent struct {
	name consts.ServiceName
	code int
}

// Group supervises one launch attempt of the full service set.
type Group struct {
	cfg     *protocol.Config
	rt      runtime.Runtime
	catalog runtime.Catalog
	log     logger.Logger

	mu      sync.Mutex
	handles map[consts.ServiceName]runtime.Handle
}

// New creates a Group over the given runtime and artifact catalog.
func New(cfg *protocol.Config, rt runtime.Runtime, catalog runtime.Catalog) *Group {
	return &Group{
		cfg:     cfg,
		rt:      rt,
		catalog: catalog,
		log:     logger.Log.With("component", "supervisor"),
		handles: make(map[consts.ServiceName]runtime.Handle),
	}
}

// Launch resolves, starts and supervises the full service group. It blocks
// until either resolution comes up short (nothing is launched) or every
// launched instance has been waited on and torn down. The returned Report
// carries the identity of the first service to exit.
func (g *Group) Launch(ctx context.Context) (*Report, error) {
	// Clear anything a previous attempt left behind.
	g.StopAll(ctx)

	artifacts, err := g.catalog.Artifacts(ctx)
	if err != nil {
		monitor.LaunchOutcomes.WithLabelValues("catalog_error").Inc()
		return nil, err
	}

	res := selector.Resolve(g.translate(artifacts), consts.RequiredServices)
	if missing := res.Missing(consts.RequiredServices); len(missing) > 0 {
		g.log.Warn("Not all service artifacts available", "missing", names(missing))
		monitor.LaunchOutcomes.WithLabelValues("incomplete").Inc()
		return &Report{Incomplete: true, Missing: missing}, nil
	}

	if err := g.startAll(ctx, res); err != nil {
		monitor.LaunchOutcomes.WithLabelValues("start_failed").Inc()
		g.StopAll(ctx)
		return nil, err
	}
	monitor.LaunchOutcomes.WithLabelValues("launched").Inc()

	return g.superviseUntilFirstExit(ctx), nil
}

// translate maps catalog repository names onto service names via the
// configured per-service image, dropping artifacts no service claims.
func (g *Group) translate(artifacts []selector.Artifact) []selector.Artifact {
	out := make([]selector.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		svc, ok := g.cfg.ServiceByImage(a.Name)
		if !ok {
			continue
		}
		out = append(out, selector.Artifact{Name: string(svc.Name), Version: a.Version})
	}
	return out
}

func (g *Group) startAll(ctx context.Context, res selector.Resolution) error {
	for _, name := range consts.RequiredServices {
		svc, ok := g.cfg.Service(name)
		if !ok {
			return fmt.Errorf("service %s not configured", name)
		}
		version := res[name]
		spec := runtime.LaunchSpec{
			Name:          name,
			ContainerName: string(name),
			Image:         fmt.Sprintf("%s:%s", svc.Image, version.Original()),
			Network:       svc.Network,
			Privileged:    svc.Privileged,
			Mounts:        svc.Mounts,
			Devices:       svc.Devices,
		}
		h, err := g.rt.Start(ctx, spec)
		if err != nil {
			return err
		}
		g.mu.Lock()
		g.handles[name] = h
		g.mu.Unlock()
		g.log.Info("Service started", "service", name, "image", spec.Image, "handle", h)
	}
	return nil
}

// superviseUntilFirstExit runs one waiter per handle. The first waiter to see
// its instance terminate becomes the designated owner of group teardown; the
// others find the group already torn down and report their exit only.
func (g *Group) superviseUntilFirstExit(ctx context.Context) *Report {
	g.mu.Lock()
	tracked := make(map[consts.ServiceName]runtime.Handle, len(g.handles))
	for n, h := range g.handles {
		tracked[n] = h
	}
	g.mu.Unlock()

	var teardown sync.Once
	var first exitEvent
	var wg sync.WaitGroup

	for name, handle := range tracked {
		wg.Add(1)
		go func(name consts.ServiceName, handle runtime.Handle) {
			defer wg.Done()
			code, err := g.rt.Wait(ctx, handle)
			if err != nil {
				g.log.Warn("Wait ended with error", "service", name, "err", err)
			}
			g.log.Warn("Service terminated", "service", name, "code", code)
			monitor.ServiceExits.WithLabelValues(string(name)).Inc()
			// The waiter that observes the first exit owns the group teardown;
			// the later exits it provokes are only reported above.
			teardown.Do(func() {
				first = exitEvent{name: name, code: code}
				g.StopAll(ctx)
			})
		}(name, handle)
	}

	wg.Wait()

	g.mu.Lock()
	g.handles = make(map[consts.ServiceName]runtime.Handle)
	g.mu.Unlock()

	return &Report{First: first.name, ExitCode: first.code}
}

// StopAll unconditionally stops and removes every tracked handle plus any
// leftover instance of the managed services from previous runs. All failures
// are swallowed: this is the last line of cleanup and an already-gone
// instance is exactly what we want. Safe to call repeatedly and with nothing
// running.
func (g *Group) StopAll(ctx context.Context) {
	g.mu.Lock()
	tracked := make([]runtime.Handle, 0, len(g.handles))
	for _, h := range g.handles {
		tracked = append(tracked, h)
	}
	g.mu.Unlock()

	containerNames := make([]string, 0, len(consts.RequiredServices))
	for _, name := range consts.RequiredServices {
		containerNames = append(containerNames, string(name))
	}
	leftovers, err := g.rt.Instances(ctx, containerNames)
	if err != nil {
		g.log.Warn("Leftover scan failed", "err", err)
	}

	seen := make(map[runtime.Handle]bool)
	for _, h := range append(tracked, leftovers...) {
		if seen[h] {
			continue
		}
		seen[h] = true
		if err := g.rt.Stop(ctx, h); err != nil {
			g.log.Warn("Stop failed", "handle", h, "err", err)
		}
		if err := g.rt.Remove(ctx, h); err != nil {
			g.log.Warn("Remove failed", "handle", h, "err", err)
		}
	}
}

func names(in []consts.ServiceName) []string {
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = string(n)
	}
	return out
}

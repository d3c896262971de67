package reset

import (
	"context"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/cme-labs/cme-init/internal/marker"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/logger"
)

// Restarter takes a classified intent across the restart boundary. The
// controller never re-execs itself; it records the intent durably and asks
// the init system to take the machine down, which delivers the termination
// signal the shutdown coordinator acts on.
type Restarter interface {
	Restart(ctx context.Context, intent Intent) error
}

// SystemRestarter persists intent markers and invokes the system reboot or
// halt command, with the reboot syscall as a fallback when the command is
// unavailable.
type SystemRestarter struct {
	markers   *marker.Store
	rebootCmd []string
	haltCmd   []string
	log       logger.Logger
}

// NewSystemRestarter builds a SystemRestarter. Empty commands default to
// "reboot" and "halt".
func NewSystemRestarter(markers *marker.Store, rebootCmd, haltCmd []string) *SystemRestarter {
	if len(rebootCmd) == 0 {
		rebootCmd = []string{"reboot"}
	}
	if len(haltCmd) == 0 {
		haltCmd = []string{"halt"}
	}
	return &SystemRestarter{
		markers:   markers,
		rebootCmd: rebootCmd,
		haltCmd:   haltCmd,
		log:       logger.Log.With("component", "restarter"),
	}
}

// Restart writes the markers the next boot (or the shutdown path) consumes,
// then invokes the going-down command. Marker writes come first: once the
// machine starts going down there is no second chance to record intent.
func (r *SystemRestarter) Restart(ctx context.Context, intent Intent) error {
	if intent.RecoveryMode || intent.FactoryReset {
		if err := r.markers.Set(consts.RecoveryMarker); err != nil {
			r.log.Error("Recovery marker write failed", "err", err)
		}
	}
	if intent.PowerOff {
		if err := r.markers.Set(consts.PowerOffMarker); err != nil {
			r.log.Error("Power-off marker write failed", "err", err)
		}
	}

	argv := r.rebootCmd
	if intent.PowerOff {
		argv = r.haltCmd
	}
	r.log.Info("Requesting system restart", "intent", intent.Kind(), "cmd", argv[0])

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err == nil {
		return nil
	} else {
		r.log.Error("Restart command failed, falling back to reboot syscall",
			"cmd", argv[0], "err", err)
	}

	how := unix.LINUX_REBOOT_CMD_RESTART
	if intent.PowerOff {
		how = unix.LINUX_REBOOT_CMD_POWER_OFF
	}
	return unix.Reboot(how)
}

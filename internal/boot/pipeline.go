// Package boot walks the four-stage boot pipeline: gate on the recovery
// marker, check for pending updates, supervise the service group, and fall
// back to the recovery application. Every non-recovery exit path ends in the
// fallback stage; nothing in here retries.
package boot

import (
	"context"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/internal/marker"
	"github.com/cme-labs/cme-init/internal/monitor"
	"github.com/cme-labs/cme-init/internal/supervisor"
	"github.com/cme-labs/cme-init/internal/updates"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/fsm"
	"github.com/cme-labs/cme-init/pkg/logger"
	"github.com/cme-labs/cme-init/pkg/protocol"
)

// Panel is the slice of the hardware panel the pipeline drives.
type Panel interface {
	SetColor(hw.Color)
	SetSolid(solid bool)
}

// Supervisor launches and supervises the service group.
type Supervisor interface {
	Launch(ctx context.Context) (*supervisor.Report, error)
}

// Pipeline composes the boot stages over their collaborators.
type Pipeline struct {
	cfg      *protocol.Config
	markers  *marker.Store
	panel    Panel
	group    Supervisor
	recovery func(ctx context.Context) error
	log      logger.Logger
	machine  *fsm.Machine
}

// New assembles the pipeline. recovery blocks until the recovery application
// exits; its only result this pipeline consumes is that it returned.
func New(cfg *protocol.Config, markers *marker.Store, panel Panel, group Supervisor, recovery func(ctx context.Context) error) (*Pipeline, error) {
	machine, err := fsm.New(
		fsm.Stage(consts.StageRecoveryGate),
		fsm.Stage(consts.StageUpdateCheck),
		fsm.Stage(consts.StageModuleSupervision),
		fsm.Stage(consts.StageRecoveryFallback),
	)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		markers:  markers,
		panel:    panel,
		group:    group,
		recovery: recovery,
		log:      logger.Log.With("component", "boot"),
		machine:  machine,
	}
	return p, nil
}

// Stage returns the stage the pipeline is currently in.
func (p *Pipeline) Stage() consts.BootStage {
	return consts.BootStage(p.machine.Current())
}

// Run traverses the stages once. Stage failures are absorbed by design; the
// only returned errors are pipeline programming faults.
func (p *Pipeline) Run(ctx context.Context) error {
	p.machine.OnEnter(fsm.Stage(consts.StageRecoveryGate), p.recoveryGate(ctx))
	p.machine.OnEnter(fsm.Stage(consts.StageUpdateCheck), p.updateCheck(ctx))
	p.machine.OnEnter(fsm.Stage(consts.StageModuleSupervision), p.moduleSupervision(ctx))
	p.machine.OnEnter(fsm.Stage(consts.StageRecoveryFallback), p.recoveryFallback(ctx))
	return p.machine.Run()
}

// recoveryGate consumes the durable recovery marker; when present the update
// and supervision stages are bypassed entirely.
func (p *Pipeline) recoveryGate(ctx context.Context) fsm.Action {
	return func() (fsm.Stage, error) {
		monitor.StageTransitions.WithLabelValues(string(consts.StageRecoveryGate)).Inc()

		requested, err := p.markers.Consume(consts.RecoveryMarker)
		if err != nil {
			p.log.Warn("Recovery marker check failed, booting normally", "err", err)
		}
		if requested {
			p.log.Info("Recovery mode boot requested")
			return fsm.Stage(consts.StageRecoveryFallback), nil
		}
		p.log.Info("Normal boot mode requested")
		return "", nil
	}
}

// updateCheck reports pending update packages. Applying them is out of scope;
// the stage always proceeds.
func (p *Pipeline) updateCheck(ctx context.Context) fsm.Action {
	return func() (fsm.Stage, error) {
		monitor.StageTransitions.WithLabelValues(string(consts.StageUpdateCheck)).Inc()
		p.log.Info("Checking for updates")

		packages, err := updates.Scan(p.cfg.Paths.UpdateDir, p.cfg.Paths.UpdateGlob)
		if err != nil {
			p.log.Warn("Update scan failed", "err", err)
			return "", nil
		}
		if len(packages) == 0 {
			p.log.Info("No updates found")
		} else {
			p.log.Info("Updates pending installation", "count", len(packages), "packages", packages)
		}
		return "", nil
	}
}

// moduleSupervision launches the service group and blocks until it ends. A
// service exiting is the expected way this stage finishes, not a fault.
func (p *Pipeline) moduleSupervision(ctx context.Context) fsm.Action {
	return func() (fsm.Stage, error) {
		monitor.StageTransitions.WithLabelValues(string(consts.StageModuleSupervision)).Inc()
		p.log.Info("Launching modules")

		p.panel.SetColor(hw.ColorGreen)
		p.panel.SetSolid(true)

		report, err := p.group.Launch(ctx)
		switch {
		case err != nil:
			p.log.Warn("Module launch failed", "err", err)
		case report.Incomplete:
			p.log.Warn("Application modules not found", "missing", len(report.Missing))
		default:
			p.log.Warn("Application modules exited", "first", report.First, "code", report.ExitCode)
		}
		return "", nil
	}
}

// recoveryFallback blocks on the recovery application; when it returns the
// pipeline is over and the caller proceeds to teardown.
func (p *Pipeline) recoveryFallback(ctx context.Context) fsm.Action {
	return func() (fsm.Stage, error) {
		monitor.StageTransitions.WithLabelValues(string(consts.StageRecoveryFallback)).Inc()
		p.log.Info("Launching recovery module")

		p.panel.SetColor(hw.ColorRed)
		p.panel.SetSolid(true)

		if err := p.recovery(ctx); err != nil {
			p.log.Error("Recovery module ended with error", "err", err)
		}
		return "", nil
	}
}

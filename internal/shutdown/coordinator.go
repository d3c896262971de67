// Package shutdown funnels every way the controller can terminate into one
// exactly-once teardown.
//
// Two triggers reach it: the asynchronous termination signal and the normal
// end of the boot pipeline. Whichever arrives first runs the body; a
// concurrent or repeated trigger blocks until that run completes and then
// does nothing. The teardown does not stop supervised containers: the next
// boot's launch clears leftovers before starting fresh.
package shutdown

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/internal/marker"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/logger"
)

// PanelControl is the slice of the hardware panel the coordinator drives.
type PanelControl interface {
	SetColor(hw.Color)
	SetSolid(solid bool)
	AssertStandby()
	Close()
}

// Coordinator performs the ordered, best-effort teardown of indicators,
// power state and process exit.
type Coordinator struct {
	panel   PanelControl
	markers *marker.Store
	closers []io.Closer
	sleep   func(time.Duration)
	exit    func(code int)
	log     logger.Logger
	once    sync.Once
}

// Option adjusts a Coordinator, mainly for tests.
type Option func(*Coordinator)

// WithSleep replaces the standby-hold sleep.
func WithSleep(f func(time.Duration)) Option {
	return func(c *Coordinator) { c.sleep = f }
}

// WithExit replaces process termination.
func WithExit(f func(int)) Option {
	return func(c *Coordinator) { c.exit = f }
}

// New creates a Coordinator. The closers are extra hardware claims (such as
// the reset-button line) released after the panel.
func New(panel PanelControl, markers *marker.Store, closers []io.Closer, opts ...Option) *Coordinator {
	c := &Coordinator{
		panel:   panel,
		markers: markers,
		closers: closers,
		sleep:   time.Sleep,
		exit:    func(code int) { os.Exit(code) },
		log:     logger.Log.With("component", "shutdown"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger runs the teardown body exactly once. Concurrent callers block until
// the body has completed. It does not return on the first call (the body ends
// in process exit) unless exit has been replaced.
func (c *Coordinator) Trigger(reason string) {
	c.once.Do(func() { c.teardown(reason) })
}

// teardown order matters: the power-off marker must be consumed and the
// standby line held before any hardware claim is released, because the marker
// is the only thing distinguishing halt from reboot and a later boot must not
// see stale intent.
func (c *Coordinator) teardown(reason string) {
	c.log.Info("System software exiting", "reason", reason)

	c.panel.SetColor(hw.ColorRed)
	c.panel.SetSolid(false)

	present, err := c.markers.Consume(consts.PowerOffMarker)
	if err != nil {
		c.log.Warn("Power-off marker consume failed", "err", err)
	}
	if present {
		c.log.Info("Power-off pending, asserting standby")
		c.panel.AssertStandby()
		c.sleep(consts.StandbyHold)
	}

	c.panel.Close()
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			c.log.Warn("Resource release failed", "err", err)
		}
	}

	c.exit(0)
}

// Package reset turns physical reset-button holds into escalating recovery
// intents. The classifier is a pure state machine over an injected clock and
// input line so the timing logic is testable without hardware; the watcher
// binds it to the real edge source and the restarter.
package reset

import (
	"time"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/internal/monitor"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/errors"
	"github.com/cme-labs/cme-init/pkg/logger"
	"github.com/cme-labs/cme-init/pkg/protocol"
)

// Intent is the immutable result of one completed hold.
type Intent struct {
	PowerOff     bool
	RecoveryMode bool
	FactoryReset bool
}

// Kind names the single escalation level the intent represents.
func (i Intent) Kind() string {
	switch {
	case i.PowerOff:
		return "power-off"
	case i.FactoryReset:
		return "factory"
	case i.RecoveryMode:
		return "recovery"
	default:
		return "reboot"
	}
}

// Clock abstracts time so the poll loop can run against a synthetic clock.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// StatusPanel is the slice of the panel the classifier drives.
type StatusPanel interface {
	SetColor(hw.Color)
	SetSolid(solid bool)
}

// Classifier measures one reset-button hold and emits the intent for the
// highest threshold crossed.
type Classifier struct {
	timings protocol.ResetTimings
	clock   Clock
	input   hw.InputLine
	panel   StatusPanel
	log     logger.Logger
	state   consts.HoldState
}

// NewClassifier builds a Classifier. Unordered thresholds are a configuration
// error: they would make states unreachable, so they are rejected here as
// well as at config validation.
func NewClassifier(t protocol.ResetTimings, clock Clock, input hw.InputLine, panel StatusPanel) (*Classifier, error) {
	if !(t.HoldReboot < t.HoldRecovery && t.HoldRecovery < t.HoldFactory) {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "classifier",
			"hold thresholds must be strictly increasing", nil)
	}
	return &Classifier{
		timings: t,
		clock:   clock,
		input:   input,
		panel:   panel,
		log:     logger.Log.With("component", "reset"),
		state:   consts.HoldIdle,
	}, nil
}

// State returns the classifier's current hold state.
func (c *Classifier) State() consts.HoldState {
	return c.state
}

// Classify runs once per confirmed falling edge. It re-samples the input
// after the software debounce window, then polls until the button is released
// or the power-off threshold is crossed, and reports the resulting intent.
// ok is false only for a debounce-rejected false trigger.
//
// This routine must never raise past its caller: a real hold is asserted by
// hardware timing, so any internal failure degrades to a plain reboot intent
// rather than leaving the device unresponsive.
func (c *Classifier) Classify() (intent Intent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Classifier panic, emitting plain reboot", "panic", r)
			intent = Intent{}
			ok = true
		}
	}()

	c.state = consts.HoldDebouncing
	c.clock.Sleep(c.timings.Debounce)
	if high, err := c.input.Level(); err == nil && high {
		// Input already back at the released level: a bounce reached the edge
		// generator despite the driver-level window. Not a reset.
		c.state = consts.HoldIdle
		return Intent{}, false
	} else if err != nil {
		c.log.Warn("Input re-sample failed, trusting the edge", "err", err)
	}

	c.log.Info("Reset detected")
	c.panel.SetColor(hw.ColorGreen)
	c.panel.SetSolid(false)
	c.state = consts.HoldReboot

	start := c.clock.Now()
	var recovery, factory, powerOff bool

	for {
		high, err := c.input.Level()
		if err != nil {
			c.log.Warn("Input read failed, ending hold measurement", "err", err)
			break
		}
		if high {
			break // released
		}

		t := c.clock.Now().Sub(start)
		if t > c.timings.HoldReboot && !recovery {
			c.log.Info("Reset to recovery mode detected")
			recovery = true
			c.state = consts.HoldRecovery
			c.panel.SetColor(hw.ColorRed)
		}
		if t > c.timings.HoldRecovery && !factory {
			c.log.Info("Reset to factory defaults detected")
			factory = true
			c.state = consts.HoldFactory
			c.panel.SetSolid(true)
		}
		if t > c.timings.HoldFactory {
			// Power-off wins over everything crossed on the way here: the
			// device is going down, not rebooting into a mode.
			c.log.Info("Power off/standby detected")
			powerOff = true
			recovery = false
			factory = false
			c.state = consts.HoldPowerOff
			break
		}

		c.clock.Sleep(c.timings.PollInterval)
	}

	held := c.clock.Now().Sub(start)
	monitor.HoldDuration.Observe(held.Seconds())

	intent = Intent{PowerOff: powerOff, RecoveryMode: recovery, FactoryReset: factory}
	monitor.ResetIntents.WithLabelValues(intent.Kind()).Inc()
	c.log.Info("Hold classified", "held", held, "intent", intent.Kind())

	if !powerOff {
		c.state = consts.HoldIdle
	}
	return intent, true
}

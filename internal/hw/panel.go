// Package hw owns the controller's hardware signal lines.
//
// Every output is mutated from more than one goroutine (classifier, pipeline,
// shutdown), but all writers set absolute values, so the only discipline the
// panel enforces is ownership: components receive the one Panel instance and
// never touch lines directly.
package hw

import (
	"context"

	"github.com/cme-labs/cme-init/pkg/logger"
)

// OutputLine is a single writable hardware signal.
type OutputLine interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error
	// Close releases the line claim.
	Close() error
}

// InputLine is a single readable hardware signal.
type InputLine interface {
	// Level reports whether the line is high.
	Level() (bool, error)
	// Close releases the line claim.
	Close() error
}

// EdgeSource delivers debounced falling edges of an input line.
type EdgeSource interface {
	// WaitFall blocks until the next falling edge or context cancellation.
	WaitFall(ctx context.Context) error
	// Close releases the line claim.
	Close() error
}

// Color of the status indicator.
type Color int

const (
	ColorGreen Color = iota
	ColorRed
)

// Panel is the single owned indicator/power controller. All operations are
// absolute sets; failures are logged and swallowed because indicator writes
// must never take the boot path down.
type Panel struct {
	solid   OutputLine
	green   OutputLine
	standby OutputLine
	log     logger.Logger
}

// NewPanel assembles a Panel from its three output lines.
func NewPanel(solid, green, standby OutputLine, log logger.Logger) *Panel {
	return &Panel{solid: solid, green: green, standby: standby, log: log}
}

// SetColor sets the indicator color.
func (p *Panel) SetColor(c Color) {
	if err := p.green.Set(c == ColorGreen); err != nil {
		p.log.Warn("status color write failed", "color", c, "err", err)
	}
}

// SetSolid switches the indicator between solid (true) and blinking (false).
func (p *Panel) SetSolid(solid bool) {
	if err := p.solid.Set(solid); err != nil {
		p.log.Warn("status blink write failed", "solid", solid, "err", err)
	}
}

// AssertStandby raises the power-control line. The caller must keep the
// process alive for at least consts.StandbyHold afterwards for the power MCU
// to latch the request.
func (p *Panel) AssertStandby() {
	if err := p.standby.Set(true); err != nil {
		p.log.Error("standby assert failed", "err", err)
	}
}

// Close releases all line claims, best-effort.
func (p *Panel) Close() {
	for _, l := range []OutputLine{p.solid, p.green, p.standby} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			p.log.Warn("line release failed", "err", err)
		}
	}
}

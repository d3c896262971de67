package hw

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cme-labs/cme-init/pkg/errors"
)

// SysfsGPIO claims lines through /sys/class/gpio. The kernel interface is a
// set of attribute files per exported line: direction, value and, for inputs,
// edge. Falling edges are delivered by poll(2) with POLLPRI on the value fd.
type SysfsGPIO struct {
	root string
}

// NewSysfsGPIO returns a SysfsGPIO on the default sysfs mount.
func NewSysfsGPIO() *SysfsGPIO {
	return &SysfsGPIO{root: "/sys/class/gpio"}
}

// NewSysfsGPIOAt returns a SysfsGPIO rooted elsewhere, for tests.
func NewSysfsGPIOAt(root string) *SysfsGPIO {
	return &SysfsGPIO{root: root}
}

func (g *SysfsGPIO) linePath(pin int) string {
	return filepath.Join(g.root, fmt.Sprintf("gpio%d", pin))
}

func (g *SysfsGPIO) export(pin int) error {
	if _, err := os.Stat(g.linePath(pin)); err == nil {
		return nil // already exported, e.g. by a previous boot attempt
	}
	err := os.WriteFile(filepath.Join(g.root, "export"), []byte(strconv.Itoa(pin)), 0o200)
	if err != nil && !os.IsExist(err) {
		return errors.New(errors.ErrCodeGPIOSetup, "export",
			fmt.Sprintf("gpio%d", pin), err)
	}
	return nil
}

func (g *SysfsGPIO) writeAttr(pin int, attr, val string) error {
	p := filepath.Join(g.linePath(pin), attr)
	if err := os.WriteFile(p, []byte(val), 0o644); err != nil {
		return errors.New(errors.ErrCodeGPIOSetup, "configure", p, err)
	}
	return nil
}

// Output claims pin as an output, driven to the given initial level.
func (g *SysfsGPIO) Output(pin int, initialHigh bool) (OutputLine, error) {
	if err := g.export(pin); err != nil {
		return nil, err
	}
	// Writing "high"/"low" to direction sets direction and level atomically.
	dir := "low"
	if initialHigh {
		dir = "high"
	}
	if err := g.writeAttr(pin, "direction", dir); err != nil {
		return nil, err
	}
	return &sysfsOutput{gpio: g, pin: pin}, nil
}

// Button claims pin as an active-low input delivering falling edges, with a
// driver-level bounce window: edges arriving within bounce of the previous
// reported edge are swallowed.
func (g *SysfsGPIO) Button(pin int, bounce time.Duration) (EdgeSource, InputLine, error) {
	if err := g.export(pin); err != nil {
		return nil, nil, err
	}
	if err := g.writeAttr(pin, "direction", "in"); err != nil {
		return nil, nil, err
	}
	if err := g.writeAttr(pin, "edge", "falling"); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(g.linePath(pin), "value"))
	if err != nil {
		return nil, nil, errors.New(errors.ErrCodeGPIOSetup, "open",
			fmt.Sprintf("gpio%d/value", pin), err)
	}
	in := &sysfsInput{gpio: g, pin: pin, f: f}
	return &sysfsEdges{in: in, bounce: bounce}, in, nil
}

type sysfsOutput struct {
	gpio *SysfsGPIO
	pin  int
}

func (o *sysfsOutput) Set(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	return o.gpio.writeAttr(o.pin, "value", v)
}

func (o *sysfsOutput) Close() error {
	// Unexport releases the claim; a line that is already gone is fine.
	err := os.WriteFile(filepath.Join(o.gpio.root, "unexport"),
		[]byte(strconv.Itoa(o.pin)), 0o200)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type sysfsInput struct {
	gpio *SysfsGPIO
	pin  int
	f    *os.File
}

// Level reports whether the line reads high.
func (i *sysfsInput) Level() (bool, error) {
	buf := make([]byte, 8)
	n, err := i.f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return false, err
	}
	return strings.TrimSpace(string(buf[:n])) == "1", nil
}

func (i *sysfsInput) Close() error {
	_ = i.f.Close()
	err := os.WriteFile(filepath.Join(i.gpio.root, "unexport"),
		[]byte(strconv.Itoa(i.pin)), 0o200)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type sysfsEdges struct {
	in       *sysfsInput
	bounce   time.Duration
	lastEdge time.Time
}

// WaitFall blocks until a falling edge at least one bounce window after the
// previous one. The poll is sliced so context cancellation is honored.
func (e *sysfsEdges) WaitFall(ctx context.Context) error {
	// Consume the pending interrupt state before waiting.
	if _, err := e.in.Level(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds := []unix.PollFd{{
			Fd:     int32(e.in.f.Fd()),
			Events: unix.POLLPRI | unix.POLLERR,
		}}
		n, err := unix.Poll(fds, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue // timeout slice, re-check ctx
		}
		if fds[0].Revents&unix.POLLPRI == 0 {
			continue
		}
		now := time.Now()
		if !e.lastEdge.IsZero() && now.Sub(e.lastEdge) < e.bounce {
			// Contact bounce from the edge we already reported.
			if _, err := e.in.Level(); err != nil {
				return err
			}
			continue
		}
		high, err := e.in.Level()
		if err != nil {
			return err
		}
		if high {
			continue // raced a release, not a press
		}
		e.lastEdge = now
		return nil
	}
}

func (e *sysfsEdges) Close() error {
	return e.in.Close()
}

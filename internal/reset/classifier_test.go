package reset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/protocol"
)

// fakeClock advances only when the code under test sleeps.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// heldLine simulates an active-low button pressed at the clock's zero point
// and released heldFor later.
type heldLine struct {
	clock   *fakeClock
	pressed time.Time
	heldFor time.Duration
}

func (l *heldLine) Level() (bool, error) {
	return l.clock.now.Sub(l.pressed) >= l.heldFor, nil
}
func (l *heldLine) Close() error { return nil }

type recordingPanel struct {
	colors []hw.Color
	solids []bool
}

func (p *recordingPanel) SetColor(c hw.Color) { p.colors = append(p.colors, c) }
func (p *recordingPanel) SetSolid(solid bool) { p.solids = append(p.solids, solid) }

func testTimings() protocol.ResetTimings {
	return protocol.ResetTimings{
		Debounce:     50 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		HoldReboot:   3 * time.Second,
		HoldRecovery: 8 * time.Second,
		HoldFactory:  15 * time.Second,
	}
}

func classify(t *testing.T, heldFor time.Duration) (Intent, bool, *recordingPanel, *Classifier) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	line := &heldLine{clock: clock, pressed: clock.now, heldFor: heldFor}
	panel := &recordingPanel{}
	c, err := NewClassifier(testTimings(), clock, line, panel)
	require.NoError(t, err)
	intent, ok := c.Classify()
	return intent, ok, panel, c
}

func TestClassify_ReleaseBeforeRebootThreshold(t *testing.T) {
	intent, ok, _, c := classify(t, 1*time.Second)
	require.True(t, ok)
	assert.Equal(t, Intent{}, intent)
	assert.Equal(t, "reboot", intent.Kind())
	assert.Equal(t, consts.HoldIdle, c.State())
}

func TestClassify_RecoveryHold(t *testing.T) {
	intent, ok, panel, _ := classify(t, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, Intent{RecoveryMode: true}, intent)
	assert.Equal(t, "recovery", intent.Kind())
	// green on entry, red at the recovery threshold; each exactly once
	assert.Equal(t, []hw.Color{hw.ColorGreen, hw.ColorRed}, panel.colors)
}

func TestClassify_FactoryHold(t *testing.T) {
	intent, ok, panel, _ := classify(t, 12*time.Second)
	require.True(t, ok)
	assert.True(t, intent.FactoryReset)
	assert.Equal(t, "factory", intent.Kind())
	// blinking on entry, solid at the factory threshold
	assert.Equal(t, []bool{false, true}, panel.solids)
}

func TestClassify_PowerOffOverrides(t *testing.T) {
	intent, ok, _, c := classify(t, 20*time.Second)
	require.True(t, ok)
	assert.True(t, intent.PowerOff)
	assert.False(t, intent.RecoveryMode, "power-off must clear the recovery flag")
	assert.False(t, intent.FactoryReset, "power-off must clear the factory flag")
	assert.Equal(t, "power-off", intent.Kind())
	assert.Equal(t, consts.HoldPowerOff, c.State())
}

func TestClassify_BounceIsFalseTrigger(t *testing.T) {
	intent, ok, panel, c := classify(t, 30*time.Millisecond)
	assert.False(t, ok, "a sub-debounce bounce must produce no intent")
	assert.Equal(t, Intent{}, intent)
	assert.Empty(t, panel.colors, "false trigger must not touch the indicators")
	assert.Empty(t, panel.solids)
	assert.Equal(t, consts.HoldIdle, c.State())
}

type panickyLine struct{}

func (panickyLine) Level() (bool, error) { panic("gpio gone") }
func (panickyLine) Close() error         { return nil }

func TestClassify_PanicDegradesToReboot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c, err := NewClassifier(testTimings(), clock, panickyLine{}, &recordingPanel{})
	require.NoError(t, err)

	intent, ok := c.Classify()
	require.True(t, ok, "an internal failure must still emit an intent")
	assert.Equal(t, Intent{}, intent)
	assert.Equal(t, "reboot", intent.Kind())
}

func TestNewClassifier_RejectsUnorderedThresholds(t *testing.T) {
	bad := testTimings()
	bad.HoldRecovery = 20 * time.Second
	clock := &fakeClock{}
	_, err := NewClassifier(bad, clock, &heldLine{clock: clock}, &recordingPanel{})
	assert.Error(t, err)
}

package shutdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/internal/marker"
	"github.com/cme-labs/cme-init/pkg/consts"
)

// recordingPanel appends every operation to a shared ordered log.
type recordingPanel struct {
	mu  sync.Mutex
	ops []string
}

func (p *recordingPanel) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, op)
}

func (p *recordingPanel) SetColor(c hw.Color) {
	if c == hw.ColorRed {
		p.record("color=red")
	} else {
		p.record("color=green")
	}
}
func (p *recordingPanel) SetSolid(solid bool) {
	if solid {
		p.record("solid")
	} else {
		p.record("blink")
	}
}
func (p *recordingPanel) AssertStandby() { p.record("standby") }
func (p *recordingPanel) Close()         { p.record("close") }

func newTestCoordinator(t *testing.T, poweroffPending bool) (*Coordinator, *recordingPanel, *marker.Store) {
	t.Helper()
	store, err := marker.NewStore(t.TempDir())
	require.NoError(t, err)
	if poweroffPending {
		require.NoError(t, store.Set(consts.PowerOffMarker))
	}

	panel := &recordingPanel{}
	c := New(panel, store, nil,
		WithSleep(func(d time.Duration) {
			panel.record("hold=" + d.String())
		}),
		WithExit(func(code int) {
			panel.record("exit")
		}),
	)
	return c, panel, store
}

func TestTrigger_RebootPath(t *testing.T) {
	c, panel, _ := newTestCoordinator(t, false)
	c.Trigger("pipeline finished")

	assert.Equal(t, []string{"color=red", "blink", "close", "exit"}, panel.ops)
}

func TestTrigger_PowerOffPath(t *testing.T) {
	c, panel, store := newTestCoordinator(t, true)
	c.Trigger("sigterm")

	// The standby line is asserted and held before any claim is released.
	assert.Equal(t, []string{"color=red", "blink", "standby", "hold=100ms", "close", "exit"}, panel.ops)
	assert.False(t, store.Present(consts.PowerOffMarker), "marker must be consumed")
}

func TestTrigger_ExactlyOnceConcurrent(t *testing.T) {
	c, panel, store := newTestCoordinator(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Trigger("sigterm")
		}()
	}
	wg.Wait()

	exits := 0
	standbys := 0
	for _, op := range panel.ops {
		switch op {
		case "exit":
			exits++
		case "standby":
			standbys++
		}
	}
	assert.Equal(t, 1, exits, "teardown body must run exactly once")
	assert.Equal(t, 1, standbys)
	assert.False(t, store.Present(consts.PowerOffMarker))
}

func TestTrigger_RepeatedIsNoop(t *testing.T) {
	c, panel, _ := newTestCoordinator(t, false)
	c.Trigger("first")
	opsAfterFirst := len(panel.ops)
	c.Trigger("second")
	assert.Equal(t, opsAfterFirst, len(panel.ops), "second trigger must have no observable effect")
}

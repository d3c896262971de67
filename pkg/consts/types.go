package consts

import "time"

// ServiceName identifies one of the fixed application services supervised at
// boot. The set is closed: the device ships with exactly these three layers
// and nothing discovers new ones at runtime.
type ServiceName string

const (
	ServiceAPI ServiceName = "api-layer"
	ServiceHW  ServiceName = "hardware-layer"
	ServiceWeb ServiceName = "web-layer"
)

// RequiredServices is the full set of services that must all resolve before
// any of them is launched.
var RequiredServices = []ServiceName{ServiceAPI, ServiceHW, ServiceWeb}

// KnownService reports whether name belongs to the fixed service set.
func KnownService(name ServiceName) bool {
	for _, s := range RequiredServices {
		if s == name {
			return true
		}
	}
	return false
}

// HoldState is the classifier's position in an in-progress reset hold.
// A state exists only between a confirmed falling edge and either the release
// of the button or the power-off threshold.
type HoldState string

const (
	HoldIdle       HoldState = "IDLE"
	HoldDebouncing HoldState = "DEBOUNCING"
	HoldReboot     HoldState = "HELD_REBOOT"
	HoldRecovery   HoldState = "HELD_RECOVERY"
	HoldFactory    HoldState = "HELD_FACTORY"
	HoldPowerOff   HoldState = "HELD_POWER_OFF"
)

// BootStage is one step of the boot pipeline, traversed once per boot.
type BootStage string

const (
	StageRecoveryGate      BootStage = "RECOVERY_GATE"
	StageUpdateCheck       BootStage = "UPDATE_CHECK"
	StageModuleSupervision BootStage = "MODULE_SUPERVISION"
	StageRecoveryFallback  BootStage = "RECOVERY_FALLBACK"
	StageDone              BootStage = "DONE"
)

// Durable marker file names, joined to the configured marker directory.
const (
	RecoveryMarker = "recovery-requested"
	PowerOffMarker = "power-off-pending"
)

// Timing defaults. The hold thresholds are configurable but must keep their
// relative order; the debounce and standby values match the hardware's
// documented requirements.
const (
	DefaultDebounce     = 50 * time.Millisecond
	DefaultPollInterval = 20 * time.Millisecond
	DefaultHoldReboot   = 3 * time.Second
	DefaultHoldRecovery = 8 * time.Second
	DefaultHoldFactory  = 15 * time.Second

	// StandbyHold is the minimum time the power-control line must stay
	// asserted for the power MCU to latch it. Shorter pulses are unreliable.
	StandbyHold = 100 * time.Millisecond
)

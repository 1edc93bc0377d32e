// Package modegate arbitrates which subsystem currently owns the
// microscope hardware. Live view claims it while running; a multi-point
// acquisition claims it for its duration and blocks UI hardware commands.
package modegate

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
)

// Mode is the process-wide hardware mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeLive
	ModeAcquiring
	ModeAborting
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeLive:
		return "LIVE"
	case ModeAcquiring:
		return "ACQUIRING"
	case ModeAborting:
		return "ABORTING"
	case ModeError:
		return "ERROR"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Publisher is where mode changes are announced.
type Publisher interface {
	Publish(events.Message)
}

// Gate is the mode arbitration service. Changes are only made through
// SetMode and RestoreMode, each carrying a reason.
type Gate struct {
	pub Publisher

	mu   sync.Mutex
	mode Mode
}

// New returns a Gate in ModeIdle. pub may be nil.
func New(pub Publisher) *Gate {
	return &Gate{pub: pub, mode: ModeIdle}
}

// Mode returns the current mode.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// BlockedForUIHardwareCommands reports whether an acquisition owns the
// hardware.
func (g *Gate) BlockedForUIHardwareCommands() bool {
	switch g.Mode() {
	case ModeAcquiring, ModeAborting:
		return true
	default:
		return false
	}
}

// SetMode changes the mode. Setting the current mode again is a no-op.
func (g *Gate) SetMode(m Mode, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode == m {
		return
	}
	old := g.mode
	g.mode = m
	debug.Live("ModeGate: %s -> %s (%s)", old, m, reason)
	if g.pub != nil {
		g.pub.Publish(events.GlobalModeChanged{Old: old.String(), New: m.String(), Reason: reason})
	}
}

// RestoreMode puts back a previously observed mode.
func (g *Gate) RestoreMode(m Mode, reason string) {
	g.SetMode(m, reason)
}

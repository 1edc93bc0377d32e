package live

import (
	"time"

	"github.com/cjeanneret/LiveGo/internal/debug"
)

// The trigger loop is a one-shot timer re-armed after every tick, never a
// periodic one, so a slow camera cannot make triggers pile up. Each armed
// timer carries the generation it was armed with; stopping or re-arming
// bumps the generation so a callback already waiting on the lock sees it
// is stale and exits without side effects.

func (c *Controller) armTimerLocked(d time.Duration) {
	c.stopTimerLocked()
	gen := c.timerGen
	debug.Trace("Live %s: timer armed in %s (gen %d)", c.name, d, gen)
	c.timer = c.clock.AfterFunc(d, func() { c.tick(gen) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen || c.state != StateLive {
		return
	}
	c.timer = nil

	if c.triggerLocked() {
		c.armTimerLocked(c.intervalLocked())
	} else {
		c.armTimerLocked(c.cfg.BusyBackoff)
	}
}

// triggerLocked sends one trigger if the camera is ready. It returns false
// when the tick was skipped because the camera is still busy.
func (c *Controller) triggerLocked() bool {
	cam := c.cameraLocked()
	if !cam.ReadyForTrigger() {
		c.skips++
		c.metrics.Skip(c.name)
		if c.skips%c.cfg.SkipLogEvery == 1 || c.cfg.SkipLogEvery == 1 {
			debug.Live("Live %s: not ready for trigger, skipping (skips=%d, total frame time=%s)",
				c.name, c.skips, cam.TotalFrameTime())
		}
		return false
	}
	c.skips = 0

	if c.mode == TriggerSoftware && c.cfg.ControlIllumination && !c.illumOn {
		c.turnOnIlluminationLocked()
	}

	c.triggerID++
	t := c.metrics.SendTimer(c.name)
	err := cam.SendTrigger()
	if t != nil {
		t.ObserveDuration()
	}
	if err != nil {
		debug.Errorf("Live %s: trigger #%d on %s: %v", c.name, c.triggerID, c.activeCam, err)
	} else {
		c.metrics.Trigger(c.name)
		debug.Trigger(c.name, c.triggerID)
	}
	c.publishSnapshotLocked()
	return true
}

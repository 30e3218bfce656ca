package timesync

import (
	"time"

	"github.com/pjanec/simcore/internal/ecs"
)

// ContinuousMaster is the wall-clock authority: it broadcasts TimePulse
// at 1Hz plus on any scale/pause change, and advances time like
// Standalone locally.
type ContinuousMaster struct {
	standalone   *Standalone
	bus          *ecs.EventBus
	sinceLastHz  time.Duration
	lastScale    float64
	lastPaused   bool
	pulseBuilt   bool
}

// NewContinuousMaster creates a master controller publishing pulses onto
// bus.
func NewContinuousMaster(bus *ecs.EventBus, scale float64) *ContinuousMaster {
	return &ContinuousMaster{standalone: NewStandalone(scale), bus: bus}
}

func (c *ContinuousMaster) SetScale(scale float64) { c.standalone.SetScale(scale) }
func (c *ContinuousMaster) SetPaused(paused bool)  { c.standalone.SetPaused(paused) }

func (c *ContinuousMaster) Advance(wallDelta time.Duration) GlobalTime {
	state := c.standalone.Advance(wallDelta)
	c.sinceLastHz += wallDelta

	changed := !c.pulseBuilt || state.Scale != c.lastScale || state.Paused != c.lastPaused
	if changed || c.sinceLastHz >= time.Second {
		ecs.PublishTyped(c.bus, EventTimePulse, TimePulse{
			WallTime: state.WallTime,
			SimTime:  state.SimTime,
			Scale:    state.Scale,
			Paused:   state.Paused,
		})
		c.sinceLastHz = 0
		c.lastScale = state.Scale
		c.lastPaused = state.Paused
		c.pulseBuilt = true
	}
	return state
}

func (c *ContinuousMaster) CurrentState() GlobalTime   { return c.standalone.CurrentState() }
func (c *ContinuousMaster) SeedState(state GlobalTime) { c.standalone.SeedState(state) }

// ContinuousSlave steers its local dt toward the target sim_time carried
// by the master's pulses via a proportional phase-locked loop. It never
// snaps to the target, to avoid a visible discontinuity.
type ContinuousSlave struct {
	bus     *ecs.EventBus
	gain    float64
	elapsed time.Duration
	simTime time.Duration
	scale   float64
	paused  bool
	frame   int64
	target  time.Duration
	haveTgt bool
}

// NewContinuousSlave creates a slave controller reading pulses from bus.
// gain is the PLL's per-frame correction fraction (≈0.01 matches the
// small-gain guidance).
func NewContinuousSlave(bus *ecs.EventBus, gain float64) *ContinuousSlave {
	if gain <= 0 {
		gain = 0.01
	}
	return &ContinuousSlave{bus: bus, gain: gain}
}

func (c *ContinuousSlave) Advance(wallDelta time.Duration) GlobalTime {
	for _, pulse := range ecs.CurrentTyped[TimePulse](c.bus, EventTimePulse) {
		c.target = pulse.SimTime
		c.haveTgt = true
		c.scale = pulse.Scale
		c.paused = pulse.Paused
	}

	c.elapsed += wallDelta
	if !c.paused {
		step := time.Duration(float64(wallDelta) * c.scale)
		if c.haveTgt {
			drift := c.target - (c.simTime + step)
			step += time.Duration(float64(drift) * c.gain)
		}
		c.simTime += step
	}
	c.frame++
	return c.CurrentState()
}

func (c *ContinuousSlave) CurrentState() GlobalTime {
	return GlobalTime{
		WallTime: c.elapsed,
		SimTime:  c.simTime,
		Scale:    c.scale,
		Paused:   c.paused,
		Frame:    c.frame,
	}
}

func (c *ContinuousSlave) SeedState(state GlobalTime) {
	c.elapsed = state.WallTime
	c.simTime = state.SimTime
	c.scale = state.Scale
	c.paused = state.Paused
	c.frame = state.Frame
}

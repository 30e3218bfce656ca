package timesync

import "time"

// Standalone is a local wall-clock time source: T_sim = T_base +
// (T_wall - T_start) * scale. No peer synchronization.
type Standalone struct {
	scale   float64
	started time.Duration
	base    time.Duration
	elapsed time.Duration
	paused  bool
	frame   int64
}

// NewStandalone creates a Standalone controller at scale (clamped to
// >= 0).
func NewStandalone(scale float64) *Standalone {
	if scale < 0 {
		scale = 0
	}
	return &Standalone{scale: scale}
}

// SetScale changes the time scale applied to subsequent Advance calls.
func (c *Standalone) SetScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.scale = scale
}

// SetPaused freezes or resumes simulation time advancement.
func (c *Standalone) SetPaused(paused bool) {
	c.paused = paused
}

func (c *Standalone) Advance(wallDelta time.Duration) GlobalTime {
	c.elapsed += wallDelta
	if !c.paused {
		scaled := time.Duration(float64(wallDelta) * c.scale)
		c.base += scaled
	}
	c.frame++
	return c.CurrentState()
}

func (c *Standalone) CurrentState() GlobalTime {
	return GlobalTime{
		WallTime: c.elapsed,
		SimTime:  c.base,
		Scale:    c.scale,
		Paused:   c.paused,
		Frame:    c.frame,
	}
}

func (c *Standalone) SeedState(state GlobalTime) {
	c.elapsed = state.WallTime
	c.base = state.SimTime
	c.scale = state.Scale
	c.paused = state.Paused
	c.frame = state.Frame
}

package recorder

import "github.com/pjanec/simcore/internal/ecs"

// PlaybackController wraps a Reader with VCR-style navigation over an
// already-read recording. Every seek resets store and replays from the
// nearest keyframe at or before the target frame up to that frame.
type PlaybackController struct {
	reader  *Reader
	store   *ecs.Store
	current int // index of the last frame applied to store, -1 if none
}

// NewPlaybackController creates a controller over reader, targeting store.
func NewPlaybackController(reader *Reader, store *ecs.Store) *PlaybackController {
	return &PlaybackController{reader: reader, store: store, current: -1}
}

// CurrentFrame returns the index of the last frame applied, or -1.
func (c *PlaybackController) CurrentFrame() int { return c.current }

// StepForward applies the next frame, reading it fresh from the
// underlying stream if it hasn't been indexed yet. Returns false at EOF.
func (c *PlaybackController) StepForward() (bool, error) {
	if c.current+1 < c.reader.FrameCount() {
		if err := c.reader.ReadFrameAt(c.current+1, c.store); err != nil {
			return false, err
		}
		c.current++
		return true, nil
	}
	ok, err := c.reader.ReadNextFrame(c.store)
	if err != nil || !ok {
		return ok, err
	}
	c.current++
	return true, nil
}

// FastForward applies up to n further frames, stopping early at EOF.
func (c *PlaybackController) FastForward(n int) error {
	for i := 0; i < n; i++ {
		ok, err := c.StepForward()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

// SeekToFrame replays from scratch up through frame n. n must already be
// indexed (reached by a prior StepForward/FastForward) since the
// recording has no random frame lookup without first scanning it.
func (c *PlaybackController) SeekToFrame(n int) error {
	if n < 0 || n >= c.reader.FrameCount() {
		return &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "seek target not yet indexed"}
	}
	last := c.lastKeyframeAtOrBefore(n)
	c.store.Reset()
	for i := last; i <= n; i++ {
		if err := c.reader.ReadFrameAt(i, c.store); err != nil {
			return err
		}
	}
	c.current = n
	return nil
}

// StepBackward rewinds to the last keyframe at or before current-1, then
// replays every delta forward up to current-1.
func (c *PlaybackController) StepBackward() error {
	if c.current <= 0 {
		return &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "already at frame 0"}
	}
	return c.SeekToFrame(c.current - 1)
}

func (c *PlaybackController) lastKeyframeAtOrBefore(n int) int {
	for i := n; i >= 0; i-- {
		if c.reader.KindAt(i) == FrameKeyframe {
			return i
		}
	}
	return 0
}

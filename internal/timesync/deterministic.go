package timesync

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/obslog"
)

// DeterministicMaster publishes FrameOrder and waits for FrameAck from
// every configured peer before issuing the next order. A missed ack
// after timeout is logged but never blocks progress.
type DeterministicMaster struct {
	bus         *ecs.EventBus
	peers       []string
	fixedDelta  time.Duration
	ackTimeout  time.Duration
	frame       int64
	simTime     time.Duration
	pendingAt   time.Time
	pendingAcks map[string]bool
	log         zerolog.Logger
}

// NewDeterministicMaster creates a master for peers, stepping fixedDelta
// per lockstep frame, waiting up to ackTimeout for stragglers.
func NewDeterministicMaster(bus *ecs.EventBus, peers []string, fixedDelta, ackTimeout time.Duration) *DeterministicMaster {
	return &DeterministicMaster{
		bus:        bus,
		peers:      peers,
		fixedDelta: fixedDelta,
		ackTimeout: ackTimeout,
		log:        obslog.ForSubsystem(obslog.New(os.Stderr, "info"), "timesync"),
	}
}

// WithLogger overrides the master's logger, used by a host that already
// built a root logger for the rest of the process so lockstep warnings
// carry the same base fields as everything else.
func (c *DeterministicMaster) WithLogger(l zerolog.Logger) *DeterministicMaster {
	c.log = obslog.ForSubsystem(l, "timesync")
	return c
}

// Advance ignores wallDelta (the lockstep clock is fixed-step) and
// issues or completes one FrameOrder round.
func (c *DeterministicMaster) Advance(time.Duration) GlobalTime {
	if c.pendingAcks == nil {
		c.issueOrder()
	} else {
		for _, ack := range ecs.CurrentTyped[FrameAck](c.bus, EventFrameAck) {
			if ack.FrameID == c.frame {
				c.pendingAcks[ack.NodeID] = true
			}
		}
		if c.allAcked() || time.Since(c.pendingAt) >= c.ackTimeout {
			if !c.allAcked() {
				c.log.Warn().Int64("frame", c.frame).Msg("lockstep frame ack timeout; advancing anyway")
			}
			c.simTime += c.fixedDelta
			c.frame++
			c.issueOrder()
		}
	}
	return c.CurrentState()
}

func (c *DeterministicMaster) issueOrder() {
	ecs.PublishTyped(c.bus, EventFrameOrder, FrameOrder{FrameID: c.frame, FixedDelta: c.fixedDelta})
	c.pendingAcks = make(map[string]bool, len(c.peers))
	c.pendingAt = time.Now()
}

func (c *DeterministicMaster) allAcked() bool {
	for _, peer := range c.peers {
		if !c.pendingAcks[peer] {
			return false
		}
	}
	return true
}

func (c *DeterministicMaster) CurrentState() GlobalTime {
	return GlobalTime{SimTime: c.simTime, Scale: 1, Frame: c.frame}
}

func (c *DeterministicMaster) SeedState(state GlobalTime) {
	c.simTime = state.SimTime
	c.frame = state.Frame
	c.pendingAcks = nil
}

// DeterministicSlave blocks logically until a FrameOrder arrives (here,
// Advance returns the same state until one has), executes with the
// ordered fixed delta, and emits FrameAck.
type DeterministicSlave struct {
	bus     *ecs.EventBus
	nodeID  string
	simTime time.Duration
	frame   int64
	haveAny bool
}

// NewDeterministicSlave creates a slave identified by nodeID.
func NewDeterministicSlave(bus *ecs.EventBus, nodeID string) *DeterministicSlave {
	return &DeterministicSlave{bus: bus, nodeID: nodeID}
}

func (c *DeterministicSlave) Advance(time.Duration) GlobalTime {
	for _, order := range ecs.CurrentTyped[FrameOrder](c.bus, EventFrameOrder) {
		c.simTime += order.FixedDelta
		c.frame = order.FrameID
		c.haveAny = true
		ecs.PublishTyped(c.bus, EventFrameAck, FrameAck{FrameID: order.FrameID, NodeID: c.nodeID})
	}
	return c.CurrentState()
}

func (c *DeterministicSlave) CurrentState() GlobalTime {
	return GlobalTime{SimTime: c.simTime, Scale: 1, Frame: c.frame}
}

func (c *DeterministicSlave) SeedState(state GlobalTime) {
	c.simTime = state.SimTime
	c.frame = state.Frame
}

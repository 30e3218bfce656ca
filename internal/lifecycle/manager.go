package lifecycle

import (
	"sync"

	"github.com/pjanec/simcore/internal/ecs"
)

type opKind uint8

const (
	opConstruct opKind = iota
	opDestruct
)

type pendingOp struct {
	kind          opKind
	typeID        uint32
	reason        string
	acked         map[string]bool
	deadlineFrame int64
}

// DefaultTimeoutFrames is the fallback construction/destruction/Ghost
// timeout when a Manager is created with timeoutFrames <= 0.
const DefaultTimeoutFrames = 300

// Manager coordinates construction and destruction across a fixed set of
// participant module ids. An entity is visible (Active) only once every
// participant has acked its construction with success; a participant
// that never acks forces the entity to destruction once its deadline
// passes.
type Manager struct {
	mu            sync.Mutex
	store         *ecs.Store
	participants  []string
	timeoutFrames int64

	pending       map[ecs.Entity]*pendingOp
	ghostDeadline map[ecs.Entity]int64

	stats Stats
}

// NewManager creates a manager gating visibility behind acks from every
// name in participants. timeoutFrames <= 0 uses DefaultTimeoutFrames.
func NewManager(store *ecs.Store, participants []string, timeoutFrames int64) *Manager {
	if timeoutFrames <= 0 {
		timeoutFrames = DefaultTimeoutFrames
	}
	cp := make([]string, len(participants))
	copy(cp, participants)
	return &Manager{
		store:         store,
		participants:  cp,
		timeoutFrames: timeoutFrames,
		pending:       make(map[ecs.Entity]*pendingOp),
		ghostDeadline: make(map[ecs.Entity]int64),
	}
}

// BeginConstruction stages a fresh entity as Constructing and publishes
// ConstructionOrder. The entity becomes Active once every participant
// acks success, or is destroyed on failure or timeout.
func (m *Manager) BeginConstruction(frame int64, typeID uint32) (ecs.Entity, error) {
	e := m.store.CreateEntity()
	if err := m.store.SetLifecycle(e, ecs.LifecycleConstructing); err != nil {
		return ecs.NullEntity, err
	}

	m.mu.Lock()
	m.pending[e] = &pendingOp{
		kind:          opConstruct,
		typeID:        typeID,
		acked:         make(map[string]bool, len(m.participants)),
		deadlineFrame: frame + m.timeoutFrames,
	}
	m.stats.Pending++
	m.mu.Unlock()

	ecs.PublishTyped(m.store.Bus(), EventConstructionOrder, ConstructionOrder{Entity: e, TypeID: typeID})
	return e, nil
}

// BeginDestruction stages e as TearDown and publishes DestructionOrder.
// e is destroyed once every participant acks, or forcibly at timeout.
func (m *Manager) BeginDestruction(frame int64, e ecs.Entity, reason string) error {
	if err := m.store.SetLifecycle(e, ecs.LifecycleTearDown); err != nil {
		return err
	}

	m.mu.Lock()
	m.pending[e] = &pendingOp{
		kind:          opDestruct,
		reason:        reason,
		acked:         make(map[string]bool, len(m.participants)),
		deadlineFrame: frame + m.timeoutFrames,
	}
	m.stats.Pending++
	m.mu.Unlock()

	ecs.PublishTyped(m.store.Bus(), EventDestructionOrder, DestructionOrder{Entity: e, Reason: reason})
	return nil
}

// CreateGhost creates e directly in the Ghost state, for a component
// payload that arrived before its construction metadata. e becomes
// visible once PromoteGhost arrives, or is destroyed at timeout.
func (m *Manager) CreateGhost(frame int64) (ecs.Entity, error) {
	e := m.store.CreateEntity()
	if err := m.store.SetLifecycle(e, ecs.LifecycleGhost); err != nil {
		return ecs.NullEntity, err
	}
	m.mu.Lock()
	m.ghostDeadline[e] = frame + m.timeoutFrames
	m.mu.Unlock()
	return e, nil
}

// PromoteGhost transitions e from Ghost to Constructing, preserving
// whatever components already arrived, and begins the normal
// construction ack handshake.
func (m *Manager) PromoteGhost(frame int64, e ecs.Entity, typeID uint32) error {
	state, err := m.store.Lifecycle(e)
	if err != nil {
		return err
	}
	if state != ecs.LifecycleGhost {
		return nil
	}
	if err := m.store.SetLifecycle(e, ecs.LifecycleConstructing); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.ghostDeadline, e)
	m.pending[e] = &pendingOp{
		kind:          opConstruct,
		typeID:        typeID,
		acked:         make(map[string]bool, len(m.participants)),
		deadlineFrame: frame + m.timeoutFrames,
	}
	m.stats.Pending++
	m.mu.Unlock()

	ecs.PublishTyped(m.store.Bus(), EventConstructionOrder, ConstructionOrder{Entity: e, TypeID: typeID})
	return nil
}

// Sweep processes this frame's acks and enforces timeouts. It is called
// once per frame, after the event bus has swapped so Current reflects
// acks published last frame.
func (m *Manager) Sweep(frame int64) {
	m.processConstructionAcks()
	m.processDestructionAcks()
	m.enforceTimeouts(frame)
}

func (m *Manager) processConstructionAcks() {
	for _, ack := range ecs.CurrentTyped[ConstructionAck](m.store.Bus(), EventConstructionAck) {
		m.mu.Lock()
		op, ok := m.pending[ack.Entity]
		if !ok || op.kind != opConstruct {
			m.mu.Unlock()
			continue
		}
		if !ack.Success {
			delete(m.pending, ack.Entity)
			m.stats.Pending--
			m.mu.Unlock()
			_ = m.store.DestroyEntity(ack.Entity)
			m.mu.Lock()
			m.stats.Destroyed++
			m.mu.Unlock()
			continue
		}
		op.acked[ack.ModuleID] = true
		complete := m.allAckedLocked(op)
		if complete {
			delete(m.pending, ack.Entity)
			m.stats.Pending--
			m.stats.Constructed++
		}
		m.mu.Unlock()
		if complete {
			_ = m.store.SetLifecycle(ack.Entity, ecs.LifecycleActive)
		}
	}
}

func (m *Manager) processDestructionAcks() {
	for _, ack := range ecs.CurrentTyped[DestructionAck](m.store.Bus(), EventDestructionAck) {
		m.mu.Lock()
		op, ok := m.pending[ack.Entity]
		if !ok || op.kind != opDestruct {
			m.mu.Unlock()
			continue
		}
		op.acked[ack.ModuleID] = true
		complete := m.allAckedLocked(op)
		if complete {
			delete(m.pending, ack.Entity)
			m.stats.Pending--
		}
		m.mu.Unlock()
		if complete {
			_ = m.store.DestroyEntity(ack.Entity)
			m.mu.Lock()
			m.stats.Destroyed++
			m.mu.Unlock()
		}
	}
}

func (m *Manager) allAckedLocked(op *pendingOp) bool {
	for _, p := range m.participants {
		if !op.acked[p] {
			return false
		}
	}
	return true
}

func (m *Manager) enforceTimeouts(frame int64) {
	m.mu.Lock()
	var expiredOps []ecs.Entity
	for e, op := range m.pending {
		if frame >= op.deadlineFrame {
			expiredOps = append(expiredOps, e)
			_ = op
		}
	}
	var expiredGhosts []ecs.Entity
	for e, deadline := range m.ghostDeadline {
		if frame >= deadline {
			expiredGhosts = append(expiredGhosts, e)
		}
	}
	for _, e := range expiredOps {
		delete(m.pending, e)
		m.stats.Pending--
		m.stats.Timeouts++
	}
	for _, e := range expiredGhosts {
		delete(m.ghostDeadline, e)
		m.stats.Timeouts++
	}
	m.mu.Unlock()

	for _, e := range expiredOps {
		_ = m.store.DestroyEntity(e)
		m.mu.Lock()
		m.stats.Destroyed++
		m.mu.Unlock()
	}
	for _, e := range expiredGhosts {
		_ = m.store.DestroyEntity(e)
		m.mu.Lock()
		m.stats.Destroyed++
		m.mu.Unlock()
	}
}

// Stats returns a copy of the manager's current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

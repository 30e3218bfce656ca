package modulehost

import (
	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/ecs/bitset"
)

// Mode selects where and how a module runs.
type Mode string

const (
	// Synchronous runs on the main thread against the live store,
	// blocking the frame.
	Synchronous Mode = "Synchronous"
	// FrameSynced runs on a worker against a full-replica view; the
	// main thread joins every FrameSynced worker before continuing.
	FrameSynced Mode = "FrameSynced"
	// Asynchronous runs on a worker against an on-demand pooled view;
	// the main thread does not wait, and a lease may span frames.
	Asynchronous Mode = "Asynchronous"
)

// DataStrategy names the view a module is handed; it must match Mode.
type DataStrategy string

const (
	DataDirect      DataStrategy = "Direct"
	DataFullReplica DataStrategy = "FullReplica"
	DataOnDemand    DataStrategy = "OnDemand"
)

// TriggerKind selects how a module is chosen to run on a given frame.
type TriggerKind string

const (
	TriggerAlways            TriggerKind = "Always"
	TriggerInterval          TriggerKind = "Interval"
	TriggerOnEvent           TriggerKind = "OnEvent"
	TriggerOnComponentChange TriggerKind = "OnComponentChange"
)

// Trigger is a reactive scheduling predicate, evaluated fresh each frame.
type Trigger struct {
	Kind TriggerKind

	// EventType is consulted when Kind is TriggerOnEvent.
	EventType ecs.EventTypeID

	// componentChanged is consulted when Kind is TriggerOnComponentChange.
	// It is supplied by OnComponentChange[T] so the trigger stays generic
	// over the watched component type without making Trigger itself
	// generic.
	componentChanged func(store *ecs.Store, since uint32) bool
}

// OnComponentChange builds a trigger that fires when T changed in any
// entity since the module's last dispatch version.
func OnComponentChange[T ecs.Component](store *ecs.Store) Trigger {
	ct, _ := ecs.ComponentTypeID[T](store)
	return Trigger{
		Kind: TriggerOnComponentChange,
		componentChanged: func(s *ecs.Store, since uint32) bool {
			return s.AnyComponentChanged(ct, since)
		},
	}
}

// OnEvent builds a trigger that fires when an event of typ arrived this
// frame.
func OnEvent(typ ecs.EventTypeID) Trigger {
	return Trigger{Kind: TriggerOnEvent, EventType: typ}
}

func (t Trigger) fires(store *ecs.Store, frame int64, intervalFrames int64, lastRunVersion uint32) bool {
	switch t.Kind {
	case TriggerAlways:
		return true
	case TriggerInterval:
		if intervalFrames <= 0 {
			return true
		}
		return frame%intervalFrames == 0
	case TriggerOnEvent:
		return store.Bus().HasEvent(t.EventType)
	case TriggerOnComponentChange:
		if t.componentChanged == nil {
			return false
		}
		return t.componentChanged(store, lastRunVersion)
	default:
		return false
	}
}

// ExecutionPolicy configures how and when the host runs one module.
type ExecutionPolicy struct {
	Mode                Mode
	DataStrategy        DataStrategy
	FrequencyHz         int
	Trigger             Trigger
	MaxRuntimeMs        int
	FailureThreshold    int
	ResetTimeoutMs      int
	RequiredComponents  bitset.Mask256
}

// intervalFrames converts FrequencyHz into a frame interval assuming a
// 60Hz simulation tick: 0 or 60 means every frame.
func (p ExecutionPolicy) intervalFrames() int64 {
	if p.FrequencyHz <= 0 || p.FrequencyHz >= 60 {
		return 1
	}
	return int64(60 / p.FrequencyHz)
}

package ecs

import "reflect"

// ComponentType is a stable 8-bit component type id.
type ComponentType uint8

// InvalidComponentType marks "no component type" in error contexts.
const InvalidComponentType ComponentType = 255

// DataPolicy classifies how a component type participates in snapshots
// and recordings.
type DataPolicy uint8

const (
	// PolicySnapshot is the default for plain, blittable data: copied
	// verbatim into every replica.
	PolicySnapshot DataPolicy = iota
	// PolicySnapshotViaClone is for opt-in deep-copyable reference types:
	// copied into replicas via Component.Clone.
	PolicySnapshotViaClone
	// PolicyTransient excludes the type from every replica and recording;
	// the default fallback for mutable reference types that cannot be
	// safely copied across threads or persisted.
	PolicyTransient
)

// Component is the data a component type carries. Types with PolicySnapshotViaClone
// must return a deep copy from Clone; Clone on a PolicySnapshot type may
// return a shallow copy since the data is required to be blittable/immutable.
type Component interface {
	Clone() Component
}

// ComponentTypeInfo is the registration record for one component type.
type ComponentTypeInfo struct {
	ID     ComponentType
	Name   string
	Policy DataPolicy
	GoType reflect.Type
}

// TypeRegistry owns the mapping between component types and their
// registration metadata for one store. Registration is closed over the
// store's lifetime — a fresh TypeRegistry is created per store/snapshot
// instance family so every replica agrees on ids.
type TypeRegistry struct {
	byID   [256]*ComponentTypeInfo
	byName map[string]ComponentType
	next   int
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byName: make(map[string]ComponentType)}
}

// Register assigns the next free 8-bit id to name with the given policy.
func (r *TypeRegistry) Register(name string, policy DataPolicy) (ComponentType, error) {
	return r.registerWithGoType(name, policy, nil)
}

// RegisterTyped is Register plus the Go type backing the component,
// recorded so the flight recorder can reconstruct concrete values on
// replay without a caller-supplied factory.
func (r *TypeRegistry) RegisterTyped(name string, policy DataPolicy, goType reflect.Type) (ComponentType, error) {
	return r.registerWithGoType(name, policy, goType)
}

func (r *TypeRegistry) registerWithGoType(name string, policy DataPolicy, goType reflect.Type) (ComponentType, error) {
	if _, exists := r.byName[name]; exists {
		return 0, newStoreError(ErrUnknownType, "component type "+name+" already registered")
	}
	if r.next >= 256 {
		return 0, newStoreError(ErrUnknownType, "component type registry is full (256 types max)")
	}
	id := ComponentType(r.next)
	r.next++
	info := &ComponentTypeInfo{ID: id, Name: name, Policy: policy, GoType: goType}
	r.byID[id] = info
	r.byName[name] = id
	return id, nil
}

// Lookup returns the registration info for id, or ok=false if unregistered.
func (r *TypeRegistry) Lookup(id ComponentType) (*ComponentTypeInfo, bool) {
	info := r.byID[id]
	return info, info != nil
}

// LookupByName returns the id registered for name.
func (r *TypeRegistry) LookupByName(name string) (ComponentType, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// SnapshotableMask returns the union of bits for every registered type
// whose policy is Snapshot or SnapshotViaClone.
func (r *TypeRegistry) SnapshotableMask() mask256 {
	var m mask256
	for id := 0; id < r.next; id++ {
		info := r.byID[id]
		if info.Policy != PolicyTransient {
			m.Set(uint8(id))
		}
	}
	return m
}

// All returns every registered type's info, ordered by id.
func (r *TypeRegistry) All() []*ComponentTypeInfo {
	out := make([]*ComponentTypeInfo, 0, r.next)
	for id := 0; id < r.next; id++ {
		out = append(out, r.byID[id])
	}
	return out
}

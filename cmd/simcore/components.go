package main

import "github.com/pjanec/simcore/internal/ecs"

// transform is the synthetic payload component/bench/replay exercise —
// plain blittable data, the common case the flight recorder's snapshot
// policy targets.
type transform struct {
	X, Y, Z float64
}

func (t transform) Clone() ecs.Component { return t }

func registerDemoComponents(store *ecs.Store) (ecs.ComponentType, error) {
	return ecs.RegisterComponent[transform](store, "Transform", ecs.PolicySnapshot)
}

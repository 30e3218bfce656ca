package scheduler

import (
	"context"
	"time"
)

// SystemType identifies a system for dependency declarations and
// profiling.
type SystemType string

// View is the minimal per-phase execution surface a System receives: a
// live, read/write world on the main thread, or a read-only snapshot
// elsewhere. Concrete Views are supplied by the module host/ecs packages;
// the scheduler itself is agnostic to what View actually is.
type View any

// System is one unit of per-phase logic.
type System interface {
	Type() SystemType
	Phase() Phase
	RunAfter() []SystemType
	RunBefore() []SystemType
	Execute(ctx context.Context, view View, delta time.Duration) error
}

// Group flattens a named collection of systems that share the same
// phase: the group's own RunAfter/RunBefore edges apply to the group as
// a unit in the phase DAG, and its children execute in declared order
// once the group's turn comes.
type Group struct {
	Name     string
	Phase_   Phase
	After    []SystemType
	Before   []SystemType
	Children []System
}

func (g *Group) Type() SystemType        { return SystemType(g.Name) }
func (g *Group) Phase() Phase            { return g.Phase_ }
func (g *Group) RunAfter() []SystemType  { return g.After }
func (g *Group) RunBefore() []SystemType { return g.Before }
func (g *Group) Execute(ctx context.Context, view View, delta time.Duration) error {
	for _, child := range g.Children {
		if err := child.Execute(ctx, view, delta); err != nil {
			return err
		}
	}
	return nil
}

// Profile is the per-system execution profile the scheduler maintains.
type Profile struct {
	Count     int64
	TotalTime time.Duration
	LastTime  time.Duration
	MaxTime   time.Duration
}

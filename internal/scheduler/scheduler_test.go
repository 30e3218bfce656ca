package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSystem struct {
	typ     SystemType
	phase   Phase
	after   []SystemType
	before  []SystemType
	run     func()
	fail    bool
	failure any
}

func (f *fakeSystem) Type() SystemType       { return f.typ }
func (f *fakeSystem) Phase() Phase           { return f.phase }
func (f *fakeSystem) RunAfter() []SystemType { return f.after }
func (f *fakeSystem) RunBefore() []SystemType {
	return f.before
}
func (f *fakeSystem) Execute(ctx context.Context, view View, delta time.Duration) error {
	if f.fail {
		panic(f.failure)
	}
	if f.run != nil {
		f.run()
	}
	return nil
}

func TestScheduleOrdersByDependency(t *testing.T) {
	var order []SystemType
	record := func(t SystemType) func() {
		return func() { order = append(order, t) }
	}

	s := New()
	c := &fakeSystem{typ: "C", phase: PhaseSimulation, after: []SystemType{"B"}}
	c.run = record("C")
	b := &fakeSystem{typ: "B", phase: PhaseSimulation, after: []SystemType{"A"}}
	b.run = record("B")
	a := &fakeSystem{typ: "A", phase: PhaseSimulation}
	a.run = record("A")

	// Register out of dependency order to prove the sort, not insertion
	// order, decides execution order.
	s.Register(c)
	s.Register(a)
	s.Register(b)

	err := s.ExecutePhase(context.Background(), PhaseSimulation, nil, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []SystemType{"A", "B", "C"}, order)
}

func TestScheduleDetectsCycle(t *testing.T) {
	s := New()
	s.Register(&fakeSystem{typ: "X", phase: PhaseSimulation, after: []SystemType{"Y"}})
	s.Register(&fakeSystem{typ: "Y", phase: PhaseSimulation, after: []SystemType{"X"}})

	err := s.Build(PhaseSimulation)
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []SystemType{"X", "Y"}, cycleErr.Systems)
}

func TestCrossPhaseRelationsIgnored(t *testing.T) {
	s := New()
	s.Register(&fakeSystem{typ: "InputSys", phase: PhaseInput})
	s.Register(&fakeSystem{typ: "SimSys", phase: PhaseSimulation, after: []SystemType{"InputSys"}})

	// SimSys references a system in a different phase; Build must not
	// error and must not wire a cross-phase edge.
	require.NoError(t, s.Build(PhaseSimulation))
	order, err := s.Order(PhaseSimulation)
	require.NoError(t, err)
	require.Equal(t, []SystemType{"SimSys"}, order)
}

func TestPanicBecomesSystemFault(t *testing.T) {
	s := New()
	s.Register(&fakeSystem{typ: "Boom", phase: PhaseSimulation, fail: true, failure: "kaboom"})

	err := s.ExecutePhase(context.Background(), PhaseSimulation, nil, time.Millisecond)
	require.Error(t, err)
	var fault *SystemFault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, SystemType("Boom"), fault.System)
}

func TestGroupFlattensChildren(t *testing.T) {
	var order []SystemType
	child1 := &fakeSystem{typ: "g1", phase: PhaseSimulation, run: func() { order = append(order, "g1") }}
	child2 := &fakeSystem{typ: "g2", phase: PhaseSimulation, run: func() { order = append(order, "g2") }}
	group := &Group{Name: "movement", Phase_: PhaseSimulation, Children: []System{child1, child2}}

	s := New()
	s.Register(group)
	require.NoError(t, s.ExecutePhase(context.Background(), PhaseSimulation, nil, time.Millisecond))
	require.Equal(t, []SystemType{"g1", "g2"}, order)
}

func TestProfileAccumulates(t *testing.T) {
	s := New()
	s.Register(&fakeSystem{typ: "P", phase: PhaseSimulation})
	require.NoError(t, s.ExecutePhase(context.Background(), PhaseSimulation, nil, time.Millisecond))
	require.NoError(t, s.ExecutePhase(context.Background(), PhaseSimulation, nil, time.Millisecond))

	p := s.Profile("P")
	require.Equal(t, int64(2), p.Count)
}

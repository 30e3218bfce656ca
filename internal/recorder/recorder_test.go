package recorder_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/recorder"
)

type Position struct{ X, Y, Z float32 }

func (p Position) Clone() ecs.Component { return p }

type Velocity struct{ X, Y, Z float32 }

func (v Velocity) Clone() ecs.Component { return v }

type Secret struct{ Value [32]byte }

func (s Secret) Clone() ecs.Component { return s }

func newRegisteredStore(t *testing.T) (*ecs.Store, ecs.ComponentType, ecs.ComponentType) {
	t.Helper()
	store := ecs.NewStore()
	posID, err := ecs.RegisterComponent[Position](store, "position", ecs.PolicySnapshot)
	require.NoError(t, err)
	velID, err := ecs.RegisterComponent[Velocity](store, "velocity", ecs.PolicySnapshot)
	require.NoError(t, err)
	return store, posID, velID
}

func TestKeyframeRoundTripsTwoComponents(t *testing.T) {
	store, _, _ := newRegisteredStore(t)
	e1 := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e1, Position{1, 1, 1}))
	require.NoError(t, ecs.AddComponent(store, e1, Velocity{1, 0, 0}))
	e2 := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e2, Position{2, 2, 2}))
	require.NoError(t, ecs.AddComponent(store, e2, Velocity{1, 0, 0}))

	require.NoError(t, store.Tick())
	p1, err := ecs.GetComponent[Position](store, e1)
	require.NoError(t, err)
	v1, err := ecs.GetComponent[Velocity](store, e1)
	require.NoError(t, err)
	require.NoError(t, ecs.SetComponent(store, e1, Position{p1.X + v1.X, p1.Y + v1.Y, p1.Z + v1.Z}))
	p2, _ := ecs.GetComponent[Position](store, e2)
	v2, _ := ecs.GetComponent[Velocity](store, e2)
	require.NoError(t, ecs.SetComponent(store, e2, Position{p2.X + v2.X, p2.Y + v2.Y, p2.Z + v2.Z}))

	var buf bytes.Buffer
	w, err := recorder.NewWriter(&buf, store.Registry(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.CaptureKeyframe(store))

	target := ecs.NewStore(ecs.WithRegistry(store.Registry()))
	r, err := recorder.NewReader(bytes.NewReader(buf.Bytes()), target.Registry())
	require.NoError(t, err)
	ok, err := r.ReadNextFrame(target)
	require.NoError(t, err)
	require.True(t, ok)

	got1, err := ecs.GetComponent[Position](target, e1)
	require.NoError(t, err)
	require.Equal(t, float32(2), got1.X)
	require.Equal(t, float32(1), got1.Y)
	require.Equal(t, float32(1), got1.Z)

	got2, err := ecs.GetComponent[Position](target, e2)
	require.NoError(t, err)
	require.Equal(t, float32(3), got2.X)
	require.Equal(t, float32(2), got2.Y)
	require.Equal(t, float32(2), got2.Z)
}

func TestDeltaRecordingCapturesOnlyChangedEntity(t *testing.T) {
	store, _, _ := newRegisteredStore(t)
	e1 := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e1, Position{1, 1, 1}))
	e2 := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e2, Position{2, 2, 2}))

	var buf bytes.Buffer
	w, err := recorder.NewWriter(&buf, store.Registry(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Tick())
	require.NoError(t, w.CaptureKeyframe(store))
	baseline := store.GlobalVersion()

	require.NoError(t, store.Tick())
	require.NoError(t, ecs.SetComponent(store, e1, Position{100, 1, 1}))
	require.NoError(t, w.CaptureDelta(store, baseline))

	target := ecs.NewStore(ecs.WithRegistry(store.Registry()))
	r, err := recorder.NewReader(bytes.NewReader(buf.Bytes()), target.Registry())
	require.NoError(t, err)

	ok, err := r.ReadNextFrame(target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, recorder.FrameKeyframe, r.KindAt(0))

	ok, err = r.ReadNextFrame(target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, recorder.FrameDelta, r.KindAt(1))

	got1, err := ecs.GetComponent[Position](target, e1)
	require.NoError(t, err)
	require.Equal(t, float32(100), got1.X)
}

func TestDestructionSanitizesComponentBytes(t *testing.T) {
	store := ecs.NewStore()
	secretID, err := ecs.RegisterComponent[Secret](store, "secret", ecs.PolicySnapshot)
	require.NoError(t, err)

	var payload [32]byte
	for i := range payload {
		payload[i] = 0x5A
	}
	e := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e, Secret{Value: payload}))

	var buf bytes.Buffer
	w, err := recorder.NewWriter(&buf, store.Registry(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Tick())
	require.NoError(t, w.CaptureKeyframe(store))
	baseline := store.GlobalVersion()

	require.NoError(t, store.Tick())
	require.NoError(t, store.DestroyEntity(e))
	require.NoError(t, w.CaptureDelta(store, baseline))

	require.False(t, store.HasComponentRaw(e, secretID))

	target := ecs.NewStore(ecs.WithRegistry(store.Registry()))
	r, err := recorder.NewReader(bytes.NewReader(buf.Bytes()), target.Registry())
	require.NoError(t, err)
	_, err = r.ReadNextFrame(target) // keyframe
	require.NoError(t, err)
	ok, err := r.ReadNextFrame(target) // delta with the destruction log
	require.NoError(t, err)
	require.True(t, ok)

	require.False(t, target.IsValid(e), "destroyed entity must not be reconstructed with its old secret payload")
}

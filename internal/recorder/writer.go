package recorder

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pjanec/simcore/internal/ecs"
)

// Writer captures keyframe and delta frames from a store into the flight
// recorder's binary format. I/O failures degrade gracefully: the frame is
// dropped, DroppedFrames is incremented, and the simulation keeps running;
// only a programmer-category error (an unregistered polymorphic type)
// propagates to the caller.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	codec    *codec
	log      zerolog.Logger
	lastSeen map[ecs.Entity]struct{}
	dropped  int64
}

// NewWriter writes the recording header immediately and returns a Writer
// ready to capture frames. registry must be the same TypeRegistry shared
// by every store that will ever be captured through it.
func NewWriter(w io.Writer, registry *ecs.TypeRegistry, log zerolog.Logger) (*Writer, error) {
	var hdr bytes.Buffer
	hdr.WriteString(magic)
	binary.Write(&hdr, binary.LittleEndian, FormatVersion)
	binary.Write(&hdr, binary.LittleEndian, uint64(time.Now().Unix()))
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return nil, &ecs.StoreError{Code: ecs.ErrIoFailure, Message: err.Error()}
	}
	return &Writer{
		w:        w,
		codec:    newCodec(registry),
		log:      log,
		lastSeen: make(map[ecs.Entity]struct{}),
	}, nil
}

// DroppedFrames reports how many frames were discarded after an I/O
// failure, plus how many individual components were left out of a frame
// because encoding them failed, rather than crashing the simulation.
func (rw *Writer) DroppedFrames() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.dropped
}

// CaptureKeyframe writes every Active entity and its snapshotable
// components, establishing the new baseline for subsequent deltas.
func (rw *Writer) CaptureKeyframe(store *ecs.Store) error {
	active := store.GetActiveEntities()
	return rw.captureFrame(store, FrameKeyframe, active, func(e ecs.Entity, ct ecs.ComponentType) bool {
		return true
	})
}

// CaptureDelta writes only components whose own entry version exceeds since,
// relying on the store's global version having advanced exactly once per
// frame since the baseline.
func (rw *Writer) CaptureDelta(store *ecs.Store, since uint32) error {
	active := store.GetActiveEntities()
	return rw.captureFrame(store, FrameDelta, active, func(e ecs.Entity, ct ecs.ComponentType) bool {
		return store.ComponentEntryVersion(e, ct) > since
	})
}

func (rw *Writer) captureFrame(store *ecs.Store, kind FrameKind, active []ecs.Entity, include func(ecs.Entity, ecs.ComponentType) bool) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	snapshotable := store.GetSnapshotableMask()
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	binary.Write(&buf, binary.LittleEndian, store.GlobalVersion())

	type entityRecord struct {
		entity     ecs.Entity
		components [][]byte // each already (component_id, len, payload)
	}
	var records []entityRecord
	for _, e := range active {
		mask, err := store.Mask(e)
		if err != nil {
			continue
		}
		var comps [][]byte
		for _, bit := range mask.Bits() {
			ct := ecs.ComponentType(bit)
			if !snapshotable.Test(bit) || !include(e, ct) {
				continue
			}
			v, ok := store.GetComponentForRecording(e, ct)
			if !ok {
				continue
			}
			payload, err := rw.codec.encode(v)
			if err != nil {
				if se, ok := err.(*ecs.StoreError); ok && se.IsFatal() {
					return se
				}
				rw.dropped++
				rw.log.Warn().Err(err).Str("entity", e.String()).Msg("recorder: dropping component, encode failed")
				continue
			}
			var c bytes.Buffer
			c.WriteByte(byte(ct))
			binary.Write(&c, binary.LittleEndian, uint32(len(payload)))
			c.Write(payload)
			comps = append(comps, c.Bytes())
		}
		if len(comps) > 0 {
			records = append(records, entityRecord{entity: e, components: comps})
		}
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(records)))
	for _, rec := range records {
		binary.Write(&buf, binary.LittleEndian, uint64(rec.entity))
		binary.Write(&buf, binary.LittleEndian, uint32(len(rec.components)))
		for _, c := range rec.components {
			buf.Write(c)
		}
	}

	destroyed := rw.diffDestroyed(store, active)
	binary.Write(&buf, binary.LittleEndian, uint32(len(destroyed)))
	for _, e := range destroyed {
		binary.Write(&buf, binary.LittleEndian, uint64(e))
	}

	if _, err := rw.w.Write(buf.Bytes()); err != nil {
		rw.dropped++
		rw.log.Warn().Err(err).Msg("recorder: dropping frame, write failed")
		return nil
	}
	return nil
}

// diffDestroyed computes which entities were present as of the last
// capture but are no longer valid handles at all (as opposed to merely
// having left the Active set, e.g. into TearDown), then updates the
// tracked set to the current active set. The store already zeroes a
// destroyed entity's component columns in DestroyEntity, so no payload
// bytes for a destroyed entity ever reach the recording.
func (rw *Writer) diffDestroyed(store *ecs.Store, active []ecs.Entity) []ecs.Entity {
	next := make(map[ecs.Entity]struct{}, len(rw.lastSeen)+len(active))
	var destroyed []ecs.Entity
	for e := range rw.lastSeen {
		if store.IsValid(e) {
			next[e] = struct{}{}
		} else {
			destroyed = append(destroyed, e)
		}
	}
	for _, e := range active {
		next[e] = struct{}{}
	}
	rw.lastSeen = next
	return destroyed
}

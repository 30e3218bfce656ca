package recorder

import (
	"encoding/binary"
	"io"

	"github.com/pjanec/simcore/internal/ecs"
)

// frameLoc records where one frame begins and what kind it is, built as
// the reader scans the file, so PlaybackController can seek without
// re-parsing everything from the start.
type frameLoc struct {
	offset int64
	kind   FrameKind
	tick   uint32
}

// Reader parses a recording produced by Writer and applies its frames to
// a target store. The underlying stream must support Seek so playback can
// rewind to the last keyframe.
type Reader struct {
	r      io.ReadSeeker
	codec  *codec
	Header Header
	index  []frameLoc
}

// NewReader reads and validates the recording header.
func NewReader(r io.ReadSeeker, registry *ecs.TypeRegistry) (*Reader, error) {
	var hdr [18]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "truncated header: " + err.Error()}
	}
	if string(hdr[:6]) != magic {
		return nil, &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "bad magic"}
	}
	version := binary.LittleEndian.Uint32(hdr[6:10])
	if version != FormatVersion {
		return nil, &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "unsupported format version"}
	}
	ts := binary.LittleEndian.Uint64(hdr[10:18])
	return &Reader{
		r:      r,
		codec:  newCodec(registry),
		Header: Header{Version: version, Timestamp: int64(ts)},
	}, nil
}

// FrameCount returns how many frames have been indexed so far (every
// frame read via ReadNextFrame/ReadFrameAt up to now).
func (r *Reader) FrameCount() int { return len(r.index) }

// KindAt reports the frame kind at already-indexed position n.
func (r *Reader) KindAt(n int) FrameKind { return r.index[n].kind }

// ReadNextFrame applies the next frame in sequence to store, returning
// false at EOF.
func (r *Reader) ReadNextFrame(store *ecs.Store) (bool, error) {
	offset, err := r.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, &ecs.StoreError{Code: ecs.ErrIoFailure, Message: err.Error()}
	}
	kind, tick, err := r.applyFrame(store)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.index = append(r.index, frameLoc{offset: offset, kind: kind, tick: tick})
	return true, nil
}

// ReadFrameAt seeks to the already-indexed frame n and applies it to
// store, without extending the index.
func (r *Reader) ReadFrameAt(n int, store *ecs.Store) error {
	if n < 0 || n >= len(r.index) {
		return &ecs.StoreError{Code: ecs.ErrCorruptRecording, Message: "frame index out of range"}
	}
	if _, err := r.r.Seek(r.index[n].offset, io.SeekStart); err != nil {
		return &ecs.StoreError{Code: ecs.ErrIoFailure, Message: err.Error()}
	}
	_, _, err := r.applyFrame(store)
	return err
}

// readU8/readU32/readU64 read a single little-endian integer directly
// from the seekable stream; the recording has no buffering layer of its
// own so seeks stay byte-accurate.
func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (r *Reader) applyFrame(store *ecs.Store) (FrameKind, uint32, error) {
	kindByte, err := readU8(r.r)
	if err == io.EOF {
		return 0, 0, io.EOF
	}
	if err != nil {
		return 0, 0, &ecs.StoreError{Code: ecs.ErrIoFailure, Message: err.Error()}
	}
	kind := FrameKind(kindByte)

	tick, err := readU32(r.r)
	if err != nil {
		return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
	}

	entityCount, err := readU32(r.r)
	if err != nil {
		return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
	}

	for i := uint32(0); i < entityCount; i++ {
		handle, err := readU64(r.r)
		if err != nil {
			return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
		}
		e := ecs.Entity(handle)
		if err := store.EnsureEntityAt(e); err != nil {
			return 0, 0, err
		}

		compCount, err := readU32(r.r)
		if err != nil {
			return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
		}
		for j := uint32(0); j < compCount; j++ {
			ctByte, err := readU8(r.r)
			if err != nil {
				return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
			}
			payloadLen, err := readU32(r.r)
			if err != nil {
				return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
			}
			payload := make([]byte, payloadLen)
			if _, err := io.ReadFull(r.r, payload); err != nil {
				return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
			}
			ct := ecs.ComponentType(ctByte)
			v, err := r.codec.decode(ct, payload)
			if err != nil {
				return 0, 0, err
			}
			if err := store.PutComponentForRecording(e, ct, v); err != nil {
				return 0, 0, err
			}
		}
	}

	destroyedCount, err := readU32(r.r)
	if err != nil {
		return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
	}
	for i := uint32(0); i < destroyedCount; i++ {
		handle, err := readU64(r.r)
		if err != nil {
			return 0, 0, &ecs.StoreError{Code: ecs.ErrTruncatedFrame, Message: err.Error()}
		}
		e := ecs.Entity(handle)
		if store.IsValid(e) {
			_ = store.DestroyEntity(e)
		}
	}

	return kind, tick, nil
}

// Package recorder implements the flight recorder: a byte-exact,
// little-endian keyframe+delta recording format sufficient to replay a
// run into a fresh store registered with the same component types, plus
// seek/step playback on top of it.
package recorder

// magic is the 6-byte file signature every recording begins with.
const magic = "FDPREC"

// FormatVersion is written in the header; a reader rejects any version it
// doesn't understand.
const FormatVersion uint32 = 1

// FrameKind tags whether a frame carries a full baseline or only the
// components that changed since one.
type FrameKind uint8

const (
	FrameKeyframe FrameKind = 0
	FrameDelta    FrameKind = 1
)

func (k FrameKind) String() string {
	if k == FrameKeyframe {
		return "keyframe"
	}
	return "delta"
}

// Header is the fixed 18-byte preamble: 6-byte magic, uint32 version,
// uint64 timestamp (unix seconds).
type Header struct {
	Version   uint32
	Timestamp int64
}

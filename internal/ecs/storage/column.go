// Package storage implements the dense, chunked component columns behind
// each registered component type.
package storage

// ChunkSize is the target chunk capacity in entities.
const ChunkSize = 16384

// Chunk is one fixed-size slice of a component column, carrying its own
// version counter.
type Chunk struct {
	Version uint32
	values  [ChunkSize]any
	entryVersions [ChunkSize]uint32
}

// Get returns the value stored at local index i, or nil if unset.
func (c *Chunk) Get(i int) any {
	return c.values[i]
}

// Set stores value at local index i and stamps both the chunk's coarse
// version (used for whole-chunk sync) and that entry's own version (used
// for exact per-entity change detection, e.g. by the flight recorder).
func (c *Chunk) Set(i int, value any, version uint32) {
	c.values[i] = value
	c.entryVersions[i] = version
	c.Version = version
}

// EntryVersion returns the version entry i was last written at.
func (c *Chunk) EntryVersion(i int) uint32 {
	return c.entryVersions[i]
}

// Clear zeroes local index i without touching the chunk version — used
// when sanitizing a destroyed entity's slots so no stale value leaks into
// a reused index.
func (c *Chunk) Clear(i int) {
	c.values[i] = nil
}

// Column is one component type's storage across every entity index.
type Column struct {
	chunks []*Chunk
}

// NewColumn creates an empty column.
func NewColumn() *Column {
	return &Column{}
}

func (c *Column) chunkFor(index uint32) (*Chunk, int) {
	ci := int(index / ChunkSize)
	for len(c.chunks) <= ci {
		c.chunks = append(c.chunks, &Chunk{})
	}
	return c.chunks[ci], int(index % ChunkSize)
}

// Set stores a value for entity index at the given global version.
func (c *Column) Set(index uint32, value any, version uint32) {
	chunk, local := c.chunkFor(index)
	chunk.Set(local, value, version)
}

// Get returns the value for entity index, or nil if never set or cleared.
func (c *Column) Get(index uint32) any {
	ci := int(index / ChunkSize)
	if ci >= len(c.chunks) {
		return nil
	}
	return c.chunks[ci].Get(int(index % ChunkSize))
}

// Clear sanitizes the slot for entity index without bumping its version.
func (c *Column) Clear(index uint32) {
	ci := int(index / ChunkSize)
	if ci >= len(c.chunks) {
		return
	}
	c.chunks[ci].Clear(int(index % ChunkSize))
}

// ChangedSince reports whether the chunk owning index was written at a
// version strictly greater than since.
func (c *Column) ChangedSince(index uint32, since uint32) bool {
	ci := int(index / ChunkSize)
	if ci >= len(c.chunks) {
		return false
	}
	return c.chunks[ci].Version > since
}

// Chunks exposes the backing chunk slice for iteration (snapshot sync,
// recording) without copying.
func (c *Column) Chunks() []*Chunk {
	return c.chunks
}

// EntryVersion returns the version entity index was last written at,
// independent of any other entity sharing the same chunk.
func (c *Column) EntryVersion(index uint32) uint32 {
	ci := int(index / ChunkSize)
	if ci >= len(c.chunks) {
		return 0
	}
	return c.chunks[ci].EntryVersion(int(index % ChunkSize))
}

// ChunkVersion returns the version of the chunk owning index, or 0 if the
// column does not yet cover index.
func (c *Column) ChunkVersion(index uint32) uint32 {
	ci := int(index / ChunkSize)
	if ci >= len(c.chunks) {
		return 0
	}
	return c.chunks[ci].Version
}

// EnsureCapacity grows the column to cover at least n entity indices
// without allocating new chunks on every Set call during a pooled-store
// reuse.
func (c *Column) EnsureCapacity(n uint32) {
	c.chunkFor(n)
}

// SyncChunksFrom copies every chunk of src whose version is at or after
// since into c, skipping chunks last written before since. A chunk
// written at version since itself is copied again, since it may have
// changed after the previous sync at that same version. Clean chunks are
// left untouched, so sync cost is proportional to changed chunks rather
// than to total entity count.
func (c *Column) SyncChunksFrom(src *Column, since uint32) {
	for i, srcChunk := range src.chunks {
		if srcChunk.Version < since {
			continue
		}
		for len(c.chunks) <= i {
			c.chunks = append(c.chunks, &Chunk{})
		}
		c.chunks[i].values = srcChunk.values
		c.chunks[i].entryVersions = srcChunk.entryVersions
		c.chunks[i].Version = srcChunk.Version
	}
}

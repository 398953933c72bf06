package mcdb

import (
	"fmt"

	"github.com/tilevox/tilevox/export/world"
)

// cacheSize is the number of chunks a fixup world keeps in memory before
// flushing and dropping its cache.
const cacheSize = 512

// World is a read-modify-write handle onto the persisted chunks of one
// dimension, handed to fixups after the regions they target have been
// exported and saved. Chunks are loaded lazily, edits are tracked and
// written back when the handle is closed.
//
// A World is used by a single fixup draining goroutine at a time and is not
// safe for concurrent use.
type World struct {
	p        *Provider
	dim      int
	min, max int
	chunks   map[world.ChunkPos]world.Chunk
	dirty    map[world.ChunkPos]struct{}
	err      error
}

// World opens a handle onto the persisted chunks of the dimension passed,
// with the vertical range used for chunks that have to be created fresh.
func (p *Provider) World(dim, minHeight, maxHeight int) *World {
	return &World{
		p: p, dim: dim, min: minHeight, max: maxHeight,
		chunks: make(map[world.ChunkPos]world.Chunk, cacheSize),
		dirty:  make(map[world.ChunkPos]struct{}),
	}
}

// MinHeight returns the lower vertical bound of the world's chunks.
func (w *World) MinHeight() int { return w.min }

// MaxHeight returns the upper vertical bound of the world's chunks.
func (w *World) MaxHeight() int { return w.max }

// Chunk returns the persisted chunk at the position passed, or nil if none
// is stored there. Load failures are sticky and surfaced by Close.
func (w *World) Chunk(pos world.ChunkPos) world.Chunk {
	if c, ok := w.chunks[pos]; ok {
		return c
	}
	if len(w.chunks) >= cacheSize {
		w.flush()
	}
	c, ok, err := w.p.LoadChunk(w.dim, pos)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return nil
	}
	if !ok {
		w.chunks[pos] = nil
		return nil
	}
	w.chunks[pos] = c
	return c
}

// ChunkForEditing returns the chunk at the position passed, creating an
// empty one if none is persisted, and marks it dirty.
func (w *World) ChunkForEditing(pos world.ChunkPos) world.Chunk {
	c := w.Chunk(pos)
	if c == nil {
		c = world.NewChunk(pos, w.min, w.max)
		w.chunks[pos] = c
	}
	w.dirty[pos] = struct{}{}
	return c
}

// AddChunk inserts the chunk passed, replacing any persisted chunk at its
// position on Close.
func (w *World) AddChunk(c world.Chunk) {
	w.chunks[c.Pos()] = c
	w.dirty[c.Pos()] = struct{}{}
}

// MaterialAt returns the material at the absolute block coordinates passed.
func (w *World) MaterialAt(x, y, z int) world.Material {
	c := w.Chunk(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return world.Air
	}
	return c.Material(x&0xf, y, z&0xf)
}

// SetMaterialAt sets the material at the absolute block coordinates passed,
// creating the chunk if necessary.
func (w *World) SetMaterialAt(x, y, z int, m world.Material) {
	c := w.ChunkForEditing(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	c.SetMaterial(x&0xf, y, z&0xf, m)
}

// HeightAt returns the terrain height of the column at the absolute block
// coordinates passed.
func (w *World) HeightAt(x, z int) int {
	c := w.Chunk(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return w.min
	}
	return c.Height(x&0xf, z&0xf)
}

func (w *World) flush() {
	for pos := range w.dirty {
		c := w.chunks[pos]
		if c == nil {
			continue
		}
		if err := w.p.SaveChunk(w.dim, c); err != nil && w.err == nil {
			w.err = err
		}
	}
	w.chunks = make(map[world.ChunkPos]world.Chunk, cacheSize)
	w.dirty = make(map[world.ChunkPos]struct{})
}

// Close writes all dirty chunks back to the database and returns the first
// error encountered during the handle's lifetime.
func (w *World) Close() error {
	w.flush()
	if w.err != nil {
		return fmt.Errorf("mcdb: fixup world: %w", w.err)
	}
	return nil
}

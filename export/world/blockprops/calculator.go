// Package blockprops implements the iterative fixed point calculation of per
// block light levels and leaf distances performed as the final pass of a
// region export.
package blockprops

import (
	"math"

	"github.com/tilevox/tilevox/export/world"
)

const (
	// maxLight is the highest light level and therefore the furthest a
	// block light source can reach through transparent blocks.
	maxLight = 15
	// maxLeafDistance is the furthest a leaf block can sit from a log and
	// still be considered attached to it.
	maxLeafDistance = 7
)

// MaxIterations returns the propagation iteration cap for the settings
// passed: light can travel up to 15 attenuation steps, leaf distance up to
// 7, so the cap bounds the worst case propagation distance. Propagation is
// not a true fixed point under all material configurations; reaching the cap
// yields a usable approximation and is not an error.
func MaxIterations(s world.BlockExportSettings) int {
	n := 0
	if s.BlockLight || s.SkyLight {
		n = maxLight
	}
	if s.LeafDistance && maxLeafDistance > n {
		n = maxLeafDistance
	}
	return n
}

// Box is a 3D volume of block coordinates. Minimums are inclusive, maximums
// exclusive.
type Box struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Calculator computes block properties over one grid in two phases: a per
// chunk seed phase followed by iterative propagation over a dirty volume
// until no further change occurs or the iteration cap is reached.
//
// A Calculator is used by a single region task and is not safe for
// concurrent use.
type Calculator struct {
	g world.Grid
	s world.BlockExportSettings

	dirty Box
	// chunks caches chunk lookups for the propagation sweeps, which read
	// neighbouring blocks across chunk boundaries constantly. The cache is
	// transient state cleared by Finalise.
	chunks map[world.ChunkPos]world.Chunk
}

// New creates a Calculator over the grid passed calculating the properties
// selected by the settings.
func New(g world.Grid, s world.BlockExportSettings) *Calculator {
	return &Calculator{g: g, s: s, chunks: make(map[world.ChunkPos]world.Chunk)}
}

// SeedChunk computes the chunk-local initial values for one chunk: sky light
// falling from above, block light at emitting blocks and leaf distances at
// leaves and logs. It returns the lowest and highest Y touched; low > high
// means the chunk contributed nothing.
func (c *Calculator) SeedChunk(ch world.Chunk) (low, high int) {
	low, high = math.MaxInt, math.MinInt
	mark := func(y int) {
		if y < low {
			low = y
		}
		if y > high {
			high = y
		}
	}
	for x := 0; x < world.ChunkSize; x++ {
		for z := 0; z < world.ChunkSize; z++ {
			if c.s.SkyLight {
				// Full sky light from the top of the chunk down to the
				// first light obstructing block.
				for y := ch.MaxHeight() - 1; y >= ch.MinHeight(); y-- {
					props := ch.Material(x, y, z).Properties()
					if props.Opaque {
						mark(y)
						break
					}
					ch.SetSkyLight(x, y, z, maxLight)
					if ch.Material(x, y, z) != world.Air {
						mark(y)
					}
				}
			}
			for y := ch.MinHeight(); y < ch.MaxHeight(); y++ {
				m := ch.Material(x, y, z)
				if m == world.Air {
					continue
				}
				props := m.Properties()
				if c.s.BlockLight && props.LightEmission > 0 {
					ch.SetBlockLight(x, y, z, props.LightEmission)
					mark(y)
				}
				if c.s.LeafDistance && props.Leaves {
					ch.SetLeafDistance(x, y, z, maxLeafDistance)
					mark(y)
				}
				if c.s.LeafDistance && props.Log {
					mark(y)
				}
			}
		}
	}
	return low, high
}

// SetDirtyVolume sets the volume the propagation phase iterates over.
func (c *Calculator) SetDirtyVolume(box Box) {
	c.dirty = box
}

// Propagate performs one propagation sweep across the dirty volume and
// reports whether any block changed. Callers iterate until it returns false
// or the MaxIterations cap is reached.
func (c *Calculator) Propagate() bool {
	changed := false
	for y := c.dirty.MinY; y < c.dirty.MaxY; y++ {
		for z := c.dirty.MinZ; z < c.dirty.MaxZ; z++ {
			for x := c.dirty.MinX; x < c.dirty.MaxX; x++ {
				if c.propagateBlock(x, y, z) {
					changed = true
				}
			}
		}
	}
	return changed
}

func (c *Calculator) propagateBlock(x, y, z int) bool {
	ch := c.chunkAt(x, z)
	if ch == nil {
		return false
	}
	lx, lz := x&0xf, z&0xf
	if y < ch.MinHeight() || y >= ch.MaxHeight() {
		return false
	}
	m := ch.Material(lx, y, lz)
	props := m.Properties()
	changed := false

	if c.s.BlockLight && !props.Opaque {
		level := props.LightEmission
		if n := c.maxNeighbourLight(x, y, z, world.Chunk.BlockLight); n > 0 && n-1 > level {
			level = n - 1
		}
		if level > ch.BlockLight(lx, y, lz) {
			ch.SetBlockLight(lx, y, lz, level)
			changed = true
		}
	}
	if c.s.SkyLight && !props.Opaque {
		var level uint8
		// Sky light travels downward without attenuation; sideways and
		// upward it attenuates like block light.
		if above := c.lightAt(x, y+1, z, world.Chunk.SkyLight); above == maxLight {
			level = maxLight
		} else if n := c.maxNeighbourLight(x, y, z, world.Chunk.SkyLight); n > 0 {
			level = n - 1
		}
		if level > ch.SkyLight(lx, y, lz) {
			ch.SetSkyLight(lx, y, lz, level)
			changed = true
		}
	}
	if c.s.LeafDistance && props.Leaves {
		best := uint8(maxLeafDistance)
		for _, d := range neighbourOffsets {
			nd := c.leafSourceDistance(x+d[0], y+d[1], z+d[2])
			if nd+1 < best {
				best = nd + 1
			}
		}
		if best < ch.LeafDistance(lx, y, lz) {
			ch.SetLeafDistance(lx, y, lz, best)
			changed = true
		}
	}
	return changed
}

var neighbourOffsets = [6][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}

func (c *Calculator) chunkAt(x, z int) world.Chunk {
	pos := world.ChunkPos{int32(x >> 4), int32(z >> 4)}
	if ch, ok := c.chunks[pos]; ok {
		return ch
	}
	ch := c.g.Chunk(pos)
	c.chunks[pos] = ch
	return ch
}

func (c *Calculator) lightAt(x, y, z int, get func(world.Chunk, int, int, int) uint8) uint8 {
	ch := c.chunkAt(x, z)
	if ch == nil || y < ch.MinHeight() || y >= ch.MaxHeight() {
		return 0
	}
	return get(ch, x&0xf, y, z&0xf)
}

func (c *Calculator) maxNeighbourLight(x, y, z int, get func(world.Chunk, int, int, int) uint8) uint8 {
	var best uint8
	for _, d := range neighbourOffsets {
		if l := c.lightAt(x+d[0], y+d[1], z+d[2], get); l > best {
			best = l
		}
	}
	return best
}

// leafSourceDistance returns the leaf distance contribution of the block at
// the coordinates passed: zero for logs, the stored distance for leaves and
// the cap for anything else, through which leaf distance does not travel.
func (c *Calculator) leafSourceDistance(x, y, z int) uint8 {
	ch := c.chunkAt(x, z)
	if ch == nil || y < ch.MinHeight() || y >= ch.MaxHeight() {
		return maxLeafDistance
	}
	props := ch.Material(x&0xf, y, z&0xf).Properties()
	switch {
	case props.Log:
		return 0
	case props.Leaves:
		return ch.LeafDistance(x&0xf, y, z&0xf)
	default:
		return maxLeafDistance
	}
}

// Finalise releases the transient propagation state: the dirty volume and
// the chunk cache built up during the sweeps. The Calculator may be reused
// for another seed and propagation cycle afterwards.
func (c *Calculator) Finalise() {
	c.dirty = Box{}
	c.chunks = make(map[world.ChunkPos]world.Chunk)
}

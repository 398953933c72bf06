package world

// Grid is the mutable voxel grid abstraction the region export protocol
// writes into. During generation it is backed by an in-memory region; during
// fixup application it is backed by the persisted world itself.
type Grid interface {
	// MinHeight and MaxHeight bound the vertical range of the grid's chunks.
	MinHeight() int
	MaxHeight() int
	// Chunk returns the chunk at the chunk position passed, or nil if the
	// grid holds no chunk there.
	Chunk(pos ChunkPos) Chunk
	// ChunkForEditing returns the chunk at the position passed, creating an
	// empty one first if the grid holds no chunk there. It returns nil if
	// the position lies outside the grid's bounds.
	ChunkForEditing(pos ChunkPos) Chunk
	// AddChunk inserts the chunk passed into the grid, replacing any chunk
	// already at its position.
	AddChunk(c Chunk)

	// MaterialAt and SetMaterialAt access single blocks by absolute block
	// coordinates. Reads outside the grid return air; writes outside it are
	// dropped.
	MaterialAt(x, y, z int) Material
	SetMaterialAt(x, y, z int, m Material)
	// HeightAt returns the terrain height of the column at the absolute
	// block coordinates passed, or MinHeight if no chunk is present.
	HeightAt(x, z int) int
}

// Region is the in-memory voxel grid of one export region. It stores the
// padded 34x34 chunk synthesis window; only the inner 32x32 chunk footprint
// is persisted. A Region is owned by a single region task and is not safe
// for concurrent use.
type Region struct {
	pos      RegionPos
	min, max int
	// chunks is indexed by (z+1)*(RegionChunks+2) + (x+1) with x and z
	// relative to the region's first chunk, covering one chunk of padding on
	// every side.
	chunks [(RegionChunks + 2) * (RegionChunks + 2)]Chunk
}

// NewRegion creates an empty region grid at the region position passed with
// the vertical chunk range [minHeight, maxHeight).
func NewRegion(pos RegionPos, minHeight, maxHeight int) *Region {
	return &Region{pos: pos, min: minHeight, max: maxHeight}
}

// Pos returns the region's position.
func (r *Region) Pos() RegionPos { return r.pos }

// MinHeight returns the lower vertical bound of the region's chunks.
func (r *Region) MinHeight() int { return r.min }

// MaxHeight returns the upper vertical bound of the region's chunks.
func (r *Region) MaxHeight() int { return r.max }

func (r *Region) index(pos ChunkPos) (int, bool) {
	x := int(pos[0] - r.pos[0]<<5)
	z := int(pos[1] - r.pos[1]<<5)
	if x < -1 || x > RegionChunks || z < -1 || z > RegionChunks {
		return 0, false
	}
	return (z+1)*(RegionChunks+2) + (x + 1), true
}

// Chunk returns the chunk at the position passed, or nil if the position is
// outside the padded window or no chunk was generated there.
func (r *Region) Chunk(pos ChunkPos) Chunk {
	if i, ok := r.index(pos); ok {
		return r.chunks[i]
	}
	return nil
}

// ChunkForEditing returns the chunk at the position passed, creating an
// empty one if none is present. It returns nil outside the padded window.
func (r *Region) ChunkForEditing(pos ChunkPos) Chunk {
	i, ok := r.index(pos)
	if !ok {
		return nil
	}
	if r.chunks[i] == nil {
		r.chunks[i] = NewChunk(pos, r.min, r.max)
	}
	return r.chunks[i]
}

// AddChunk inserts the chunk passed, replacing any chunk already at its
// position. Chunks outside the padded window are dropped.
func (r *Region) AddChunk(c Chunk) {
	if i, ok := r.index(c.Pos()); ok {
		r.chunks[i] = c
	}
}

// InnerChunks calls f for every generated chunk strictly inside the region's
// 32x32 chunk footprint, the part of the grid that is persisted.
func (r *Region) InnerChunks(f func(c Chunk)) {
	for z := 0; z < RegionChunks; z++ {
		for x := 0; x < RegionChunks; x++ {
			if c := r.chunks[(z+1)*(RegionChunks+2)+(x+1)]; c != nil {
				f(c)
			}
		}
	}
}

// MaterialAt returns the material at the absolute block coordinates passed.
func (r *Region) MaterialAt(x, y, z int) Material {
	c := r.Chunk(ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return Air
	}
	return c.Material(x&0xf, y, z&0xf)
}

// SetMaterialAt sets the material at the absolute block coordinates passed,
// creating the chunk if it lies within the padded window.
func (r *Region) SetMaterialAt(x, y, z int, m Material) {
	c := r.ChunkForEditing(ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c != nil {
		c.SetMaterial(x&0xf, y, z&0xf, m)
	}
}

// HeightAt returns the terrain height of the column at the absolute block
// coordinates passed.
func (r *Region) HeightAt(x, z int) int {
	c := r.Chunk(ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return r.min
	}
	return c.Height(x&0xf, z&0xf)
}

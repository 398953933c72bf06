package world

// Chunk is a mutable 16x16 voxel container of fixed vertical range. Chunks
// are created fresh for every export run, mutated through all passes of the
// region export protocol and handed to persistence afterwards.
//
// Implementations are not safe for concurrent use; a chunk is owned
// exclusively by the region task generating it.
type Chunk interface {
	// Pos returns the chunk's position.
	Pos() ChunkPos
	// MinHeight and MaxHeight bound the vertical range of the chunk. Valid
	// block Y coordinates are MinHeight <= y < MaxHeight.
	MinHeight() int
	MaxHeight() int

	// Material returns the material at the chunk-local x and z (0-15) and
	// absolute y passed. Out of range coordinates return air.
	Material(x, y, z int) Material
	// SetMaterial sets the material at the coordinates passed.
	SetMaterial(x, y, z int, m Material)

	// BlockLight and SetBlockLight access the 0-15 block light level.
	BlockLight(x, y, z int) uint8
	SetBlockLight(x, y, z int, level uint8)
	// SkyLight and SetSkyLight access the 0-15 sky light level.
	SkyLight(x, y, z int) uint8
	SetSkyLight(x, y, z int, level uint8)
	// LeafDistance and SetLeafDistance access the 0-7 distance from the
	// nearest log material, tracked for leaf materials only.
	LeafDistance(x, y, z int) uint8
	SetLeafDistance(x, y, z int, distance uint8)

	// Height returns the terrain height of the column at the chunk-local x
	// and z passed, SetHeight sets it.
	Height(x, z int) int
	SetHeight(x, z, height int)
	// Biome and SetBiome access the per-column biome.
	Biome(x, z int) Biome
	SetBiome(x, z int, b Biome)

	// TerrainPopulated reports whether terrain features have been fully
	// generated for the chunk.
	TerrainPopulated() bool
	SetTerrainPopulated(populated bool)

	// BlockEntities returns the block entity records of the chunk. The
	// returned slice must not be mutated; use AddBlockEntity and
	// RemoveBlockEntityAt instead.
	BlockEntities() []BlockEntity
	AddBlockEntity(be BlockEntity)
	// RemoveBlockEntityAt removes any block entity record at the absolute
	// block coordinates passed and reports whether one was removed.
	RemoveBlockEntityAt(x, y, z int) bool

	// Entities returns the entity records of the chunk.
	Entities() []Entity
	AddEntity(e Entity)
}

// memChunk is the in-memory Chunk implementation used for all chunks the
// pipeline synthesises itself. Materials are stored as a flat slice indexed
// by (y-minHeight)*256 + z*16 + x; light levels use half a byte per block.
type memChunk struct {
	pos                            ChunkPos
	min, max                       int
	blocks                         []Material
	blockLight, skyLight, leafDist []uint8
	heights                        [ChunkSize * ChunkSize]int16
	biomes                         [ChunkSize * ChunkSize]Biome
	blockEntities                  []BlockEntity
	entities                       []Entity
	populated                      bool
}

// NewChunk creates an empty air chunk at the position passed with the
// vertical range [minHeight, maxHeight).
func NewChunk(pos ChunkPos, minHeight, maxHeight int) Chunk {
	if maxHeight <= minHeight {
		panic("world: chunk height range is empty")
	}
	n := (maxHeight - minHeight) * ChunkSize * ChunkSize
	return &memChunk{
		pos:        pos,
		min:        minHeight,
		max:        maxHeight,
		blocks:     make([]Material, n),
		blockLight: make([]uint8, n/2),
		skyLight:   make([]uint8, n/2),
		leafDist:   make([]uint8, n/2),
	}
}

func (c *memChunk) Pos() ChunkPos  { return c.pos }
func (c *memChunk) MinHeight() int { return c.min }
func (c *memChunk) MaxHeight() int { return c.max }

func (c *memChunk) index(x, y, z int) (int, bool) {
	if x < 0 || x >= ChunkSize || z < 0 || z >= ChunkSize || y < c.min || y >= c.max {
		return 0, false
	}
	return (y-c.min)*ChunkSize*ChunkSize + z*ChunkSize + x, true
}

func (c *memChunk) Material(x, y, z int) Material {
	if i, ok := c.index(x, y, z); ok {
		return c.blocks[i]
	}
	return Air
}

func (c *memChunk) SetMaterial(x, y, z int, m Material) {
	if i, ok := c.index(x, y, z); ok {
		c.blocks[i] = m
	}
}

func nibble(arr []uint8, i int) uint8 {
	if i&1 == 0 {
		return arr[i>>1] & 0x0f
	}
	return arr[i>>1] >> 4
}

func setNibble(arr []uint8, i int, v uint8) {
	if i&1 == 0 {
		arr[i>>1] = arr[i>>1]&0xf0 | v&0x0f
	} else {
		arr[i>>1] = arr[i>>1]&0x0f | v<<4
	}
}

func (c *memChunk) BlockLight(x, y, z int) uint8 {
	if i, ok := c.index(x, y, z); ok {
		return nibble(c.blockLight, i)
	}
	return 0
}

func (c *memChunk) SetBlockLight(x, y, z int, level uint8) {
	if i, ok := c.index(x, y, z); ok {
		setNibble(c.blockLight, i, level)
	}
}

func (c *memChunk) SkyLight(x, y, z int) uint8 {
	if i, ok := c.index(x, y, z); ok {
		return nibble(c.skyLight, i)
	}
	return 0
}

func (c *memChunk) SetSkyLight(x, y, z int, level uint8) {
	if i, ok := c.index(x, y, z); ok {
		setNibble(c.skyLight, i, level)
	}
}

func (c *memChunk) LeafDistance(x, y, z int) uint8 {
	if i, ok := c.index(x, y, z); ok {
		return nibble(c.leafDist, i)
	}
	return 0
}

func (c *memChunk) SetLeafDistance(x, y, z int, distance uint8) {
	if i, ok := c.index(x, y, z); ok {
		setNibble(c.leafDist, i, distance)
	}
}

func (c *memChunk) Height(x, z int) int {
	return int(c.heights[z*ChunkSize+x])
}

func (c *memChunk) SetHeight(x, z, height int) {
	c.heights[z*ChunkSize+x] = int16(height)
}

func (c *memChunk) Biome(x, z int) Biome {
	return c.biomes[z*ChunkSize+x]
}

func (c *memChunk) SetBiome(x, z int, b Biome) {
	c.biomes[z*ChunkSize+x] = b
}

func (c *memChunk) TerrainPopulated() bool             { return c.populated }
func (c *memChunk) SetTerrainPopulated(populated bool) { c.populated = populated }

func (c *memChunk) BlockEntities() []BlockEntity { return c.blockEntities }

func (c *memChunk) AddBlockEntity(be BlockEntity) {
	c.blockEntities = append(c.blockEntities, be)
}

func (c *memChunk) RemoveBlockEntityAt(x, y, z int) bool {
	for i, be := range c.blockEntities {
		if be.X == x && be.Y == y && be.Z == z {
			c.blockEntities = append(c.blockEntities[:i], c.blockEntities[i+1:]...)
			return true
		}
	}
	return false
}

func (c *memChunk) Entities() []Entity { return c.entities }
func (c *memChunk) AddEntity(e Entity) { c.entities = append(c.entities, e) }

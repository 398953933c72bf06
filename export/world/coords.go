package world

// Spatial units of the export pipeline: a tile is the 64x64 block unit of the
// authored terrain model, a chunk is the 16x16 block unit of the produced
// voxel grid and a region is the 32x32 chunk (512x512 block) unit of parallel
// export and persistence. All conversions use arithmetic shifts so that
// negative coordinates floor toward negative infinity rather than truncate.
const (
	// TileSize is the side length in blocks of one terrain tile.
	TileSize = 64
	// ChunkSize is the side length in blocks of one chunk.
	ChunkSize = 16
	// RegionChunks is the side length in chunks of one region.
	RegionChunks = 32
	// RegionSize is the side length in blocks of one region.
	RegionSize = RegionChunks * ChunkSize
	// TileChunks is the side length in chunks of one tile.
	TileChunks = TileSize / ChunkSize
	// RegionTiles is the side length in tiles of one region.
	RegionTiles = RegionSize / TileSize
)

// ChunkPos holds the X and Z coordinates of a chunk. They are ordinary chunk
// coordinates, not block coordinates.
type ChunkPos [2]int32

// X returns the X coordinate of the chunk position.
func (p ChunkPos) X() int32 { return p[0] }

// Z returns the Z coordinate of the chunk position.
func (p ChunkPos) Z() int32 { return p[1] }

// Tile returns the position of the tile the chunk lies in.
func (p ChunkPos) Tile() TilePos {
	return TilePos{p[0] >> 2, p[1] >> 2}
}

// Region returns the position of the region the chunk lies in.
func (p ChunkPos) Region() RegionPos {
	return RegionPos{p[0] >> 5, p[1] >> 5}
}

// TilePos holds the X and Z coordinates of a terrain tile.
type TilePos [2]int32

// X returns the X coordinate of the tile position.
func (p TilePos) X() int32 { return p[0] }

// Z returns the Z coordinate of the tile position.
func (p TilePos) Z() int32 { return p[1] }

// Region returns the position of the region the tile lies in.
func (p TilePos) Region() RegionPos {
	return RegionPos{p[0] >> 3, p[1] >> 3}
}

// FirstChunk returns the position of the lowest chunk of the tile.
func (p TilePos) FirstChunk() ChunkPos {
	return ChunkPos{p[0] << 2, p[1] << 2}
}

// RegionPos holds the X and Z coordinates of an export region.
type RegionPos [2]int32

// X returns the X coordinate of the region position.
func (p RegionPos) X() int32 { return p[0] }

// Z returns the Z coordinate of the region position.
func (p RegionPos) Z() int32 { return p[1] }

// BlockRect returns the exact block footprint of the region, 512x512 blocks.
func (p RegionPos) BlockRect() Rect {
	return Rect{
		MinX: int(p[0]) << 9, MinZ: int(p[1]) << 9,
		MaxX: (int(p[0]) + 1) << 9, MaxZ: (int(p[1]) + 1) << 9,
	}
}

// PaddedBlockRect returns the block footprint of the region expanded by the
// 16 block margin that second pass layer effects may read and write.
func (p RegionPos) PaddedBlockRect() Rect {
	r := p.BlockRect()
	return Rect{MinX: r.MinX - ChunkSize, MinZ: r.MinZ - ChunkSize, MaxX: r.MaxX + ChunkSize, MaxZ: r.MaxZ + ChunkSize}
}

// ChunkBounds returns the inclusive chunk coordinate bounds of the region
// padded by one chunk on each side, the window used during synthesis so that
// neighbour dependent effects have context at the region's edges.
func (p RegionPos) ChunkBounds() (lowest, highest ChunkPos) {
	return ChunkPos{p[0]<<5 - 1, p[1]<<5 - 1}, ChunkPos{p[0]<<5 + RegionChunks, p[1]<<5 + RegionChunks}
}

// InnerChunkBounds returns the inclusive chunk coordinate bounds of the
// region footprint itself, without padding. Only chunks inside these bounds
// contribute to export statistics and are persisted.
func (p RegionPos) InnerChunkBounds() (lowest, highest ChunkPos) {
	return ChunkPos{p[0] << 5, p[1] << 5}, ChunkPos{p[0]<<5 + RegionChunks - 1, p[1]<<5 + RegionChunks - 1}
}

// TileBounds returns the inclusive tile coordinate bounds of the region
// padded by one tile on each side, the window used for layer discovery.
func (p RegionPos) TileBounds() (lowest, highest TilePos) {
	return TilePos{p[0]<<3 - 1, p[1]<<3 - 1}, TilePos{p[0]<<3 + RegionTiles, p[1]<<3 + RegionTiles}
}

// Neighbours returns the positions of the eight regions surrounding the
// region, in no particular order.
func (p RegionPos) Neighbours() [8]RegionPos {
	var n [8]RegionPos
	i := 0
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			n[i] = RegionPos{p[0] + dx, p[1] + dz}
			i++
		}
	}
	return n
}

// Rect is an axis aligned rectangle of block coordinates. MinX and MinZ are
// inclusive, MaxX and MaxZ exclusive.
type Rect struct {
	MinX, MinZ, MaxX, MaxZ int
}

// Contains reports whether the block column at (x, z) lies within the
// rectangle.
func (r Rect) Contains(x, z int) bool {
	return x >= r.MinX && x < r.MaxX && z >= r.MinZ && z < r.MaxZ
}

// Inset returns the rectangle shrunk by n blocks on every side.
func (r Rect) Inset(n int) Rect {
	return Rect{MinX: r.MinX + n, MinZ: r.MinZ + n, MaxX: r.MaxX - n, MaxZ: r.MaxZ - n}
}

// TilePresenceFunc reports whether a terrain tile exists at a tile position.
// The coordinate predicates below accept one so that they can be exercised
// without constructing a dimension.
type TilePresenceFunc func(pos TilePos) bool

// WorldChunk reports whether the chunk at the position passed lies on an
// authored terrain tile.
func WorldChunk(tileAt TilePresenceFunc, pos ChunkPos) bool {
	return tileAt(pos.Tile())
}

// BorderChunk reports whether the chunk at the position passed is a border
// chunk: no tile exists at its own tile coordinate, but a tile exists within
// a Chebyshev radius of borderSize tiles.
func BorderChunk(tileAt TilePresenceFunc, pos ChunkPos, borderSize int) bool {
	if borderSize <= 0 {
		return false
	}
	tile := pos.Tile()
	if tileAt(tile) {
		return false
	}
	for dx := int32(-int32(borderSize)); dx <= int32(borderSize); dx++ {
		for dz := int32(-int32(borderSize)); dz <= int32(borderSize); dz++ {
			if tileAt(TilePos{tile[0] + dx, tile[1] + dz}) {
				return true
			}
		}
	}
	return false
}

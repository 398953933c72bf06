package export

import (
	"github.com/tilevox/tilevox/export/world"
)

// ChunkResult is the outcome of synthesising a single chunk. A nil
// ChunkResult means no chunk exists at the position asked for.
type ChunkResult struct {
	// Chunk is the synthesised chunk.
	Chunk world.Chunk
	// Stats holds the per-column statistics of the chunk.
	Stats Stats
}

// ChunkFactory synthesises terrain chunks for a dimension. Implementations
// must be safe for concurrent use: regions are exported in parallel and each
// region asks its factory for every chunk in its padded window.
type ChunkFactory interface {
	// CreateChunk synthesises the chunk at the position passed, or returns
	// nil if the dimension has no terrain there.
	CreateChunk(pos world.ChunkPos) *ChunkResult
}

// ChunkFactoryFunc wraps a plain function into a ChunkFactory.
type ChunkFactoryFunc func(pos world.ChunkPos) *ChunkResult

// CreateChunk ...
func (f ChunkFactoryFunc) CreateChunk(pos world.ChunkPos) *ChunkResult {
	return f(pos)
}

// BorderFactory synthesises the artificial chunks placed outside a
// dimension's authored tiles when its border is not endless.
type BorderFactory interface {
	// CreateBorderChunk synthesises a border chunk at the position passed.
	CreateBorderChunk(d world.Dimension, pos world.ChunkPos) *ChunkResult
}

// chunkCreator decides per chunk position whether a chunk exists and which
// factory produces it. One chunkCreator serves a single region pass.
type chunkCreator struct {
	d       world.Dimension
	factory ChunkFactory
	border  BorderFactory
	tiles   map[world.TilePos]world.Tile
	tileSel map[world.TilePos]struct{}
	ceiling bool
}

// tileAt reports whether the dimension holds an authored tile at the tile
// position passed. It consults the region's local tile window first and falls
// back to the dimension for positions outside it.
func (c *chunkCreator) tileAt(pos world.TilePos) bool {
	if _, ok := c.tiles[pos]; ok {
		return true
	}
	return c.d.Tile(pos) != nil
}

// createChunk synthesises the chunk at the position passed, or returns nil if
// nothing exists there. Border and bedrock wall chunks are only produced for
// non-ceiling passes, and only when the whole dimension is being exported
// rather than a tile selection.
func (c *chunkCreator) createChunk(pos world.ChunkPos) *ChunkResult {
	tilePos := pos.Tile()
	if _, ok := c.tiles[tilePos]; ok {
		if c.tileSel != nil {
			if _, ok := c.tileSel[tilePos]; !ok {
				return nil
			}
		}
		return c.factory.CreateChunk(pos)
	}
	if c.ceiling || c.tileSel != nil {
		return nil
	}
	border := c.d.Border()
	if border.Endless() {
		return nil
	}
	borderSize := c.d.BorderSize()
	hasBorder := border != world.BorderNone && borderSize > 0
	if hasBorder && world.BorderChunk(c.tileAt, pos, borderSize) {
		return c.border.CreateBorderChunk(c.d, pos)
	}
	if !c.d.BedrockWall() {
		return nil
	}
	// A bedrock wall chunk is placed directly against the outermost ring of
	// world or border chunks, touching it edge on rather than corner on.
	orthogonal := [4]world.ChunkPos{
		{pos[0] - 1, pos[1]}, {pos[0] + 1, pos[1]},
		{pos[0], pos[1] - 1}, {pos[0], pos[1] + 1},
	}
	for _, adj := range orthogonal {
		if hasBorder {
			if world.BorderChunk(c.tileAt, adj, borderSize) {
				return bedrockWallChunk(c.d, pos)
			}
		} else if world.WorldChunk(c.tileAt, adj) {
			return bedrockWallChunk(c.d, pos)
		}
	}
	return nil
}

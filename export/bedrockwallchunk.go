package export

import (
	"github.com/tilevox/tilevox/export/world"
)

// bedrockWallChunk synthesises a chunk of the wall that encloses a dimension
// with a bedrock wall enabled. The chunk is solid bedrock up to one below the
// build limit, so that nothing can path over or through it.
func bedrockWallChunk(d world.Dimension, pos world.ChunkPos) *ChunkResult {
	minHeight, maxHeight := d.MinHeight(), d.MaxHeight()
	ch := world.NewChunk(pos, minHeight, maxHeight)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := minHeight; y < maxHeight-1; y++ {
				ch.SetMaterial(x, y, z, world.Bedrock)
			}
			ch.SetHeight(x, z, maxHeight-1)
			ch.SetBiome(x, z, world.BiomePlains)
		}
	}
	ch.SetTerrainPopulated(true)
	return &ChunkResult{Chunk: ch, Stats: Stats{SurfaceArea: 256}}
}

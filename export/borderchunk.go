package export

import (
	"github.com/tilevox/tilevox/export/world"
)

// defaultBorderFactory synthesises the standard border chunks: a void border
// produces a single bedrock floor, a lake border a shallow sea at the border
// level and anything else a flat stone plain.
type defaultBorderFactory struct{}

// CreateBorderChunk ...
func (defaultBorderFactory) CreateBorderChunk(d world.Dimension, pos world.ChunkPos) *ChunkResult {
	border := d.Border()
	minHeight, maxHeight := d.MinHeight(), d.MaxHeight()
	level := d.BorderLevel()
	ch := world.NewChunk(pos, minHeight, maxHeight)
	stats := Stats{SurfaceArea: 256}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			ch.SetMaterial(x, minHeight, z, world.Bedrock)
			ch.SetBiome(x, z, world.BiomePlains)
			switch border {
			case world.BorderVoid:
				ch.SetHeight(x, z, minHeight)
			case world.BorderLake:
				for y := minHeight + 1; y < level-4; y++ {
					ch.SetMaterial(x, y, z, world.Stone)
				}
				for y := level - 4; y <= level; y++ {
					ch.SetMaterial(x, y, z, world.Water)
				}
				ch.SetHeight(x, z, level)
			default:
				for y := minHeight + 1; y <= level; y++ {
					ch.SetMaterial(x, y, z, world.Stone)
				}
				ch.SetHeight(x, z, level)
			}
		}
	}
	if border == world.BorderLake {
		stats.WaterArea = 256
	} else if border != world.BorderVoid {
		stats.LandArea = 256
	}
	ch.SetTerrainPopulated(true)
	return &ChunkResult{Chunk: ch, Stats: stats}
}

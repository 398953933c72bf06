package export

import (
	"github.com/tilevox/tilevox/export/progress"
	"github.com/tilevox/tilevox/export/world"
)

// PostProcessor repairs invalid block combinations left behind by layer
// effects, such as grass buried under carved-in stone. It runs over each
// region after the second pass and before block properties are computed.
type PostProcessor interface {
	PostProcess(g world.Grid, area world.Rect, recv progress.Receiver) error
}

// defaultPostProcessor fixes the block combinations the standard layers can
// produce: grass blocks buried under opaque terrain turn to dirt and plants
// whose supporting block was carved away are removed.
type defaultPostProcessor struct{}

// PostProcess ...
func (defaultPostProcessor) PostProcess(g world.Grid, area world.Rect, recv progress.Receiver) error {
	minHeight, maxHeight := g.MinHeight(), g.MaxHeight()
	columns := float64((area.MaxX - area.MinX) * (area.MaxZ - area.MinZ))
	i := 0
	for x := area.MinX; x < area.MaxX; x++ {
		if err := progress.Cancelled(recv); err != nil {
			return err
		}
		for z := area.MinZ; z < area.MaxZ; z++ {
			height := g.HeightAt(x, z)
			top := height + 2
			if top > maxHeight {
				top = maxHeight
			}
			for y := minHeight; y < top; y++ {
				m := g.MaterialAt(x, y, z)
				switch {
				case m == world.Grass && g.MaterialAt(x, y+1, z).Properties().Opaque:
					g.SetMaterialAt(x, y, z, world.Dirt)
				case m == world.TallGrass:
					below := g.MaterialAt(x, y-1, z)
					if below != world.Grass && below != world.Dirt {
						g.SetMaterialAt(x, y, z, world.Air)
					}
				}
			}
			i++
		}
		progress.Set(recv, float64(i)/columns)
	}
	return nil
}

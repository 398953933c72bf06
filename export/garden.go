package export

import (
	"fmt"
	"slices"

	"github.com/tilevox/tilevox/export/internal/taskguard"
	"github.com/tilevox/tilevox/export/world"
)

// garden runs one pass over all garden seeds of the tiles passed. Seeds
// straddling tile boundaries appear on multiple tiles; each germinates only
// once, on the first tile that reaches it.
type garden struct {
	tiles []world.Tile
	done  map[uint64]struct{}
}

// newGarden collects the seed-carrying tiles of the window passed, ordered
// deterministically by tile position.
func newGarden(tiles map[world.TilePos]world.Tile) *garden {
	g := &garden{}
	for _, t := range tiles {
		if len(t.Seeds()) > 0 {
			g.tiles = append(g.tiles, t)
		}
	}
	slices.SortFunc(g.tiles, func(a, b world.Tile) int {
		pa, pb := a.Pos(), b.Pos()
		if pa[1] != pb[1] {
			return int(pa[1] - pb[1])
		}
		return int(pa[0] - pb[0])
	})
	return g
}

// empty reports whether the garden holds no seeds at all.
func (ga *garden) empty() bool { return len(ga.tiles) == 0 }

// pass runs one germination pass, calling f for every seed not yet processed
// in an earlier call of the same pass.
func (ga *garden) pass(f func(t world.Tile, s world.Seed) error) error {
	ga.done = make(map[uint64]struct{})
	for _, t := range ga.tiles {
		for _, s := range t.Seeds() {
			if _, ok := ga.done[s.ID()]; ok {
				continue
			}
			ga.done[s.ID()] = struct{}{}
			if err := f(t, s); err != nil {
				x, z := s.Pos()
				return fmt.Errorf("seed at %v,%v: %w", x, z, err)
			}
		}
	}
	return nil
}

// firstPass germinates the terrain shaping effect of every seed.
func (ga *garden) firstPass(d world.Dimension, g world.Grid) error {
	return ga.pass(func(t world.Tile, s world.Seed) error {
		return taskguard.Run(func() error { return s.FirstPass(d, t, g) })
	})
}

// secondPass germinates the feature placement effect of every seed.
func (ga *garden) secondPass(d world.Dimension, g world.Grid) error {
	return ga.pass(func(t world.Tile, s world.Seed) error {
		return taskguard.Run(func() error { return s.SecondPass(d, t, g) })
	})
}

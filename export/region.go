package export

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tilevox/tilevox/export/internal/mathutil"
	"github.com/tilevox/tilevox/export/internal/taskguard"
	"github.com/tilevox/tilevox/export/progress"
	"github.com/tilevox/tilevox/export/world"
	"github.com/tilevox/tilevox/export/world/blockprops"
)

// dimensionJob bundles the shared, immutable inputs of all region tasks of
// one dimension export.
type dimensionJob struct {
	dim     world.Dimension
	ceiling world.Dimension // nil when the dimension has no ceiling
	// tileSel restricts the export to a tile selection. Nil exports the
	// whole dimension.
	tileSel        map[world.TilePos]struct{}
	factory        ChunkFactory
	ceilingFactory ChunkFactory
	// chestRegion is the region the goodies chest is placed in, nil when no
	// chest is placed.
	chestRegion *world.RegionPos
}

// exportRegion runs the full region export protocol for one region: first
// pass terrain synthesis over the padded chunk window, the staged second
// pass of layer effects, post-processing and the block property pass. It
// returns the statistics of the region's inner chunks and the fixups its
// second pass deferred.
//
// Whatever was generated is persisted even when a later pass fails, so that
// a partial export leaves usable terrain behind.
func (e *Exporter) exportRegion(job *dimensionJob, pos world.RegionPos, recv progress.Receiver) (stats Stats, fixups []world.Fixup, err error) {
	d := job.dim
	start := time.Now()
	generated := false
	g := world.NewRegion(pos, d.MinHeight(), d.MaxHeight())
	defer func() {
		if !generated {
			return
		}
		saveErr := e.conf.Store.SaveRegion(g, d.ID())
		if saveErr != nil && err == nil {
			err = fmt.Errorf("save region: %w", saveErr)
		}
	}()

	tiles := regionTiles(d, pos, job.tileSel)
	progress.Message(recv, fmt.Sprintf("exporting region %v,%v of %v", pos.X(), pos.Z(), d.Name()))

	firstSpan := 0.45
	if job.ceiling != nil {
		firstSpan = 0.225
	}
	creator := &chunkCreator{d: d, factory: job.factory, border: e.conf.BorderFactory, tiles: tiles, tileSel: job.tileSel}
	stats, generated, err = e.firstPass(d, g, creator, false, progress.SubReceiver(recv, 0, firstSpan))
	if err != nil {
		return stats, nil, err
	}

	var ceilingTiles map[world.TilePos]world.Tile
	if job.ceiling != nil {
		ceilingTiles = regionTiles(job.ceiling, pos, nil)
		creator := &chunkCreator{d: job.ceiling, factory: job.ceilingFactory, tiles: ceilingTiles, ceiling: true}
		_, ceilingGenerated, err := e.firstPass(job.ceiling, g, creator, true, progress.SubReceiver(recv, 0.225, 0.225))
		if err != nil {
			return stats, nil, err
		}
		generated = generated || ceilingGenerated
	}

	if !generated {
		progress.Set(recv, 1)
		return stats, nil, nil
	}

	secondSpan := 0.1
	if job.ceiling != nil {
		secondSpan = 0.05
	}
	fixups, err = e.secondPass(d, g, pos, tiles, progress.SubReceiver(recv, 0.45, secondSpan))
	if err != nil {
		return stats, nil, err
	}
	if job.ceiling != nil {
		delta := job.ceiling.MaxHeight() - job.ceiling.CeilingHeight()
		inverted := world.InvertWorld(g, delta)
		// Fixups of a ceiling reach into terrain that the floor dimension's
		// own fixups already cover, so they are discarded.
		_, err = e.secondPass(job.ceiling, inverted, pos, ceilingTiles, progress.SubReceiver(recv, 0.5, 0.05))
		if err != nil {
			return stats, nil, err
		}
	}

	if job.chestRegion != nil && *job.chestRegion == pos {
		e.placeGoodiesChest(d, g)
	}

	err = e.conf.PostProcessor.PostProcess(g, pos.BlockRect(), progress.SubReceiver(recv, 0.55, 0.1))
	if err != nil {
		return stats, nil, fmt.Errorf("post-process: %w", err)
	}

	if e.conf.Settings.Blocks.Any() {
		if err := e.blockPropertiesPass(g, pos, progress.SubReceiver(recv, 0.65, 0.35)); err != nil {
			return stats, nil, err
		}
	}
	progress.Set(recv, 1)
	e.conf.Log.Debug("exported region",
		"region_x", pos.X(), "region_z", pos.Z(), "dimension", d.Name(),
		"fixups", len(fixups), "took", time.Since(start))
	return stats, fixups, nil
}

// regionTiles collects the authored tiles of the region's padded tile
// window, honouring a tile selection if one is active.
func regionTiles(d world.Dimension, pos world.RegionPos, sel map[world.TilePos]struct{}) map[world.TilePos]world.Tile {
	lowest, highest := pos.TileBounds()
	tiles := make(map[world.TilePos]world.Tile)
	for x := lowest[0]; x <= highest[0]; x++ {
		for z := lowest[1]; z <= highest[1]; z++ {
			tp := world.TilePos{x, z}
			if sel != nil {
				if _, ok := sel[tp]; !ok {
					continue
				}
			}
			if t := d.Tile(tp); t != nil {
				tiles[tp] = t
			}
		}
	}
	return tiles
}

// firstPass synthesises all chunks of the region's padded window through the
// chunk creator passed. Statistics are accumulated for the inner chunks
// only. A ceiling pass merges its chunks upside down into whatever the floor
// pass generated instead of inserting them directly.
func (e *Exporter) firstPass(d world.Dimension, g *world.Region, creator *chunkCreator, ceilingPass bool, recv progress.Receiver) (Stats, bool, error) {
	var stats Stats
	generated := false
	lowest, highest := g.Pos().ChunkBounds()
	innerLowest, innerHighest := g.Pos().InnerChunkBounds()
	delta := 0
	if ceilingPass {
		delta = d.MaxHeight() - d.CeilingHeight()
	}
	total := float64((highest[0] - lowest[0] + 1) * (highest[1] - lowest[1] + 1))
	i := 0
	for x := lowest[0]; x <= highest[0]; x++ {
		for z := lowest[1]; z <= highest[1]; z++ {
			if err := progress.Cancelled(recv); err != nil {
				return stats, generated, err
			}
			i++
			pos := world.ChunkPos{x, z}
			res, err := taskguard.Value(func() *ChunkResult {
				return creator.createChunk(pos)
			})
			if err != nil {
				return stats, generated, fmt.Errorf("create chunk %v,%v: %w", x, z, err)
			}
			if res == nil {
				continue
			}
			// Chunks synthesised only for the padding ring do not make the
			// region worth persisting on their own.
			inner := x >= innerLowest[0] && x <= innerHighest[0] && z >= innerLowest[1] && z <= innerHighest[1]
			if inner {
				generated = true
				if !ceilingPass {
					stats.add(res.Stats)
				}
			}
			if !ceilingPass {
				g.AddChunk(res.Chunk)
			} else {
				inverted := world.InvertChunk(res.Chunk, delta)
				dst := g.ChunkForEditing(pos)
				if err := world.MergeChunks(inverted, dst); err != nil {
					return stats, generated, fmt.Errorf("merge ceiling chunk %v,%v: %w", x, z, err)
				}
			}
			progress.Set(recv, float64(i)/total)
		}
	}
	progress.Set(recv, 1)
	return stats, generated, nil
}

// secondPass runs the staged layer effects of the region: every stage in
// fixed order, every participating layer in deterministic order within it,
// followed by the two garden germination passes. The fixups all layer
// effects deferred are returned together.
func (e *Exporter) secondPass(d world.Dimension, g world.Grid, pos world.RegionPos, tiles map[world.TilePos]world.Tile, recv progress.Receiver) ([]world.Fixup, error) {
	layers := secondPassLayers(d, tiles)
	ga := newGarden(tiles)

	steps := 0
	for _, l := range layers {
		steps += l.Exporter().Stages().Len()
	}
	if !ga.empty() {
		steps += 2
	}
	if steps == 0 {
		progress.Set(recv, 1)
		return nil, nil
	}

	area, exported := pos.PaddedBlockRect(), pos.BlockRect()
	var fixups []world.Fixup
	step := 0
	for _, stage := range world.Stages() {
		for _, l := range layers {
			exp := l.Exporter()
			if !exp.Stages().Contains(stage) {
				continue
			}
			if err := progress.Cancelled(recv); err != nil {
				return nil, err
			}
			progress.Message(recv, fmt.Sprintf("%v: %v", stage, l.Name()))
			var fx []world.Fixup
			err := taskguard.Run(func() error {
				var err error
				switch stage {
				case world.StageCarve:
					fx, err = exp.Carve(d, area, exported, g)
				case world.StageAddFeatures:
					fx, err = exp.AddFeatures(d, area, exported, g)
				}
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("layer %v, %v stage: %w", l.Name(), stage, err)
			}
			fixups = append(fixups, fx...)
			step++
			progress.Set(recv, float64(step)/float64(steps))
		}
	}

	if !ga.empty() {
		if err := ga.firstPass(d, g); err != nil {
			return nil, err
		}
		step++
		progress.Set(recv, float64(step)/float64(steps))
		if err := ga.secondPass(d, g); err != nil {
			return nil, err
		}
		progress.Set(recv, 1)
	}
	return fixups, nil
}

// secondPassLayers collects the layers of the tiles passed that take part in
// the second pass, expanded and sorted into execution order.
func secondPassLayers(d world.Dimension, tiles map[world.TilePos]world.Tile) []world.Layer {
	set := make(map[string]world.Layer)
	for _, t := range tiles {
		for _, l := range t.Layers() {
			set[l.Name()] = l
		}
	}
	for _, l := range d.MinimumLayers() {
		set[l.Name()] = l
	}
	var layers []world.Layer
	for _, l := range world.ExpandLayers(d, set) {
		if !l.Export() {
			continue
		}
		if exp := l.Exporter(); exp != nil && exp.Stages() != 0 {
			layers = append(layers, l)
		}
	}
	world.SortLayers(layers)
	return layers
}

// placeGoodiesChest places a chest with starter items next to the spawn
// point. The chest sits one block above the terrain, clamped into the
// dimension's vertical range.
func (e *Exporter) placeGoodiesChest(d world.Dimension, g world.Grid) {
	x, z := e.source.SpawnPoint()
	x, z = x+3, z+3
	y := mathutil.Clamp(g.HeightAt(x, z)+1, d.MinHeight()+1, d.MaxHeight()-1)
	c := g.ChunkForEditing(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return
	}
	c.SetMaterial(x&0xf, y, z&0xf, world.Chest)
	items := make([]map[string]any, 0, len(e.conf.Settings.GoodiesChestItems))
	for slot, item := range e.conf.Settings.GoodiesChestItems {
		items = append(items, map[string]any{
			"name":  item.Name,
			"count": int32(item.Count),
			"slot":  int32(slot),
		})
	}
	c.AddBlockEntity(world.BlockEntity{
		Type: "core:chest", X: x, Y: y, Z: z,
		Data: map[string]any{"items": items},
	})
	e.conf.Log.Debug("placed goodies chest", "x", x, "y", y, "z", z)
}

// blockPropertiesPass seeds and propagates the selected block properties
// over the region's padded window. Propagation sweeps run until a sweep
// changes nothing or the theoretical maximum number of sweeps is reached.
func (e *Exporter) blockPropertiesPass(g *world.Region, pos world.RegionPos, recv progress.Receiver) error {
	s := e.conf.Settings.Blocks
	calc := blockprops.New(g, s)
	low, high := math.MaxInt, math.MinInt
	lowest, highest := pos.ChunkBounds()
	progress.Message(recv, "calculating block properties")
	for x := lowest[0]; x <= highest[0]; x++ {
		if err := progress.Cancelled(recv); err != nil {
			return err
		}
		for z := lowest[1]; z <= highest[1]; z++ {
			c := g.Chunk(world.ChunkPos{x, z})
			if c == nil {
				continue
			}
			l, h := calc.SeedChunk(c)
			if l <= h {
				low, high = min(low, l), max(high, h)
			}
		}
		progress.Set(recv, 0.2*float64(x-lowest[0]+1)/float64(highest[0]-lowest[0]+1))
	}
	if low > high {
		progress.Set(recv, 1)
		return nil
	}
	r := pos.PaddedBlockRect()
	calc.SetDirtyVolume(blockprops.Box{
		MinX: r.MinX, MinZ: r.MinZ, MinY: low,
		MaxX: r.MaxX, MaxZ: r.MaxZ, MaxY: high + 1,
	})
	maxSweeps := blockprops.MaxIterations(s)
	for i := 0; i < maxSweeps; i++ {
		if err := progress.Cancelled(recv); err != nil {
			return err
		}
		if !calc.Propagate() {
			break
		}
		progress.Set(recv, 0.2+0.8*float64(i+1)/float64(maxSweeps))
	}
	calc.Finalise()
	progress.Set(recv, 1)
	return nil
}

// errRegion wraps an error with the region it occurred in, leaving
// cancellation untouched so that it keeps propagating as a plain signal.
func errRegion(err error, pos world.RegionPos, d world.Dimension) error {
	if err == nil || errors.Is(err, progress.ErrCancelled) {
		return err
	}
	return fmt.Errorf("export region %v,%v of %v: %w", pos.X(), pos.Z(), d.Name(), err)
}

// Package export implements the parallel region export pipeline: it turns
// an authored tile-based terrain model into a persisted chunk world, region
// by region, with cross-region effects deferred into fixups that are applied
// once their surroundings have been exported.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/tilevox/tilevox/export/internal/taskguard"
	"github.com/tilevox/tilevox/export/progress"
	"github.com/tilevox/tilevox/export/world"
)

// Dimension IDs of the standard dimensions. A ceiling dimension carries the
// bitwise complement of its floor dimension's ID.
const (
	DimensionSurface = 0
	DimensionNether  = 1
	DimensionEnd     = 2
)

// CeilingID returns the dimension ID of the ceiling belonging to the floor
// dimension ID passed.
func CeilingID(dim int) int { return ^dim }

// Source is the authored world being exported. It is implemented by a
// collaborator outside this package; the exporter only reads from it.
type Source interface {
	// Dimension returns the dimension with the ID passed, or nil if the
	// world has no such dimension.
	Dimension(id int) world.Dimension
	// SpawnPoint returns the block coordinates of the world's spawn point.
	SpawnPoint() (x, z int)
	// TileSelection returns the tiles selected for export in the dimension
	// passed. A nil map exports the whole dimension.
	TileSelection(dim int) map[world.TilePos]struct{}
}

// Config holds the collaborators and settings of an Exporter. Fields without
// a sensible default, Store and NewChunkFactory, must be set; the rest may
// be left zero.
type Config struct {
	// Log is the logger the export writes progress and timing records to.
	Log *slog.Logger
	// Settings are the user-facing export settings.
	Settings Settings
	// Store persists completed regions and reopens them for fixups.
	Store RegionStore
	// NewChunkFactory constructs the terrain synthesis factory for the
	// dimension passed. The exporters map holds the configured exporter of
	// every layer taking part in the export, keyed by layer name, so that
	// first pass layer effects can be rendered during synthesis.
	NewChunkFactory func(d world.Dimension, exporters map[string]world.LayerExporter) ChunkFactory
	// PostProcessor repairs invalid block combinations after the second
	// pass. Defaults to the standard repairs.
	PostProcessor PostProcessor
	// BorderFactory synthesises border chunks. Defaults to the standard
	// border terrain.
	BorderFactory BorderFactory
}

// New creates an Exporter over the source world passed using the
// collaborators and settings of the Config.
func (conf Config) New(source Source) *Exporter {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.PostProcessor == nil {
		conf.PostProcessor = defaultPostProcessor{}
	}
	if conf.BorderFactory == nil {
		conf.BorderFactory = defaultBorderFactory{}
	}
	conf.Settings = conf.Settings.withDefaults()
	return &Exporter{conf: conf, source: source, fixupSem: make(chan struct{}, 1)}
}

// Exporter exports the dimensions of one source world. Its methods may be
// called for several dimensions in sequence; a single ExportDimension call
// runs its regions concurrently internally.
type Exporter struct {
	conf   Config
	source Source
	// fixupSem is a single permit: at most one goroutine drains fixups at a
	// time, the others skip draining and continue exporting.
	fixupSem chan struct{}
}

// ExportDimension exports the dimension with the ID passed, together with
// its ceiling if the source has one, and returns the accumulated statistics.
// The receiver, if any, is kept informed of progress and may cancel the
// export; ctx cancellation aborts it as well.
//
// When a receiver is present, region failures are reported to it and the
// export completes with the statistics of the regions that succeeded.
// Without one, the first failure aborts the export and is returned.
func (e *Exporter) ExportDimension(ctx context.Context, dimID int, recv progress.Receiver) (Stats, error) {
	if e.conf.Store == nil || e.conf.NewChunkFactory == nil {
		return Stats{}, errors.New("export: Store and NewChunkFactory must be configured")
	}
	reported := recv != nil
	recv = progress.WithContext(ctx, recv)
	d := e.source.Dimension(dimID)
	if d == nil {
		return Stats{}, fmt.Errorf("export: no dimension with ID %v", dimID)
	}
	start := time.Now()

	job := &dimensionJob{dim: d, ceiling: e.source.Dimension(CeilingID(dimID)), tileSel: e.source.TileSelection(dimID)}
	job.factory = e.conf.NewChunkFactory(d, setupExporters(d))
	if job.ceiling != nil {
		job.ceilingFactory = e.conf.NewChunkFactory(job.ceiling, setupExporters(job.ceiling))
	}
	if dimID == DimensionSurface && e.conf.Settings.CreateGoodiesChest {
		x, z := e.source.SpawnPoint()
		r := (world.ChunkPos{int32((x + 3) >> 4), int32((z + 3) >> 4)}).Region()
		job.chestRegion = &r
	}

	set := exportRegionSet(d, job.ceiling, job.tileSel)
	ordered := orderRegions(set)
	if len(ordered) == 0 {
		return Stats{}, nil
	}
	e.conf.Log.Info("exporting dimension", "dimension", d.Name(), "regions", len(ordered), "workers", e.conf.Settings.Workers)

	tracker := newFixupTracker(set)
	par := progress.NewParallel(recv, len(ordered))
	jobs := make(chan world.RegionPos)
	abort := make(chan struct{})
	var (
		abortOnce sync.Once
		mu        sync.Mutex
		firstErr  error
		stats     Stats
		wg        sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil || errors.Is(firstErr, progress.ErrCancelled) && !errors.Is(err, progress.ErrCancelled) {
			firstErr = err
		}
		mu.Unlock()
		abortOnce.Do(func() { close(abort) })
	}

	workers := e.conf.Settings.Workers
	if workers > len(ordered) {
		workers = len(ordered)
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for pos := range jobs {
				select {
				case <-abort:
					continue
				default:
				}
				taskRecv := par.Task()
				err := taskguard.Run(func() error {
					regionStats, fixups, err := e.exportRegion(job, pos, taskRecv)
					if err != nil {
						return err
					}
					mu.Lock()
					stats.add(regionStats)
					mu.Unlock()
					tracker.regionDone(pos, fixups)
					return nil
				})
				if err != nil {
					err = errRegion(err, pos, d)
				} else {
					// Fixup batches drained here may belong to any ready
					// region, so their errors carry their own attribution.
					err = e.maybePerformFixups(d, tracker)
				}
				if err == nil {
					continue
				}
				if errors.Is(err, progress.ErrCancelled) {
					fail(progress.ErrCancelled)
					continue
				}
				if reported {
					// With a receiver attached, a failed region is reported
					// and its siblings keep going with partial results.
					recv.ReportError(err)
					e.conf.Log.Error("region export failed", "error", err)
				} else {
					fail(err)
				}
			}
		}()
	}

feed:
	for _, pos := range ordered {
		select {
		case jobs <- pos:
		case <-abort:
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	if batch := tracker.takeAll(); len(batch) > 0 {
		progress.Message(recv, "applying deferred cross-region fixes")
		if err := e.applyFixups(d, batch); err != nil {
			return Stats{}, err
		}
	}
	stats.Time = time.Since(start)
	progress.Set(recv, 1)
	e.conf.Log.Info("exported dimension",
		"dimension", d.Name(), "surface_area", stats.SurfaceArea,
		"land_area", stats.LandArea, "water_area", stats.WaterArea, "took", stats.Time)
	return stats, nil
}

// setupExporters collects the exporter of every layer taking part in the
// export of the dimension passed, expands combined layers and loads each
// exporter's settings.
func setupExporters(d world.Dimension) map[string]world.LayerExporter {
	set := make(map[string]world.Layer)
	for _, l := range d.AllLayers(false) {
		set[l.Name()] = l
	}
	for _, l := range d.MinimumLayers() {
		set[l.Name()] = l
	}
	exporters := make(map[string]world.LayerExporter)
	for name, l := range world.ExpandLayers(d, set) {
		if !l.Export() {
			continue
		}
		exp := l.Exporter()
		if exp == nil {
			continue
		}
		exp.SetSettings(d.LayerSettings(l))
		exporters[name] = exp
	}
	return exporters
}

// exportRegionSet determines the regions to export: the regions of all
// authored tiles of the dimension (or of the tile selection, if one is
// active), grown by the border and bedrock wall rings, plus the regions of
// the ceiling's tiles.
func exportRegionSet(d, ceiling world.Dimension, sel map[world.TilePos]struct{}) map[world.RegionPos]struct{} {
	set := make(map[world.RegionPos]struct{})
	if sel != nil {
		for tp := range sel {
			set[tp.Region()] = struct{}{}
		}
		return set
	}
	grow := 0
	if b := d.Border(); b != world.BorderNone && !b.Endless() {
		grow = d.BorderSize()
	}
	if d.BedrockWall() && !d.Border().Endless() {
		// The wall is one chunk thick; growing by a whole tile covers it.
		grow++
	}
	for _, t := range d.Tiles() {
		tp := t.Pos()
		for dx := int32(-int32(grow)); dx <= int32(grow); dx++ {
			for dz := int32(-int32(grow)); dz <= int32(grow); dz++ {
				set[world.TilePos{tp[0] + dx, tp[1] + dz}.Region()] = struct{}{}
			}
		}
	}
	if ceiling != nil {
		for _, t := range ceiling.Tiles() {
			set[t.Pos().Region()] = struct{}{}
		}
	}
	return set
}

// orderRegions orders the export set for scheduling: row-major by Z then X,
// except that the first two rows are interleaved so that the earliest
// regions gain exported neighbours, and with them releasable fixups, as
// soon as possible.
func orderRegions(set map[world.RegionPos]struct{}) []world.RegionPos {
	all := make([]world.RegionPos, 0, len(set))
	for pos := range set {
		all = append(all, pos)
	}
	slices.SortFunc(all, func(a, b world.RegionPos) int {
		if a[1] != b[1] {
			return int(a[1] - b[1])
		}
		return int(a[0] - b[0])
	})
	if len(all) == 0 {
		return all
	}
	var row0, row1 []world.RegionPos
	z0 := all[0][1]
	i := 0
	for ; i < len(all) && all[i][1] == z0; i++ {
		row0 = append(row0, all[i])
	}
	if i < len(all) {
		z1 := all[i][1]
		for ; i < len(all) && all[i][1] == z1; i++ {
			row1 = append(row1, all[i])
		}
	}
	// Pair the two rows column by column, so that a region is followed by
	// its southern neighbour even when either row has gaps.
	ordered := make([]world.RegionPos, 0, len(all))
	for a, b := 0, 0; a < len(row0) || b < len(row1); {
		var x int32
		switch {
		case a >= len(row0):
			x = row1[b][0]
		case b >= len(row1):
			x = row0[a][0]
		case row0[a][0] < row1[b][0]:
			x = row0[a][0]
		default:
			x = row1[b][0]
		}
		if a < len(row0) && row0[a][0] == x {
			ordered = append(ordered, row0[a])
			a++
		}
		if b < len(row1) && row1[b][0] == x {
			ordered = append(ordered, row1[b])
			b++
		}
	}
	return append(ordered, all[i:]...)
}

// defaultWorkerCount picks the region export concurrency for the machine:
// one worker per CPU, capped because every worker holds a full padded
// region window in memory.
func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

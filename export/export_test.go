package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/tilevox/tilevox/export/progress"
	"github.com/tilevox/tilevox/export/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTile is a Tile with fixed contents.
type fakeTile struct {
	pos    world.TilePos
	layers []world.Layer
	seeds  []world.Seed
}

func (t *fakeTile) Pos() world.TilePos    { return t.pos }
func (t *fakeTile) Layers() []world.Layer { return t.layers }
func (t *fakeTile) Seeds() []world.Seed   { return t.seeds }

// fakeDim is a Dimension over a fixed set of tiles.
type fakeDim struct {
	name          string
	id            int
	minHeight     int
	maxHeight     int
	ceilingHeight int
	tiles         map[world.TilePos]world.Tile
	height        int
	border        world.BorderType
	borderLevel   int
	borderSize    int
	bedrockWall   bool
	minimum       []world.Layer
}

func (d *fakeDim) Name() string { return d.name }
func (d *fakeDim) ID() int      { return d.id }

func (d *fakeDim) Tile(pos world.TilePos) world.Tile {
	if t, ok := d.tiles[pos]; ok {
		return t
	}
	return nil
}

func (d *fakeDim) Tiles() []world.Tile {
	tiles := make([]world.Tile, 0, len(d.tiles))
	for _, t := range d.tiles {
		tiles = append(tiles, t)
	}
	return tiles
}

func (d *fakeDim) MinHeight() int                { return d.minHeight }
func (d *fakeDim) MaxHeight() int                { return d.maxHeight }
func (d *fakeDim) CeilingHeight() int            { return d.ceilingHeight }
func (d *fakeDim) Height(x, z int) int           { return d.height }
func (d *fakeDim) Border() world.BorderType      { return d.border }
func (d *fakeDim) BorderLevel() int              { return d.borderLevel }
func (d *fakeDim) BorderSize() int               { return d.borderSize }
func (d *fakeDim) BedrockWall() bool             { return d.bedrockWall }
func (d *fakeDim) AllLayers(bool) []world.Layer  { return nil }
func (d *fakeDim) MinimumLayers() []world.Layer  { return d.minimum }
func (d *fakeDim) LayerSettings(world.Layer) any { return nil }

// tileGrid builds a square of tiles from (x0, z0) to (x1, z1) inclusive.
func tileGrid(x0, z0, x1, z1 int32) map[world.TilePos]world.Tile {
	tiles := make(map[world.TilePos]world.Tile)
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			pos := world.TilePos{x, z}
			tiles[pos] = &fakeTile{pos: pos}
		}
	}
	return tiles
}

// fakeSource is a Source over fixed dimensions.
type fakeSource struct {
	dims    map[int]world.Dimension
	spawnX  int
	spawnZ  int
	tileSel map[world.TilePos]struct{}
}

func (s *fakeSource) Dimension(id int) world.Dimension { return s.dims[id] }
func (s *fakeSource) SpawnPoint() (int, int)           { return s.spawnX, s.spawnZ }

func (s *fakeSource) TileSelection(dim int) map[world.TilePos]struct{} { return s.tileSel }

// memStore keeps saved chunks in memory and records the order regions were
// saved in.
type memStore struct {
	mu     sync.Mutex
	chunks map[int]map[world.ChunkPos]world.Chunk
	saved  map[world.RegionPos]struct{}
	order  []world.RegionPos
}

func newMemStore() *memStore {
	return &memStore{
		chunks: make(map[int]map[world.ChunkPos]world.Chunk),
		saved:  make(map[world.RegionPos]struct{}),
	}
}

func (s *memStore) SaveRegion(r *world.Region, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.chunks[dim]
	if m == nil {
		m = make(map[world.ChunkPos]world.Chunk)
		s.chunks[dim] = m
	}
	r.InnerChunks(func(c world.Chunk) { m[c.Pos()] = c })
	s.saved[r.Pos()] = struct{}{}
	s.order = append(s.order, r.Pos())
	return nil
}

func (s *memStore) OpenWorld(dim, minHeight, maxHeight int) (FixupWorld, error) {
	return &memWorld{s: s, dim: dim, min: minHeight, max: maxHeight}, nil
}

// exported reports whether the region passed has been saved.
func (s *memStore) exported(pos world.RegionPos) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[pos]
	return ok
}

func (s *memStore) chunk(dim int, pos world.ChunkPos) world.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[dim][pos]
}

func (s *memStore) chunkCount(dim int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks[dim])
}

// memWorld is the FixupWorld of a memStore.
type memWorld struct {
	s        *memStore
	dim      int
	min, max int
}

func (w *memWorld) MinHeight() int { return w.min }
func (w *memWorld) MaxHeight() int { return w.max }

func (w *memWorld) Chunk(pos world.ChunkPos) world.Chunk {
	return w.s.chunk(w.dim, pos)
}

func (w *memWorld) ChunkForEditing(pos world.ChunkPos) world.Chunk {
	if c := w.Chunk(pos); c != nil {
		return c
	}
	c := world.NewChunk(pos, w.min, w.max)
	w.AddChunk(c)
	return c
}

func (w *memWorld) AddChunk(c world.Chunk) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	m := w.s.chunks[w.dim]
	if m == nil {
		m = make(map[world.ChunkPos]world.Chunk)
		w.s.chunks[w.dim] = m
	}
	m[c.Pos()] = c
}

func (w *memWorld) MaterialAt(x, y, z int) world.Material {
	c := w.Chunk(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return world.Air
	}
	return c.Material(x&0xf, y, z&0xf)
}

func (w *memWorld) SetMaterialAt(x, y, z int, m world.Material) {
	w.ChunkForEditing(world.ChunkPos{int32(x >> 4), int32(z >> 4)}).SetMaterial(x&0xf, y, z&0xf, m)
}

func (w *memWorld) HeightAt(x, z int) int {
	c := w.Chunk(world.ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return w.min
	}
	return c.Height(x&0xf, z&0xf)
}

func (w *memWorld) Close() error { return nil }

// flatFactory synthesises flat terrain: stone below a grass surface at the
// surface height passed.
func flatFactory(d world.Dimension, surface int) ChunkFactory {
	return ChunkFactoryFunc(func(pos world.ChunkPos) *ChunkResult {
		c := world.NewChunk(pos, d.MinHeight(), d.MaxHeight())
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				for y := d.MinHeight(); y < surface; y++ {
					c.SetMaterial(x, y, z, world.Stone)
				}
				c.SetMaterial(x, surface, z, world.Grass)
				c.SetHeight(x, z, surface)
				c.SetBiome(x, z, world.BiomePlains)
			}
		}
		c.SetTerrainPopulated(true)
		return &ChunkResult{Chunk: c, Stats: Stats{LandArea: 256, SurfaceArea: 256}}
	})
}

// fakeLayer is a Layer whose exporter is configurable per test.
type fakeLayer struct {
	name     string
	priority int
	exporter world.LayerExporter
}

func (l *fakeLayer) Name() string                  { return l.name }
func (l *fakeLayer) Priority() int                 { return l.priority }
func (l *fakeLayer) Export() bool                  { return true }
func (l *fakeLayer) Exporter() world.LayerExporter { return l.exporter }

// fakeExporter records its stage invocations and returns configured fixups
// or errors.
type fakeExporter struct {
	name   string
	stages world.StageSet
	mu     *sync.Mutex
	calls  *[]string
	carve  func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error)
	addFx  func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error)
}

func (e *fakeExporter) SetSettings(any)        {}
func (e *fakeExporter) Stages() world.StageSet { return e.stages }

func (e *fakeExporter) record(s string) {
	if e.calls == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.calls = append(*e.calls, s)
}

func (e *fakeExporter) Carve(d world.Dimension, area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
	e.record("carve:" + e.name)
	if e.carve != nil {
		return e.carve(area, exported, g)
	}
	return nil, nil
}

func (e *fakeExporter) AddFeatures(d world.Dimension, area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
	e.record("features:" + e.name)
	if e.addFx != nil {
		return e.addFx(area, exported, g)
	}
	return nil, nil
}

func newExporterConfig(store RegionStore, surface int) Config {
	return Config{
		Log:      testLogger(),
		Settings: Settings{Workers: 1},
		Store:    store,
		NewChunkFactory: func(d world.Dimension, exporters map[string]world.LayerExporter) ChunkFactory {
			return flatFactory(d, surface)
		},
	}
}

func TestExportDimension(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 32, height: 8, tiles: tileGrid(0, 0, 1, 1)}
	store := newMemStore()
	e := newExporterConfig(store, 8).New(&fakeSource{dims: map[int]world.Dimension{0: d}})

	stats, err := e.ExportDimension(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	// Two by two tiles are 8x8 chunks of 256 columns each.
	if stats.SurfaceArea != 64*256 || stats.LandArea != 64*256 || stats.WaterArea != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Time <= 0 {
		t.Fatalf("expected a positive export duration")
	}
	if got := store.chunkCount(0); got != 64 {
		t.Fatalf("expected 64 persisted chunks, got %d", got)
	}
	c := store.chunk(0, world.ChunkPos{3, 3})
	if c == nil {
		t.Fatalf("expected chunk 3,3 to be persisted")
	}
	if got := c.Material(0, 8, 0); got != world.Grass {
		t.Fatalf("expected grass at the surface, got %v", got.Name())
	}
	if !c.TerrainPopulated() {
		t.Fatalf("expected the chunk to be marked populated")
	}
	// Nothing outside the tiles must be persisted.
	if store.chunk(0, world.ChunkPos{8, 8}) != nil {
		t.Fatalf("expected no chunk outside the authored tiles")
	}
}

func TestExportDimensionStatsIndependentOfWorkers(t *testing.T) {
	run := func(workers int) Stats {
		d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 32, height: 8, tiles: tileGrid(6, 6, 9, 9)}
		store := newMemStore()
		conf := newExporterConfig(store, 8)
		conf.Settings.Workers = workers
		stats, err := conf.New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
		if err != nil {
			t.Fatalf("export with %d workers failed: %v", workers, err)
		}
		return stats
	}
	a, b := run(1), run(4)
	if a.SurfaceArea != b.SurfaceArea || a.LandArea != b.LandArea || a.WaterArea != b.WaterArea {
		t.Fatalf("stats depend on worker count: %+v vs %+v", a, b)
	}
	// The 4x4 tile block straddles four regions.
	if a.SurfaceArea != 16*16*256 {
		t.Fatalf("unexpected surface area %d", a.SurfaceArea)
	}
}

func TestExportDimensionTileSelection(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 32, height: 8, tiles: tileGrid(0, 0, 3, 3)}
	store := newMemStore()
	sel := map[world.TilePos]struct{}{{0, 0}: {}, {1, 0}: {}}
	src := &fakeSource{dims: map[int]world.Dimension{0: d}, tileSel: sel}

	stats, err := newExporterConfig(store, 8).New(src).ExportDimension(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if stats.SurfaceArea != 2*16*256 {
		t.Fatalf("expected stats for two tiles only, got %+v", stats)
	}
	if store.chunk(0, world.ChunkPos{0, 0}) == nil {
		t.Fatalf("expected the selected tile to be exported")
	}
	if store.chunk(0, world.ChunkPos{0, 4}) != nil {
		t.Fatalf("expected unselected tiles to be skipped")
	}
}

// regionFixup records whether its region's export set neighbours were all
// exported by the time it was applied.
type regionFixup struct {
	pos     world.RegionPos
	store   *memStore
	regions map[world.RegionPos]struct{}
	mu      *sync.Mutex
	early   *[]world.RegionPos
	applied *int
}

func (f regionFixup) Apply(g world.Grid, d world.Dimension, s world.BlockExportSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.applied++
	for _, n := range f.pos.Neighbours() {
		if _, inSet := f.regions[n]; !inSet {
			continue
		}
		if !f.store.exported(n) {
			*f.early = append(*f.early, f.pos)
			return nil
		}
	}
	return nil
}

func TestFixupsWaitForNeighbours(t *testing.T) {
	// A 4x4 region area, exported with several workers. Every region defers
	// one fixup which checks that all its export set neighbours were saved
	// before it ran.
	store := newMemStore()
	var (
		mu      sync.Mutex
		early   []world.RegionPos
		applied int
	)
	regions := make(map[world.RegionPos]struct{})
	for x := int32(0); x < 4; x++ {
		for z := int32(0); z < 4; z++ {
			regions[world.RegionPos{x, z}] = struct{}{}
		}
	}
	exp := &fakeExporter{
		name:   "fixer",
		stages: world.NewStageSet(world.StageAddFeatures),
		addFx: func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
			pos := world.RegionPos{int32(exported.MinX >> 9), int32(exported.MinZ >> 9)}
			return []world.Fixup{regionFixup{
				pos: pos, store: store, regions: regions,
				mu: &mu, early: &early, applied: &applied,
			}}, nil
		},
	}
	layer := &fakeLayer{name: "fixer", exporter: exp}

	// One tile per region keeps the terrain small while still covering the
	// full 4x4 region neighbourhood graph.
	tiles := make(map[world.TilePos]world.Tile)
	for x := int32(0); x < 4; x++ {
		for z := int32(0); z < 4; z++ {
			pos := world.TilePos{x*8 + 3, z*8 + 3}
			tiles[pos] = &fakeTile{pos: pos}
		}
	}
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tiles, minimum: []world.Layer{layer}}
	conf := newExporterConfig(store, 4)
	conf.Settings.Workers = 4
	_, err := conf.New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if applied != 16 {
		t.Fatalf("expected 16 fixups applied exactly once, got %d", applied)
	}
	if len(early) > 0 {
		t.Fatalf("fixups applied before their neighbours were exported: %v", early)
	}
}

func TestSecondPassStageOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	both := world.NewStageSet(world.StageCarve, world.StageAddFeatures)
	second := &fakeLayer{name: "caves", priority: 2, exporter: &fakeExporter{name: "caves", stages: both, mu: &mu, calls: &calls}}
	first := &fakeLayer{name: "rivers", priority: 1, exporter: &fakeExporter{name: "rivers", stages: both, mu: &mu, calls: &calls}}

	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tileGrid(0, 0, 0, 0), minimum: []world.Layer{second, first}}
	store := newMemStore()
	_, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	want := []string{"carve:rivers", "carve:caves", "features:rivers", "features:caves"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, calls)
		}
	}
}

func TestExportDimensionLayerError(t *testing.T) {
	boom := errors.New("boom")
	exp := &fakeExporter{
		name:   "broken",
		stages: world.NewStageSet(world.StageCarve),
		carve: func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
			return nil, boom
		},
	}
	layer := &fakeLayer{name: "broken", exporter: exp}
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tileGrid(0, 0, 0, 0), minimum: []world.Layer{layer}}
	store := newMemStore()
	_, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the layer error to surface, got %v", err)
	}
	// The terrain generated before the failure is still persisted.
	if store.chunkCount(0) == 0 {
		t.Fatalf("expected the first pass terrain to be persisted despite the failure")
	}
}

func TestExportDimensionCancellation(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4, tiles: tileGrid(0, 0, 0, 0)}
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(ctx, 0, nil)
	if !errors.Is(err, progress.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestExportDimensionUnknown(t *testing.T) {
	store := newMemStore()
	_, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{}}).ExportDimension(context.Background(), 7, nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown dimension")
	}
}

func TestExportDimensionCeiling(t *testing.T) {
	floor := &fakeDim{name: "cavern floor", minHeight: 0, maxHeight: 32, height: 8, tiles: tileGrid(0, 0, 0, 0)}
	ceiling := &fakeDim{name: "cavern ceiling", id: CeilingID(0), minHeight: 0, maxHeight: 32,
		ceilingHeight: 16, height: 2, tiles: tileGrid(0, 0, 0, 0)}
	store := newMemStore()
	conf := Config{
		Log:      testLogger(),
		Settings: Settings{Workers: 1},
		Store:    store,
		NewChunkFactory: func(d world.Dimension, exporters map[string]world.LayerExporter) ChunkFactory {
			if d.ID() < 0 {
				// The ceiling builds two layers of bedrock from its own
				// bottom up.
				return ChunkFactoryFunc(func(pos world.ChunkPos) *ChunkResult {
					c := world.NewChunk(pos, d.MinHeight(), d.MaxHeight())
					for x := 0; x < 16; x++ {
						for z := 0; z < 16; z++ {
							c.SetMaterial(x, 0, z, world.Bedrock)
							c.SetMaterial(x, 1, z, world.Stone)
							c.SetHeight(x, z, 1)
						}
					}
					return &ChunkResult{Chunk: c}
				})
			}
			return flatFactory(d, 8)
		},
	}
	src := &fakeSource{dims: map[int]world.Dimension{0: floor, CeilingID(0): ceiling}}
	_, err := conf.New(src).ExportDimension(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	c := store.chunk(0, world.ChunkPos{0, 0})
	if c == nil {
		t.Fatalf("expected chunk 0,0 to be persisted")
	}
	// With a build height of 16 in a 32 high range the ceiling is shifted
	// down 16 after inversion: its bottom bedrock ends up at y 15.
	if got := c.Material(0, 15, 0); got != world.Bedrock {
		t.Fatalf("expected inverted ceiling bedrock at y 15, got %v", got.Name())
	}
	if got := c.Material(0, 14, 0); got != world.Stone {
		t.Fatalf("expected inverted ceiling stone at y 14, got %v", got.Name())
	}
	// The floor terrain below stays untouched.
	if got := c.Material(0, 8, 0); got != world.Grass {
		t.Fatalf("expected floor grass at y 8, got %v", got.Name())
	}
}

func TestGoodiesChest(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 32, height: 8, tiles: tileGrid(0, 0, 1, 1)}
	store := newMemStore()
	conf := newExporterConfig(store, 8)
	conf.Settings.CreateGoodiesChest = true
	src := &fakeSource{dims: map[int]world.Dimension{0: d}, spawnX: 100, spawnZ: 100}
	if _, err := conf.New(src).ExportDimension(context.Background(), 0, nil); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	c := store.chunk(0, world.ChunkPos{6, 6})
	if c == nil {
		t.Fatalf("expected the spawn chunk to be persisted")
	}
	// The chest sits at spawn+(3,3), one block above the surface.
	if got := c.Material(7, 9, 7); got != world.Chest {
		t.Fatalf("expected a chest above the surface, got %v", got.Name())
	}
	bes := c.BlockEntities()
	if len(bes) != 1 || bes[0].Type != "core:chest" || bes[0].X != 103 || bes[0].Y != 9 || bes[0].Z != 103 {
		t.Fatalf("unexpected chest block entity: %+v", bes)
	}
	items, ok := bes[0].Data["items"].([]map[string]any)
	if !ok || len(items) == 0 {
		t.Fatalf("expected starter items in the chest, got %+v", bes[0].Data)
	}
}

// countingSeed counts its germination calls.
type countingSeed struct {
	id            uint64
	x, z          int
	first, second *int
}

func (s countingSeed) ID() uint64      { return s.id }
func (s countingSeed) Pos() (int, int) { return s.x, s.z }

func (s countingSeed) FirstPass(d world.Dimension, t world.Tile, g world.Grid) error {
	*s.first++
	return nil
}

func (s countingSeed) SecondPass(d world.Dimension, t world.Tile, g world.Grid) error {
	*s.second++
	return nil
}

func TestGardenSeedDeduplication(t *testing.T) {
	var first, second int
	// The same seed appears on two adjacent tiles.
	seed := countingSeed{id: 42, x: 63, z: 32, first: &first, second: &second}
	tiles := map[world.TilePos]world.Tile{
		{0, 0}: &fakeTile{pos: world.TilePos{0, 0}, seeds: []world.Seed{seed}},
		{1, 0}: &fakeTile{pos: world.TilePos{1, 0}, seeds: []world.Seed{seed}},
	}
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4, tiles: tiles}
	store := newMemStore()
	if _, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("expected each garden pass to germinate the seed once, got %d and %d", first, second)
	}
}

func TestOrderRegions(t *testing.T) {
	set := map[world.RegionPos]struct{}{
		{0, 0}: {}, {1, 0}: {}, {2, 0}: {},
		{0, 1}: {}, {1, 1}: {},
		{0, 2}: {},
	}
	got := orderRegions(set)
	want := []world.RegionPos{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {0, 2}}
	if len(got) != len(want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestOrderRegionsGappedRows(t *testing.T) {
	// The first two rows pair up by column, so gaps in either row do not
	// shift the pairing.
	set := map[world.RegionPos]struct{}{
		{0, 0}: {}, {2, 0}: {},
		{1, 1}: {}, {2, 1}: {},
		{0, 2}: {},
	}
	got := orderRegions(set)
	want := []world.RegionPos{{0, 0}, {1, 1}, {2, 0}, {2, 1}, {0, 2}}
	if len(got) != len(want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestExportRegionSet(t *testing.T) {
	d := &fakeDim{
		tiles: tileGrid(0, 0, 0, 0), border: world.BorderLake, borderSize: 1, bedrockWall: true,
	}
	set := exportRegionSet(d, nil, nil)
	// One tile grown by one border tile and one wall tile reaches into the
	// negative regions.
	want := []world.RegionPos{{0, 0}, {-1, 0}, {0, -1}, {-1, -1}}
	if len(set) != len(want) {
		t.Fatalf("expected %d regions, got %v", len(want), set)
	}
	for _, pos := range want {
		if _, ok := set[pos]; !ok {
			t.Fatalf("expected region %v in the export set", pos)
		}
	}

	// An endless border adds nothing, even when a wall is configured: the
	// game generates everything beyond the tiles.
	d.border, d.bedrockWall = world.BorderEndless, true
	set = exportRegionSet(d, nil, nil)
	if len(set) != 1 {
		t.Fatalf("expected a single region with an endless border, got %v", set)
	}

	// A tile selection maps selected tiles to their regions directly.
	sel := map[world.TilePos]struct{}{{9, 9}: {}}
	set = exportRegionSet(d, nil, sel)
	if len(set) != 1 {
		t.Fatalf("expected a single region for the selection, got %v", set)
	}
	if _, ok := set[world.RegionPos{1, 1}]; !ok {
		t.Fatalf("expected region 1,1 for tile 9,9, got %v", set)
	}
}

func TestCreateChunkPolicy(t *testing.T) {
	d := &fakeDim{
		minHeight: 0, maxHeight: 32, tiles: tileGrid(0, 0, 0, 0),
		border: world.BorderLake, borderLevel: 10, borderSize: 1, bedrockWall: true,
	}
	creator := &chunkCreator{
		d:       d,
		factory: flatFactory(d, 8),
		border:  defaultBorderFactory{},
		tiles:   regionTiles(d, world.RegionPos{0, 0}, nil),
	}

	if res := creator.createChunk(world.ChunkPos{0, 0}); res == nil || res.Chunk.Material(0, 8, 0) != world.Grass {
		t.Fatalf("expected world terrain on the tile")
	}
	// One tile out: a lake border chunk with water at the border level.
	res := creator.createChunk(world.ChunkPos{4, 0})
	if res == nil {
		t.Fatalf("expected a border chunk one tile out")
	}
	if got := res.Chunk.Material(0, 10, 0); got != world.Water {
		t.Fatalf("expected border water at the border level, got %v", got.Name())
	}
	if res.Stats.WaterArea != 256 {
		t.Fatalf("expected a full water area for a lake border chunk, got %+v", res.Stats)
	}
	// Two tiles out, adjacent to the border ring: the bedrock wall.
	res = creator.createChunk(world.ChunkPos{8, 0})
	if res == nil {
		t.Fatalf("expected a bedrock wall chunk against the border")
	}
	if got := res.Chunk.Material(0, 30, 0); got != world.Bedrock {
		t.Fatalf("expected wall bedrock, got %v", got.Name())
	}
	if got := res.Chunk.Height(0, 0); got != 31 {
		t.Fatalf("expected wall height one below the build limit, got %d", got)
	}
	// Beyond the wall nothing is generated.
	if res := creator.createChunk(world.ChunkPos{9, 0}); res != nil {
		t.Fatalf("expected no chunk beyond the wall")
	}
}

func TestBedrockWallOrthogonalAdjacency(t *testing.T) {
	// No border: the wall hugs the world chunks themselves, touching them
	// edge on. A chunk that only shares a corner stays empty.
	d := &fakeDim{minHeight: 0, maxHeight: 32, tiles: tileGrid(0, 0, 0, 0), bedrockWall: true}
	creator := &chunkCreator{
		d:       d,
		factory: flatFactory(d, 8),
		border:  defaultBorderFactory{},
		tiles:   regionTiles(d, world.RegionPos{0, 0}, nil),
	}

	res := creator.createChunk(world.ChunkPos{4, 3})
	if res == nil || res.Chunk.Material(0, 0, 0) != world.Bedrock {
		t.Fatalf("expected a wall chunk beside the world chunk")
	}
	if res := creator.createChunk(world.ChunkPos{4, 4}); res != nil {
		t.Fatalf("expected no wall chunk at a corner-only contact")
	}
}

func TestBedrockWallZeroSizeBorder(t *testing.T) {
	// A border of size zero produces no border ring, so the wall falls back
	// to hugging the world chunks directly.
	d := &fakeDim{
		minHeight: 0, maxHeight: 32, tiles: tileGrid(0, 0, 0, 0),
		border: world.BorderLake, borderLevel: 10, borderSize: 0, bedrockWall: true,
	}
	creator := &chunkCreator{
		d:       d,
		factory: flatFactory(d, 8),
		border:  defaultBorderFactory{},
		tiles:   regionTiles(d, world.RegionPos{0, 0}, nil),
	}

	res := creator.createChunk(world.ChunkPos{4, 0})
	if res == nil {
		t.Fatalf("expected a wall chunk beside the world chunks")
	}
	if got := res.Chunk.Material(0, 10, 0); got != world.Bedrock {
		t.Fatalf("expected wall bedrock, not border terrain, got %v", got.Name())
	}
	if res := creator.createChunk(world.ChunkPos{5, 0}); res != nil {
		t.Fatalf("expected no chunk beyond the wall")
	}
}

// recordingReceiver records reported errors for inspection.
type recordingReceiver struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReceiver) SetMessage(string)   {}
func (r *recordingReceiver) SetProgress(float64) {}
func (r *recordingReceiver) Reset()              {}
func (r *recordingReceiver) Cancelled() error    { return nil }

func (r *recordingReceiver) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestExportDimensionPartialFailureWithReceiver(t *testing.T) {
	// Two regions, one of which fails in its carve stage. With a receiver
	// attached the failure is reported and the export completes with the
	// statistics of the surviving region.
	boom := errors.New("boom")
	exp := &fakeExporter{
		name:   "broken",
		stages: world.NewStageSet(world.StageCarve),
		carve: func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
			if exported.MinX>>9 == 1 {
				return nil, boom
			}
			return nil, nil
		},
	}
	layer := &fakeLayer{name: "broken", exporter: exp}
	tiles := tileGrid(0, 0, 0, 0)
	for pos, tile := range tileGrid(8, 0, 8, 0) {
		tiles[pos] = tile
	}
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tiles, minimum: []world.Layer{layer}}
	store := newMemStore()
	recv := &recordingReceiver{}

	stats, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).
		ExportDimension(context.Background(), 0, recv)
	if err != nil {
		t.Fatalf("expected the export to complete with partial results, got %v", err)
	}
	if stats.SurfaceArea != 16*256 {
		t.Fatalf("expected the surviving region's statistics, got %+v", stats)
	}
	recv.mu.Lock()
	defer recv.mu.Unlock()
	if len(recv.errs) != 1 || !errors.Is(recv.errs[0], boom) {
		t.Fatalf("expected the region failure to be reported, got %v", recv.errs)
	}
	// The failed region's first pass terrain is still persisted.
	if !store.exported(world.RegionPos{0, 0}) || !store.exported(world.RegionPos{1, 0}) {
		t.Fatalf("expected both regions to be persisted")
	}
}

// recordingPostProcessor records the areas it was asked to repair.
type recordingPostProcessor struct {
	mu    sync.Mutex
	areas []world.Rect
}

func (p *recordingPostProcessor) PostProcess(g world.Grid, area world.Rect, recv progress.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.areas = append(p.areas, area)
	return nil
}

func TestPostProcessCoversRegionFootprint(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4, tiles: tileGrid(0, 0, 0, 0)}
	store := newMemStore()
	pp := &recordingPostProcessor{}
	conf := newExporterConfig(store, 4)
	conf.PostProcessor = pp
	if _, err := conf.New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	want := world.Rect{MinX: 0, MinZ: 0, MaxX: 512, MaxZ: 512}
	if len(pp.areas) != 1 || pp.areas[0] != want {
		t.Fatalf("expected the post-processor to cover %+v, got %v", want, pp.areas)
	}
}

func TestPaddingOnlyRegionNotSaved(t *testing.T) {
	// Region 1,1 touches the tile at 7,7 only through its padding chunks, so
	// nothing of it is worth persisting.
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tileGrid(7, 7, 7, 7), border: world.BorderEndless, bedrockWall: true}
	store := newMemStore()
	e := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}})
	job := &dimensionJob{dim: d, factory: flatFactory(d, 4)}

	stats, fixups, err := e.exportRegion(job, world.RegionPos{1, 1}, nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if stats != (Stats{}) || len(fixups) != 0 {
		t.Fatalf("expected no results for a padding-only region, got %+v and %v", stats, fixups)
	}
	if store.exported(world.RegionPos{1, 1}) {
		t.Fatalf("expected the padding-only region not to be saved")
	}
}

// failingFixup fails on application.
type failingFixup struct {
	err error
}

func (f failingFixup) Apply(g world.Grid, d world.Dimension, s world.BlockExportSettings) error {
	return f.err
}

func TestFixupErrorAttribution(t *testing.T) {
	boom := errors.New("boom")
	exp := &fakeExporter{
		name:   "fixer",
		stages: world.NewStageSet(world.StageAddFeatures),
		addFx: func(area, exported world.Rect, g world.Grid) ([]world.Fixup, error) {
			return []world.Fixup{failingFixup{err: boom}}, nil
		},
	}
	layer := &fakeLayer{name: "fixer", exporter: exp}
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4,
		tiles: tileGrid(0, 0, 0, 0), minimum: []world.Layer{layer}}
	store := newMemStore()

	_, err := newExporterConfig(store, 4).New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fixup error to surface, got %v", err)
	}
	// The error names the region the fixups belong to, not the region whose
	// completion triggered the drain.
	if !strings.Contains(err.Error(), "apply fixups of region") || strings.Contains(err.Error(), "export region") {
		t.Fatalf("unexpected fixup error attribution: %v", err)
	}
}

func TestExportDimensionFactoryPanic(t *testing.T) {
	d := &fakeDim{name: "surface", minHeight: 0, maxHeight: 16, height: 4, tiles: tileGrid(0, 0, 0, 0)}
	store := newMemStore()
	conf := newExporterConfig(store, 4)
	conf.NewChunkFactory = func(d world.Dimension, exporters map[string]world.LayerExporter) ChunkFactory {
		return ChunkFactoryFunc(func(pos world.ChunkPos) *ChunkResult { panic("kaboom") })
	}

	_, err := conf.New(&fakeSource{dims: map[int]world.Dimension{0: d}}).ExportDimension(context.Background(), 0, nil)
	if err == nil || !strings.Contains(err.Error(), "create chunk") || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected the factory panic to surface as a chunk error, got %v", err)
	}
}

package mcdb

import (
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/tilevox/tilevox/export/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSaveRegionRoundTrip(t *testing.T) {
	p, err := Config{Log: testLogger()}.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	r := world.NewRegion(world.RegionPos{0, 0}, 0, 64)
	c := r.ChunkForEditing(world.ChunkPos{2, 3})
	c.SetMaterial(1, 10, 1, world.Stone)
	c.SetMaterial(1, 11, 1, world.Grass)
	c.SetBlockLight(1, 12, 1, 9)
	c.SetSkyLight(1, 13, 1, 15)
	c.SetLeafDistance(1, 14, 1, 3)
	c.SetHeight(1, 1, 11)
	c.SetBiome(1, 1, world.BiomePlains)
	c.SetTerrainPopulated(true)
	c.AddBlockEntity(world.BlockEntity{Type: "core:chest", X: 33, Y: 10, Z: 49, Data: map[string]any{"key": "value"}})
	c.AddEntity(world.Entity{ID: uuid.New(), Type: "core:cow", Pos: mgl64.Vec3{33.5, 12, 49.5}})
	// A padding chunk outside the inner footprint must not be persisted.
	r.ChunkForEditing(world.ChunkPos{-1, -1}).SetMaterial(0, 0, 0, world.Bedrock)

	if err := p.SaveRegion(r, 0); err != nil {
		t.Fatalf("save region: %v", err)
	}

	loaded, ok, err := p.LoadChunk(0, world.ChunkPos{2, 3})
	if err != nil {
		t.Fatalf("load chunk: %v", err)
	}
	if !ok {
		t.Fatalf("expected the chunk to exist")
	}
	if got := loaded.Material(1, 10, 1); got != world.Stone {
		t.Fatalf("expected stone after round trip, got %v", got.Name())
	}
	if got := loaded.Material(1, 11, 1); got != world.Grass {
		t.Fatalf("expected grass after round trip, got %v", got.Name())
	}
	if got := loaded.BlockLight(1, 12, 1); got != 9 {
		t.Fatalf("expected block light 9 after round trip, got %d", got)
	}
	if got := loaded.SkyLight(1, 13, 1); got != 15 {
		t.Fatalf("expected sky light 15 after round trip, got %d", got)
	}
	if got := loaded.LeafDistance(1, 14, 1); got != 3 {
		t.Fatalf("expected leaf distance 3 after round trip, got %d", got)
	}
	if got := loaded.Height(1, 1); got != 11 {
		t.Fatalf("expected height 11 after round trip, got %d", got)
	}
	if !loaded.TerrainPopulated() {
		t.Fatalf("expected the populated flag to survive the round trip")
	}
	bes := loaded.BlockEntities()
	if len(bes) != 1 || bes[0].Type != "core:chest" || bes[0].X != 33 {
		t.Fatalf("unexpected block entities after round trip: %+v", bes)
	}
	if got := bes[0].Data["key"]; got != "value" {
		t.Fatalf("expected block entity data to survive, got %v", got)
	}
	ents := loaded.Entities()
	if len(ents) != 1 || ents[0].Type != "core:cow" {
		t.Fatalf("unexpected entities after round trip: %+v", ents)
	}
	if ents[0].Pos != (mgl64.Vec3{33.5, 12, 49.5}) {
		t.Fatalf("unexpected entity position after round trip: %v", ents[0].Pos)
	}

	if _, ok, err := p.LoadChunk(0, world.ChunkPos{-1, -1}); err != nil || ok {
		t.Fatalf("expected the padding chunk to be absent, ok %v, err %v", ok, err)
	}
}

func TestLoadChunkMissing(t *testing.T) {
	p, err := Config{Log: testLogger()}.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if _, ok, err := p.LoadChunk(0, world.ChunkPos{5, 5}); err != nil || ok {
		t.Fatalf("expected no chunk, ok %v, err %v", ok, err)
	}
}

func TestWorldHandleEdits(t *testing.T) {
	p, err := Config{Log: testLogger()}.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	r := world.NewRegion(world.RegionPos{0, 0}, 0, 64)
	r.ChunkForEditing(world.ChunkPos{0, 0}).SetMaterial(0, 5, 0, world.Stone)
	if err := p.SaveRegion(r, 0); err != nil {
		t.Fatalf("save region: %v", err)
	}

	w := p.World(0, 0, 64)
	if got := w.MaterialAt(0, 5, 0); got != world.Stone {
		t.Fatalf("expected stone through the fixup handle, got %v", got.Name())
	}
	w.SetMaterialAt(0, 6, 0, world.Dirt)
	// An edit in a chunk that was never persisted creates it.
	w.SetMaterialAt(40, 6, 40, world.Grass)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	loaded, ok, err := p.LoadChunk(0, world.ChunkPos{0, 0})
	if err != nil || !ok {
		t.Fatalf("load chunk: ok %v, err %v", ok, err)
	}
	if got := loaded.Material(0, 6, 0); got != world.Dirt {
		t.Fatalf("expected the edit to be written back, got %v", got.Name())
	}
	created, ok, err := p.LoadChunk(0, world.ChunkPos{2, 2})
	if err != nil || !ok {
		t.Fatalf("load created chunk: ok %v, err %v", ok, err)
	}
	if got := created.Material(8, 6, 8); got != world.Grass {
		t.Fatalf("expected the created chunk to hold grass, got %v", got.Name())
	}
}

func TestKeys(t *testing.T) {
	p, err := Config{Log: testLogger()}.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	r := world.NewRegion(world.RegionPos{0, 0}, 0, 64)
	r.ChunkForEditing(world.ChunkPos{1, 2})
	r.ChunkForEditing(world.ChunkPos{3, 4})
	if err := p.SaveRegion(r, 1); err != nil {
		t.Fatalf("save region: %v", err)
	}

	found := map[world.ChunkPos]int{}
	err = p.Keys(func(dim int, pos world.ChunkPos) {
		if dim != 1 {
			t.Fatalf("expected dimension 1, got %d", dim)
		}
		found[pos]++
	})
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(found) != 2 || found[world.ChunkPos{1, 2}] != 1 || found[world.ChunkPos{3, 4}] != 1 {
		t.Fatalf("unexpected chunk keys: %v", found)
	}
}

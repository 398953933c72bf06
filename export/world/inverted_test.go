package world

import "testing"

func TestInvertChunk(t *testing.T) {
	c := NewChunk(ChunkPos{0, 0}, 0, 64)
	c.SetMaterial(0, 0, 0, Bedrock)
	c.SetMaterial(0, 10, 0, Stone)
	c.SetHeight(0, 0, 10)

	inv := InvertChunk(c, 0)
	// The bottom of the chunk appears at the top of the inverted view.
	if got := inv.Material(0, 63, 0); got != Bedrock {
		t.Fatalf("expected bedrock at the inverted top, got %v", got.Name())
	}
	if got := inv.Material(0, 53, 0); got != Stone {
		t.Fatalf("expected stone at reflected height, got %v", got.Name())
	}
	if got := inv.Height(0, 0); got != 53 {
		t.Fatalf("expected reflected height 53, got %d", got)
	}
	// Writing through the inverted view lands at the reflected height.
	inv.SetMaterial(5, 60, 5, Dirt)
	if got := c.Material(5, 3, 5); got != Dirt {
		t.Fatalf("inverted write did not reflect, got %v", got.Name())
	}
}

func TestInvertChunkDelta(t *testing.T) {
	// A ceiling with a build height of 32 in a 64 high chunk shifts down by
	// 32 after inversion, so its lowest block ends up at y 31.
	c := NewChunk(ChunkPos{0, 0}, 0, 64)
	c.SetMaterial(0, 0, 0, Bedrock)
	inv := InvertChunk(c, 32)
	if got := inv.Material(0, 31, 0); got != Bedrock {
		t.Fatalf("expected bedrock at y 31 with delta 32, got %v", got.Name())
	}
}

func TestInvertChunkBlockEntities(t *testing.T) {
	c := NewChunk(ChunkPos{0, 0}, 0, 64)
	inv := InvertChunk(c, 0)
	inv.AddBlockEntity(BlockEntity{Type: "core:chest", X: 0, Y: 60, Z: 0})

	if bes := c.BlockEntities(); len(bes) != 1 || bes[0].Y != 3 {
		t.Fatalf("expected the record at reflected y 3 in the inner chunk, got %+v", bes)
	}
	if bes := inv.BlockEntities(); len(bes) != 1 || bes[0].Y != 60 {
		t.Fatalf("expected the record at y 60 through the inverted view, got %+v", bes)
	}
}

func TestInvertWorldRoundTrip(t *testing.T) {
	r := NewRegion(RegionPos{0, 0}, 0, 64)
	inv := InvertWorld(r, 0)
	inv.SetMaterialAt(100, 50, 100, Stone)
	if got := r.MaterialAt(100, 13, 100); got != Stone {
		t.Fatalf("inverted world write did not reflect, got %v", got.Name())
	}
	if got := inv.MaterialAt(100, 50, 100); got != Stone {
		t.Fatalf("inverted world read did not round trip, got %v", got.Name())
	}
}

type fixedTunnels struct {
	floor, roof int
	inside      bool
}

func (t fixedTunnels) Tunnel(x, z int) (int, int, bool) { return t.floor, t.roof, t.inside }

func TestRoofDimension(t *testing.T) {
	d := &testDimension{minHeight: 0, maxHeight: 64, heights: func(x, z int) int { return 20 }}

	roof := NewRoofDimension(d, fixedTunnels{})
	if got := roof.Height(0, 0); got != 43 {
		t.Fatalf("expected reflected height 43, got %d", got)
	}
	// Inside a collapsed tunnel the floor level replaces the authored
	// height.
	roof = NewRoofDimension(d, fixedTunnels{floor: 30, roof: 25, inside: true})
	if got := roof.Height(0, 0); got != 33 {
		t.Fatalf("expected floor based height 33, got %d", got)
	}
}

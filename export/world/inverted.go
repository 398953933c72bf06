package world

// invertedChunk presents a ceiling chunk upside down: block reads and writes
// at height y are redirected to the reflection of y about the chunk's
// vertical range, shifted down by delta so a lower ceiling ends up at the
// top of the destination range.
type invertedChunk struct {
	c     Chunk
	delta int
}

// InvertChunk wraps the chunk passed in a height inverting adapter. The
// reflection point is maxHeight + minHeight - 1; delta shifts the reflected
// blocks down, used when the ceiling dimension's build height is lower than
// the destination grid's.
func InvertChunk(c Chunk, delta int) Chunk {
	return &invertedChunk{c: c, delta: delta}
}

func (i *invertedChunk) reflect(y int) int {
	return i.c.MaxHeight() + i.c.MinHeight() - 1 - y - i.delta
}

func (i *invertedChunk) Pos() ChunkPos  { return i.c.Pos() }
func (i *invertedChunk) MinHeight() int { return i.c.MinHeight() }
func (i *invertedChunk) MaxHeight() int { return i.c.MaxHeight() }

func (i *invertedChunk) Material(x, y, z int) Material {
	return i.c.Material(x, i.reflect(y), z)
}

func (i *invertedChunk) SetMaterial(x, y, z int, m Material) {
	i.c.SetMaterial(x, i.reflect(y), z, m)
}

func (i *invertedChunk) BlockLight(x, y, z int) uint8 {
	return i.c.BlockLight(x, i.reflect(y), z)
}

func (i *invertedChunk) SetBlockLight(x, y, z int, level uint8) {
	i.c.SetBlockLight(x, i.reflect(y), z, level)
}

func (i *invertedChunk) SkyLight(x, y, z int) uint8 {
	return i.c.SkyLight(x, i.reflect(y), z)
}

func (i *invertedChunk) SetSkyLight(x, y, z int, level uint8) {
	i.c.SetSkyLight(x, i.reflect(y), z, level)
}

func (i *invertedChunk) LeafDistance(x, y, z int) uint8 {
	return i.c.LeafDistance(x, i.reflect(y), z)
}

func (i *invertedChunk) SetLeafDistance(x, y, z int, distance uint8) {
	i.c.SetLeafDistance(x, i.reflect(y), z, distance)
}

// Height of an inverted column is the reflection of the authored height:
// the ceiling's surface hangs downward.
func (i *invertedChunk) Height(x, z int) int {
	return i.reflect(i.c.Height(x, z))
}

func (i *invertedChunk) SetHeight(x, z, height int) {
	i.c.SetHeight(x, z, i.reflect(height))
}

func (i *invertedChunk) Biome(x, z int) Biome       { return i.c.Biome(x, z) }
func (i *invertedChunk) SetBiome(x, z int, b Biome) { i.c.SetBiome(x, z, b) }

func (i *invertedChunk) TerrainPopulated() bool             { return i.c.TerrainPopulated() }
func (i *invertedChunk) SetTerrainPopulated(populated bool) { i.c.SetTerrainPopulated(populated) }

// BlockEntities returns the inner records with their Y coordinates
// reflected, so a reader of the inverted chunk sees them where the blocks
// carrying them appear.
func (i *invertedChunk) BlockEntities() []BlockEntity {
	inner := i.c.BlockEntities()
	if len(inner) == 0 {
		return nil
	}
	out := make([]BlockEntity, len(inner))
	for j, be := range inner {
		be.Y = i.reflect(be.Y)
		out[j] = be
	}
	return out
}

func (i *invertedChunk) AddBlockEntity(be BlockEntity) {
	be.Y = i.reflect(be.Y)
	i.c.AddBlockEntity(be)
}

func (i *invertedChunk) RemoveBlockEntityAt(x, y, z int) bool {
	return i.c.RemoveBlockEntityAt(x, i.reflect(y), z)
}

func (i *invertedChunk) Entities() []Entity {
	inner := i.c.Entities()
	if len(inner) == 0 {
		return nil
	}
	out := make([]Entity, len(inner))
	for j, e := range inner {
		e.Pos[1] = float64(i.reflect(int(e.Pos[1])))
		out[j] = e
	}
	return out
}

func (i *invertedChunk) AddEntity(e Entity) {
	e.Pos[1] = float64(i.reflect(int(e.Pos[1])))
	i.c.AddEntity(e)
}

// invertedWorld presents an entire grid upside down. It is handed to second
// pass layer exporters of a ceiling dimension, which then operate in the
// ceiling's own orientation while writing into the shared merged grid.
type invertedWorld struct {
	g     Grid
	delta int
}

// InvertWorld wraps the grid passed in a height inverting adapter with the
// delta passed, mirroring InvertChunk for whole grids.
func InvertWorld(g Grid, delta int) Grid {
	return &invertedWorld{g: g, delta: delta}
}

func (w *invertedWorld) MinHeight() int { return w.g.MinHeight() }
func (w *invertedWorld) MaxHeight() int { return w.g.MaxHeight() }

func (w *invertedWorld) wrap(c Chunk) Chunk {
	if c == nil {
		return nil
	}
	return InvertChunk(c, w.delta)
}

func (w *invertedWorld) Chunk(pos ChunkPos) Chunk           { return w.wrap(w.g.Chunk(pos)) }
func (w *invertedWorld) ChunkForEditing(pos ChunkPos) Chunk { return w.wrap(w.g.ChunkForEditing(pos)) }

// AddChunk inserts the chunk as seen from the inverted orientation.
func (w *invertedWorld) AddChunk(c Chunk) {
	w.g.AddChunk(InvertChunk(c, w.delta))
}

func (w *invertedWorld) reflect(y int) int {
	return w.g.MaxHeight() + w.g.MinHeight() - 1 - y - w.delta
}

func (w *invertedWorld) MaterialAt(x, y, z int) Material {
	return w.g.MaterialAt(x, w.reflect(y), z)
}

func (w *invertedWorld) SetMaterialAt(x, y, z int, m Material) {
	w.g.SetMaterialAt(x, w.reflect(y), z, m)
}

func (w *invertedWorld) HeightAt(x, z int) int {
	c := w.Chunk(ChunkPos{int32(x >> 4), int32(z >> 4)})
	if c == nil {
		return w.MinHeight()
	}
	return c.Height(x&0xf, z&0xf)
}

// TunnelHeights exposes the tunnel geometry of a cave or tunnel layer to the
// roof dimension adapter.
type TunnelHeights interface {
	// Tunnel returns the floor and roof levels of the tunnel at the absolute
	// block column passed and whether the column is inside a tunnel at all.
	Tunnel(x, z int) (floor, roof int, inside bool)
}

// roofDimension is a Dimension whose terrain height follows the roof of a
// tunnel layer, inverted, so that it can be exported in combination with an
// inverted grid to produce cave roofs hanging upside down.
type roofDimension struct {
	Dimension
	tunnels    TunnelHeights
	reflection int
}

// NewRoofDimension wraps the dimension passed so that its height follows the
// roof of the tunnel layer passed, reflected about maxHeight + minHeight - 1.
// Inside a tunnel whose floor has reached its roof the floor level is used
// instead of the authored height, closing the gap.
func NewRoofDimension(d Dimension, tunnels TunnelHeights) Dimension {
	return &roofDimension{Dimension: d, tunnels: tunnels, reflection: d.MaxHeight() + d.MinHeight() - 1}
}

func (d *roofDimension) Height(x, z int) int {
	h := d.Dimension.Height(x, z)
	if floor, roof, inside := d.tunnels.Tunnel(x, z); inside && floor >= roof {
		h = floor
	}
	return d.reflection - h
}

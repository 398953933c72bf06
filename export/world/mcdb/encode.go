package mcdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/df-mc/worldupgrader/blockupgrader"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
	"github.com/segmentio/fasthash/fnv1"
	"github.com/tilevox/tilevox/export/world"
)

// chunkVersion is the version byte of the chunk payload encoding.
const chunkVersion = 1

// encodeChunk encodes the chunk into its payload, block entity and entity
// blobs. Blobs for empty record lists are nil so their keys can be omitted.
//
// Payload layout: version byte, fnv1 checksum of the body (8 bytes), body.
// The body holds the vertical range, a material name palette, per block
// palette indices, the light and leaf distance nibble arrays, heights,
// biomes and the terrain populated flag.
func encodeChunk(c world.Chunk) (payload, blockEntities, entities []byte, err error) {
	body := new(bytes.Buffer)
	min, max := c.MinHeight(), c.MaxHeight()
	binary.Write(body, binary.LittleEndian, int32(min))
	binary.Write(body, binary.LittleEndian, int32(max))

	// Build the palette in first-use order.
	palette := make([]world.Material, 0, 16)
	indices := make(map[world.Material]uint16, 16)
	blocks := make([]uint16, 0, (max-min)*world.ChunkSize*world.ChunkSize)
	for y := min; y < max; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				m := c.Material(x, y, z)
				i, ok := indices[m]
				if !ok {
					i = uint16(len(palette))
					palette = append(palette, m)
					indices[m] = i
				}
				blocks = append(blocks, i)
			}
		}
	}
	binary.Write(body, binary.LittleEndian, uint16(len(palette)))
	for _, m := range palette {
		name := m.Name()
		binary.Write(body, binary.LittleEndian, uint16(len(name)))
		body.WriteString(name)
	}
	binary.Write(body, binary.LittleEndian, blocks)

	n := (max - min) * world.ChunkSize * world.ChunkSize
	light := make([]byte, n/2)
	fill := func(get func(x, y, z int) uint8) {
		for i := range light {
			light[i] = 0
		}
		i := 0
		for y := min; y < max; y++ {
			for z := 0; z < world.ChunkSize; z++ {
				for x := 0; x < world.ChunkSize; x++ {
					if i&1 == 0 {
						light[i>>1] |= get(x, y, z) & 0x0f
					} else {
						light[i>>1] |= get(x, y, z) << 4
					}
					i++
				}
			}
		}
		body.Write(light)
	}
	fill(c.BlockLight)
	fill(c.SkyLight)
	fill(c.LeafDistance)

	for z := 0; z < world.ChunkSize; z++ {
		for x := 0; x < world.ChunkSize; x++ {
			binary.Write(body, binary.LittleEndian, int32(c.Height(x, z)))
			binary.Write(body, binary.LittleEndian, uint32(c.Biome(x, z)))
		}
	}
	if c.TerrainPopulated() {
		body.WriteByte(1)
	} else {
		body.WriteByte(0)
	}

	payload = make([]byte, 0, body.Len()+9)
	payload = append(payload, chunkVersion)
	payload = binary.LittleEndian.AppendUint64(payload, fnv1.HashBytes64(body.Bytes()))
	payload = append(payload, body.Bytes()...)

	if blockEntities, err = encodeBlockEntities(c.BlockEntities()); err != nil {
		return nil, nil, nil, err
	}
	if entities, err = encodeEntities(c.Entities()); err != nil {
		return nil, nil, nil, err
	}
	return payload, blockEntities, entities, nil
}

type blockEntityRecord struct {
	ID   string         `nbt:"id"`
	X    int32          `nbt:"x"`
	Y    int32          `nbt:"y"`
	Z    int32          `nbt:"z"`
	Data map[string]any `nbt:"data"`
}

type entityRecord struct {
	UniqueID string         `nbt:"uniqueID"`
	ID       string         `nbt:"id"`
	Pos      []float64      `nbt:"pos"`
	Data     map[string]any `nbt:"data"`
}

func encodeBlockEntities(records []world.BlockEntity) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]blockEntityRecord, len(records))
	for i, be := range records {
		out[i] = blockEntityRecord{ID: be.Type, X: int32(be.X), Y: int32(be.Y), Z: int32(be.Z), Data: be.Data}
	}
	b, err := nbt.MarshalEncoding(map[string]any{"blockEntities": out}, nbt.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encode block entities: %w", err)
	}
	return b, nil
}

func encodeEntities(records []world.Entity) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]entityRecord, len(records))
	for i, e := range records {
		out[i] = entityRecord{UniqueID: e.ID.String(), ID: e.Type, Pos: e.Pos[:], Data: e.Data}
	}
	b, err := nbt.MarshalEncoding(map[string]any{"entities": out}, nbt.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encode entities: %w", err)
	}
	return b, nil
}

// decodeChunk decodes a chunk stored by encodeChunk. Palette names run
// through the block state upgrader first so that worlds written by earlier
// game versions resolve to current materials.
func decodeChunk(pos world.ChunkPos, payload, blockEntities, entities []byte) (world.Chunk, error) {
	if len(payload) < 9 {
		return nil, fmt.Errorf("payload truncated: %d bytes", len(payload))
	}
	if payload[0] != chunkVersion {
		return nil, fmt.Errorf("unsupported chunk version %d", payload[0])
	}
	body := payload[9:]
	if sum := fnv1.HashBytes64(body); sum != binary.LittleEndian.Uint64(payload[1:]) {
		return nil, fmt.Errorf("checksum mismatch")
	}

	r := bytes.NewReader(body)
	var min32, max32 int32
	binary.Read(r, binary.LittleEndian, &min32)
	binary.Read(r, binary.LittleEndian, &max32)
	min, max := int(min32), int(max32)
	if max <= min {
		return nil, fmt.Errorf("invalid vertical range [%d, %d)", min, max)
	}
	c := world.NewChunk(pos, min, max)

	var paletteLen uint16
	binary.Read(r, binary.LittleEndian, &paletteLen)
	palette := make([]world.Material, paletteLen)
	for i := range palette {
		var nameLen uint16
		binary.Read(r, binary.LittleEndian, &nameLen)
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("palette truncated: %w", err)
		}
		upgraded := blockupgrader.Upgrade(blockupgrader.BlockState{Name: string(name)})
		m, ok := world.MaterialByName(upgraded.Name)
		if !ok {
			// Materials registered by collaborators during export are not
			// necessarily registered when a world is reopened; re-register
			// so the palette round-trips losslessly.
			m = world.RegisterMaterial(world.MaterialProperties{Name: upgraded.Name})
		}
		palette[i] = m
	}

	n := (max - min) * world.ChunkSize * world.ChunkSize
	blocks := make([]uint16, n)
	if err := binary.Read(r, binary.LittleEndian, blocks); err != nil {
		return nil, fmt.Errorf("blocks truncated: %w", err)
	}
	i := 0
	for y := min; y < max; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				if int(blocks[i]) >= len(palette) {
					return nil, fmt.Errorf("palette index %d out of range", blocks[i])
				}
				c.SetMaterial(x, y, z, palette[blocks[i]])
				i++
			}
		}
	}

	light := make([]byte, n/2)
	read := func(set func(x, y, z int, v uint8)) error {
		if _, err := io.ReadFull(r, light); err != nil {
			return fmt.Errorf("light data truncated: %w", err)
		}
		i := 0
		for y := min; y < max; y++ {
			for z := 0; z < world.ChunkSize; z++ {
				for x := 0; x < world.ChunkSize; x++ {
					if i&1 == 0 {
						set(x, y, z, light[i>>1]&0x0f)
					} else {
						set(x, y, z, light[i>>1]>>4)
					}
					i++
				}
			}
		}
		return nil
	}
	if err := read(c.SetBlockLight); err != nil {
		return nil, err
	}
	if err := read(c.SetSkyLight); err != nil {
		return nil, err
	}
	if err := read(c.SetLeafDistance); err != nil {
		return nil, err
	}

	for z := 0; z < world.ChunkSize; z++ {
		for x := 0; x < world.ChunkSize; x++ {
			var height int32
			var biome uint32
			binary.Read(r, binary.LittleEndian, &height)
			if err := binary.Read(r, binary.LittleEndian, &biome); err != nil {
				return nil, fmt.Errorf("column data truncated: %w", err)
			}
			c.SetHeight(x, z, int(height))
			c.SetBiome(x, z, world.Biome(biome))
		}
	}
	populated, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("populated flag truncated: %w", err)
	}
	c.SetTerrainPopulated(populated != 0)

	if len(blockEntities) > 0 {
		var wrapper struct {
			BlockEntities []blockEntityRecord `nbt:"blockEntities"`
		}
		if err := nbt.UnmarshalEncoding(blockEntities, &wrapper, nbt.LittleEndian); err != nil {
			return nil, fmt.Errorf("decode block entities: %w", err)
		}
		for _, rec := range wrapper.BlockEntities {
			c.AddBlockEntity(world.BlockEntity{Type: rec.ID, X: int(rec.X), Y: int(rec.Y), Z: int(rec.Z), Data: rec.Data})
		}
	}
	if len(entities) > 0 {
		var wrapper struct {
			Entities []entityRecord `nbt:"entities"`
		}
		if err := nbt.UnmarshalEncoding(entities, &wrapper, nbt.LittleEndian); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
		for _, rec := range wrapper.Entities {
			id, err := uuid.Parse(rec.UniqueID)
			if err != nil {
				return nil, fmt.Errorf("decode entity: %w", err)
			}
			var pos mgl64.Vec3
			copy(pos[:], rec.Pos)
			c.AddEntity(world.Entity{ID: id, Type: rec.ID, Pos: pos, Data: rec.Data})
		}
	}
	return c, nil
}

package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Entity is a mobile entity record, such as a mob or a dropped item, produced
// by a layer exporter and persisted together with the chunk it is in.
type Entity struct {
	// ID uniquely identifies the entity across the exported world.
	ID uuid.UUID
	// Type is the namespaced entity type identifier.
	Type string
	// Pos is the absolute position of the entity in block coordinates.
	Pos mgl64.Vec3
	// Data holds any additional entity data to be persisted verbatim.
	Data map[string]any
}

// BlockEntity is the extra state record carried by block entity materials
// such as chests. Coordinates are absolute block coordinates.
type BlockEntity struct {
	// Type is the namespaced block entity type identifier.
	Type string
	// X, Y and Z are the absolute block coordinates of the record.
	X, Y, Z int
	// Data holds the block entity payload to be persisted verbatim.
	Data map[string]any
}

// Biome is a numeric biome identifier assigned per block column.
type Biome uint32

// BiomePlains is the biome assigned to synthetic chunks, such as bedrock wall
// chunks, on platforms that support biome data.
const BiomePlains Biome = 1

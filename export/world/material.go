package world

import (
	"fmt"
	"sync"

	"github.com/brentp/intintmap"
	"github.com/cespare/xxhash/v2"
)

// Material is the runtime ID of a registered block material. Material zero is
// always air.
type Material uint32

// MaterialProperties describes the static properties of a material that the
// export pipeline cares about. Anything beyond these (textures, item drops and
// the like) is of no concern to an exporter.
type MaterialProperties struct {
	// Name is the unique namespaced identifier of the material.
	Name string
	// Solid is true for materials that fully obstruct movement. The ceiling
	// merge replaces non-solid destination blocks with solid source blocks.
	Solid bool
	// Opaque is true for materials that entirely block light. Non-opaque
	// materials attenuate propagated light by one level.
	Opaque bool
	// LightEmission is the light level, 0-15, the material emits.
	LightEmission uint8
	// BlockEntity is true for materials that carry a block entity record,
	// such as chests, which must be relocated together with the block.
	BlockEntity bool
	// Leaves is true for leaf materials, which participate in the leaf
	// distance calculation.
	Leaves bool
	// Log is true for log materials, the distance sources of the leaf
	// distance calculation.
	Log bool
	// Watery is true for water and waterlogged materials.
	Watery bool
}

var (
	materialMu    sync.RWMutex
	materials     = make([]MaterialProperties, 0, 64)
	materialsByID = intintmap.New(64, 0.95)
)

// RegisterMaterial registers the properties passed and returns the Material
// assigned to them. Registering a name twice returns the Material registered
// first. RegisterMaterial is safe for concurrent use, though materials are
// normally registered during initialisation.
func RegisterMaterial(props MaterialProperties) Material {
	materialMu.Lock()
	defer materialMu.Unlock()
	h := int64(xxhash.Sum64String(props.Name))
	if id, ok := materialsByID.Get(h); ok {
		return Material(id)
	}
	id := Material(len(materials))
	materials = append(materials, props)
	materialsByID.Put(h, int64(id))
	return id
}

// MaterialByName looks up a previously registered material by its name.
func MaterialByName(name string) (Material, bool) {
	materialMu.RLock()
	defer materialMu.RUnlock()
	id, ok := materialsByID.Get(int64(xxhash.Sum64String(name)))
	return Material(id), ok
}

// Properties returns the properties the material was registered with. It
// panics if the material was never registered.
func (m Material) Properties() MaterialProperties {
	materialMu.RLock()
	defer materialMu.RUnlock()
	if int(m) >= len(materials) {
		panic(fmt.Sprintf("world: unregistered material %d", m))
	}
	return materials[m]
}

// Name returns the name the material was registered under.
func (m Material) Name() string { return m.Properties().Name }

// Solid reports whether the material fully obstructs movement.
func (m Material) Solid() bool { return m.Properties().Solid }

// Air reports whether the material is air.
func (m Material) Air() bool { return m == Air }

// Materials commonly produced by the pipeline itself. Terrain synthesis
// collaborators register their own materials on top of these.
var (
	Air       = RegisterMaterial(MaterialProperties{Name: "core:air"})
	Bedrock   = RegisterMaterial(MaterialProperties{Name: "core:bedrock", Solid: true, Opaque: true})
	Stone     = RegisterMaterial(MaterialProperties{Name: "core:stone", Solid: true, Opaque: true})
	Dirt      = RegisterMaterial(MaterialProperties{Name: "core:dirt", Solid: true, Opaque: true})
	Grass     = RegisterMaterial(MaterialProperties{Name: "core:grass_block", Solid: true, Opaque: true})
	Water     = RegisterMaterial(MaterialProperties{Name: "core:water", Watery: true})
	Chest     = RegisterMaterial(MaterialProperties{Name: "core:chest", Solid: true, BlockEntity: true})
	Torch     = RegisterMaterial(MaterialProperties{Name: "core:torch", LightEmission: 14})
	Glowstone = RegisterMaterial(MaterialProperties{Name: "core:glowstone", Solid: true, LightEmission: 15})
	OakLog    = RegisterMaterial(MaterialProperties{Name: "core:oak_log", Solid: true, Opaque: true, Log: true})
	OakLeaves = RegisterMaterial(MaterialProperties{Name: "core:oak_leaves", Solid: true, Leaves: true})
	TallGrass = RegisterMaterial(MaterialProperties{Name: "core:tall_grass"})
)

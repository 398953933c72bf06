package world

// BorderType is the kind of border configured around the authored area of a
// dimension.
type BorderType uint8

const (
	// BorderNone means no border is generated around the authored tiles.
	BorderNone BorderType = iota
	// BorderLake surrounds the authored tiles with water at the border level.
	BorderLake
	// BorderVoid surrounds the authored tiles with empty chunks above
	// bedrock.
	BorderVoid
	// BorderEndless marks a border generated lazily by the game itself; the
	// exporter synthesises nothing for it.
	BorderEndless
)

// Endless reports whether the border is generated by the game rather than
// the exporter.
func (b BorderType) Endless() bool { return b == BorderEndless }

// Dimension is the read-only query interface to one authored dimension of
// the editable terrain model. It is implemented by a collaborator outside
// this module; the exporter never mutates it.
type Dimension interface {
	// Name returns the display name of the dimension, used in progress
	// messages and log records.
	Name() string
	// ID returns the numeric dimension identifier. Zero is the primary
	// surface dimension.
	ID() int

	// Tile returns the tile at the tile position passed, or nil if no tile
	// has been authored there.
	Tile(pos TilePos) Tile
	// Tiles returns all authored tiles of the dimension.
	Tiles() []Tile

	// MinHeight and MaxHeight bound the vertical range of the dimension.
	MinHeight() int
	MaxHeight() int
	// CeilingHeight returns the build height of a ceiling dimension. It is
	// only meaningful for dimensions exported as a ceiling.
	CeilingHeight() int
	// Height returns the authored terrain height of the block column at the
	// absolute block coordinates passed.
	Height(x, z int) int

	// Border returns the border configured around the authored area.
	Border() BorderType
	// BorderLevel returns the water or terrain level of the border.
	BorderLevel() int
	// BorderSize returns the size of the border in tiles.
	BorderSize() int
	// BedrockWall reports whether a bedrock wall is generated around the
	// authored area (and border, if any).
	BedrockWall() bool

	// AllLayers returns all layers in use anywhere on the dimension,
	// including hidden ones if includeHidden is true.
	AllLayers(includeHidden bool) []Layer
	// MinimumLayers returns the layers applied everywhere on the dimension,
	// regardless of whether any tile carries them.
	MinimumLayers() []Layer
	// LayerSettings returns the dimension's settings for the layer passed,
	// loaded into the layer's exporter before export begins.
	LayerSettings(l Layer) any
}

// Tile is one authored unit of the terrain model, TileSize blocks on a side,
// carrying per-block height and the set of layers painted on it.
type Tile interface {
	// Pos returns the tile's position.
	Pos() TilePos
	// Layers returns the layers painted anywhere on the tile.
	Layers() []Layer
	// Seeds returns the garden seeds planted on the tile, if any.
	Seeds() []Seed
}

// BlockExportSettings selects which per-block derived properties are
// computed during the block property pass.
type BlockExportSettings struct {
	// BlockLight enables the block light calculation.
	BlockLight bool `toml:"block_light"`
	// SkyLight enables the sky light calculation.
	SkyLight bool `toml:"sky_light"`
	// LeafDistance enables the leaf distance calculation.
	LeafDistance bool `toml:"leaf_distance"`
}

// Any reports whether any block property calculation is enabled.
func (s BlockExportSettings) Any() bool {
	return s.BlockLight || s.SkyLight || s.LeafDistance
}

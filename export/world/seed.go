package world

// Seed is one plant of a garden layer: a point feature that germinates into
// blocks during export. Seeds straddling tile boundaries appear on several
// tiles; they are deduplicated by identity so that each germinates once.
type Seed interface {
	// ID returns the stable identity of the seed, equal across all tiles
	// the seed appears on.
	ID() uint64
	// Pos returns the absolute block position of the seed.
	Pos() (x, z int)
	// FirstPass renders the seed's terrain shaping effect.
	FirstPass(d Dimension, t Tile, g Grid) error
	// SecondPass renders the seed's feature placement effect.
	SecondPass(d Dimension, t Tile, g Grid) error
}

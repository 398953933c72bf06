package export

import (
	"github.com/tilevox/tilevox/export/world"
	"github.com/tilevox/tilevox/export/world/mcdb"
)

// RegionStore is the persistence collaborator of the export pipeline.
// Regions are saved through it as they complete and reopened through fixup
// world handles when deferred cross-region work is applied.
type RegionStore interface {
	// SaveRegion persists the generated chunks of the region passed under
	// the dimension ID passed.
	SaveRegion(r *world.Region, dim int) error
	// OpenWorld opens a read-modify-write handle onto the persisted chunks
	// of the dimension passed. The handle must be closed to write edits
	// back.
	OpenWorld(dim, minHeight, maxHeight int) (FixupWorld, error)
}

// FixupWorld is a grid backed by persisted chunks. Edits made through it are
// written back when it is closed.
type FixupWorld interface {
	world.Grid
	Close() error
}

// NewStore returns a RegionStore backed by the provider passed.
func NewStore(p *mcdb.Provider) RegionStore {
	return mcdbStore{p: p}
}

type mcdbStore struct {
	p *mcdb.Provider
}

func (s mcdbStore) SaveRegion(r *world.Region, dim int) error {
	return s.p.SaveRegion(r, dim)
}

func (s mcdbStore) OpenWorld(dim, minHeight, maxHeight int) (FixupWorld, error) {
	return s.p.World(dim, minHeight, maxHeight), nil
}

package export

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tilevox/tilevox/export/internal/taskguard"
	"github.com/tilevox/tilevox/export/world"
)

// fixupTracker records the deferred cross-region work of one dimension
// export. Fixups are registered per region as region tasks complete and
// released once the region is ready: none of its eight neighbours may be
// both part of the export set and not yet exported. The tracker is safe for
// concurrent use.
type fixupTracker struct {
	mu       sync.Mutex
	regions  map[world.RegionPos]struct{}
	exported map[world.RegionPos]struct{}
	pending  map[world.RegionPos][]world.Fixup
}

// newFixupTracker creates a tracker over the export set passed. The set must
// not be mutated afterwards.
func newFixupTracker(regions map[world.RegionPos]struct{}) *fixupTracker {
	return &fixupTracker{
		regions:  regions,
		exported: make(map[world.RegionPos]struct{}, len(regions)),
		pending:  make(map[world.RegionPos][]world.Fixup),
	}
}

// regionDone records the region passed as exported, together with the
// deferred fixups its second pass produced.
func (t *fixupTracker) regionDone(pos world.RegionPos, fixups []world.Fixup) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exported[pos] = struct{}{}
	if len(fixups) > 0 {
		t.pending[pos] = append(t.pending[pos], fixups...)
	}
}

// ready reports whether the fixups of the region passed may be applied. The
// caller must hold t.mu.
func (t *fixupTracker) ready(pos world.RegionPos) bool {
	for _, n := range pos.Neighbours() {
		if _, inSet := t.regions[n]; !inSet {
			continue
		}
		if _, done := t.exported[n]; !done {
			return false
		}
	}
	return true
}

// takeReady removes and returns the pending fixups of every region that is
// ready.
func (t *fixupTracker) takeReady() map[world.RegionPos][]world.Fixup {
	t.mu.Lock()
	defer t.mu.Unlock()
	var batch map[world.RegionPos][]world.Fixup
	for pos, fixups := range t.pending {
		if !t.ready(pos) {
			continue
		}
		if batch == nil {
			batch = make(map[world.RegionPos][]world.Fixup)
		}
		batch[pos] = fixups
		delete(t.pending, pos)
	}
	return batch
}

// takeAll removes and returns all pending fixups, used for the final sweep
// once every region of the export set has been exported.
func (t *fixupTracker) takeAll() map[world.RegionPos][]world.Fixup {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return nil
	}
	batch := t.pending
	t.pending = make(map[world.RegionPos][]world.Fixup)
	return batch
}

// maybePerformFixups applies the fixups of all ready regions unless another
// goroutine is already doing so. At most one goroutine drains fixups at a
// time; the others return immediately and leave the work to a later call.
func (e *Exporter) maybePerformFixups(d world.Dimension, t *fixupTracker) error {
	select {
	case e.fixupSem <- struct{}{}:
	default:
		return nil
	}
	defer func() { <-e.fixupSem }()
	batch := t.takeReady()
	if len(batch) == 0 {
		return nil
	}
	return e.applyFixups(d, batch)
}

// applyFixups applies the batch of fixups passed through a fixup world
// handle onto the persisted chunks of the dimension. Regions are applied in
// deterministic position order.
func (e *Exporter) applyFixups(d world.Dimension, batch map[world.RegionPos][]world.Fixup) error {
	w, err := e.conf.Store.OpenWorld(d.ID(), d.MinHeight(), d.MaxHeight())
	if err != nil {
		return fmt.Errorf("open world for fixups: %w", err)
	}
	positions := make([]world.RegionPos, 0, len(batch))
	for pos := range batch {
		positions = append(positions, pos)
	}
	slices.SortFunc(positions, func(a, b world.RegionPos) int {
		if a[1] != b[1] {
			return int(a[1] - b[1])
		}
		return int(a[0] - b[0])
	})
	for _, pos := range positions {
		for _, f := range batch[pos] {
			err := taskguard.Run(func() error {
				return f.Apply(w, d, e.conf.Settings.Blocks)
			})
			if err != nil {
				_ = w.Close()
				return fmt.Errorf("apply fixups of region %v,%v: %w", pos.X(), pos.Z(), err)
			}
		}
		e.conf.Log.Debug("applied fixups", "region_x", pos.X(), "region_z", pos.Z(), "count", len(batch[pos]))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close world after fixups: %w", err)
	}
	return nil
}

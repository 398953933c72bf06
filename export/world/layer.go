package world

import (
	"slices"
	"strings"
)

// Layer is a named terrain feature painted onto tiles, such as caves, frost
// or a custom object layer. Layers are identified by name; their rendering is
// performed by the Exporter capability they declare.
type Layer interface {
	// Name returns the unique name of the layer.
	Name() string
	// Priority orders layers with equal stages deterministically. Lower
	// priorities run first; ties are broken by name.
	Priority() int
	// Export reports whether the layer takes part in export at all. Layers
	// excluded from export are dropped before the first pass.
	Export() bool
	// Exporter returns the exporter capability of the layer, or nil if the
	// layer has no block level effect.
	Exporter() LayerExporter
}

// CombinedLayer is a meta layer that expands into a set of constituent
// layers before export begins. Expansion is applied transitively until a
// full scan yields no further combined layers.
type CombinedLayer interface {
	Layer
	// Apply applies the combined layer to the dimension and returns the
	// layers it expands into, which may themselves be combined layers.
	Apply(d Dimension) []Layer
}

// Stage is one step of the second pass protocol. Stages run in fixed
// enumeration order across all second pass layers.
type Stage uint8

const (
	// StageCarve removes or replaces terrain, such as cave carving.
	StageCarve Stage = iota
	// StageAddFeatures places features on the carved terrain.
	StageAddFeatures
	stageCount
)

// String returns the lower case name of the stage.
func (s Stage) String() string {
	switch s {
	case StageCarve:
		return "carve"
	case StageAddFeatures:
		return "add features"
	}
	return "invalid"
}

// Stages returns all stages in execution order.
func Stages() [stageCount]Stage {
	return [stageCount]Stage{StageCarve, StageAddFeatures}
}

// StageSet is a bit set of declared stages.
type StageSet uint8

// NewStageSet creates a StageSet containing the stages passed.
func NewStageSet(stages ...Stage) StageSet {
	var s StageSet
	for _, st := range stages {
		s |= 1 << st
	}
	return s
}

// Contains reports whether the set contains the stage passed.
func (s StageSet) Contains(st Stage) bool { return s&(1<<st) != 0 }

// Len returns the number of stages in the set.
func (s StageSet) Len() int {
	n := 0
	for _, st := range Stages() {
		if s.Contains(st) {
			n++
		}
	}
	return n
}

// LayerExporter is the rendering capability of a layer. Exporters declare
// the second pass stages they take part in through Stages; an exporter that
// declares none is rendered entirely during chunk synthesis by the terrain
// collaborator and is never called back by this pipeline.
type LayerExporter interface {
	// SetSettings loads the dimension's per-layer settings into the
	// exporter. It is called once before export begins.
	SetSettings(settings any)
	// Stages returns the set of second pass stages the exporter declares.
	Stages() StageSet
	// Carve runs the carve stage over the padded area, reporting changes
	// and fixups scoped to the exported area.
	Carve(d Dimension, area, exported Rect, g Grid) ([]Fixup, error)
	// AddFeatures runs the feature stage over the padded area, reporting
	// changes and fixups scoped to the exported area.
	AddFeatures(d Dimension, area, exported Rect, g Grid) ([]Fixup, error)
}

// FirstPassOnly is a convenience embed for exporters that declare no second
// pass stages.
type FirstPassOnly struct{}

// Stages returns the empty stage set.
func (FirstPassOnly) Stages() StageSet { return 0 }

// Carve panics; a first pass exporter declares no stages.
func (FirstPassOnly) Carve(Dimension, Rect, Rect, Grid) ([]Fixup, error) {
	panic("world: carve called on a first pass exporter")
}

// AddFeatures panics; a first pass exporter declares no stages.
func (FirstPassOnly) AddFeatures(Dimension, Rect, Rect, Grid) ([]Fixup, error) {
	panic("world: add features called on a first pass exporter")
}

// Fixup is a unit of deferred work produced by a second pass layer effect
// that touched blocks whose correctness depends on a region that had not
// been exported yet. A fixup is applied at most once, only after all export
// set neighbours of the region it was produced for have been exported.
type Fixup interface {
	// Apply applies the fixup to the world passed, which is a handle onto
	// the already persisted chunks of the exported world.
	Apply(g Grid, d Dimension, s BlockExportSettings) error
}

// SortLayers sorts the layers passed into their deterministic execution
// order: ascending priority, ties broken by name.
func SortLayers(layers []Layer) {
	slices.SortStableFunc(layers, func(a, b Layer) int {
		if d := a.Priority() - b.Priority(); d != 0 {
			return d
		}
		return strings.Compare(a.Name(), b.Name())
	})
}

// ExpandLayers expands combined layers in the set passed transitively until
// a full scan yields no further expansion, returning the resulting set. The
// input map is not modified.
func ExpandLayers(d Dimension, layers map[string]Layer) map[string]Layer {
	active := make(map[string]Layer, len(layers))
	for name, l := range layers {
		active[name] = l
	}
	for {
		var expand CombinedLayer
		for _, l := range active {
			if cl, ok := l.(CombinedLayer); ok && cl.Export() {
				expand = cl
				break
			}
		}
		if expand == nil {
			return active
		}
		delete(active, expand.Name())
		for _, added := range expand.Apply(d) {
			if _, ok := active[added.Name()]; !ok {
				active[added.Name()] = added
			}
		}
	}
}

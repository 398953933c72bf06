package export

import "time"

// Stats accumulates area statistics over all regions of an export. Counts
// only cover chunks inside the regions proper, never the padding chunks that
// regions generate around themselves.
type Stats struct {
	// LandArea is the number of surface columns not covered by water.
	LandArea int64
	// WaterArea is the number of surface columns covered by water.
	WaterArea int64
	// SurfaceArea is the total number of columns exported.
	SurfaceArea int64
	// Time is the wall clock duration of the export.
	Time time.Duration
}

// add folds the statistics of a single region into s. The caller must hold
// whatever lock guards s.
func (s *Stats) add(other Stats) {
	s.LandArea += other.LandArea
	s.WaterArea += other.WaterArea
	s.SurfaceArea += other.SurfaceArea
}

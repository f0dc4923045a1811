package resutils

import "github.com/launchdarkly/go-jsonstream/v3/jwriter"

// SlabStatistics describes the occupancy of a single slab pool.
type SlabStatistics struct {
	SlotCount     int
	LiveCount     int
	FreeCount     int
	CapacityBytes int
}

func (s *SlabStatistics) Clear() {
	s.SlotCount = 0
	s.LiveCount = 0
	s.FreeCount = 0
	s.CapacityBytes = 0
}

func (s *SlabStatistics) AddSlabStatistics(other *SlabStatistics) {
	s.SlotCount += other.SlotCount
	s.LiveCount += other.LiveCount
	s.FreeCount += other.FreeCount
	s.CapacityBytes += other.CapacityBytes
}

// PrintJson streams this object's fields into an in-progress JSON object.
func (s *SlabStatistics) PrintJson(json *jwriter.ObjectState) {
	json.Name("Slots").Int(s.SlotCount)
	json.Name("Live").Int(s.LiveCount)
	json.Name("Free").Int(s.FreeCount)
	json.Name("CapacityBytes").Int(s.CapacityBytes)
}

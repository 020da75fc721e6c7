package partition

import "sort"

// StatsTracker records the ke column of a partition while it is built.
type StatsTracker struct {
	rowCount int64
	minKE    float64
	maxKE    float64

	// ke holds every value; sorted lazily by CountAbove
	ke     []float64
	sorted bool
}

// NewStatsTracker creates a new statistics tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// Update records one row's ke value.
func (s *StatsTracker) Update(ke float64) {
	if s.rowCount == 0 || ke < s.minKE {
		s.minKE = ke
	}
	if s.rowCount == 0 || ke > s.maxKE {
		s.maxKE = ke
	}
	s.rowCount++
	s.ke = append(s.ke, ke)
	s.sorted = false
}

// RowCount returns the number of rows seen.
func (s *StatsTracker) RowCount() int64 {
	return s.rowCount
}

// MinMax returns the smallest and largest ke values.
func (s *StatsTracker) MinMax() (float64, float64) {
	return s.minKE, s.maxKE
}

// CountAbove returns the number of rows with ke strictly greater than threshold.
func (s *StatsTracker) CountAbove(threshold float64) int64 {
	if !s.sorted {
		sort.Float64s(s.ke)
		s.sorted = true
	}
	i := sort.Search(len(s.ke), func(i int) bool { return s.ke[i] > threshold })
	return int64(len(s.ke) - i)
}

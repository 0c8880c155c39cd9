// Package data provides the data sources backing feed subscriptions:
// in-memory slices for tests and synthetic runs, CSV files for stored
// history, and WebSocket streams for live ticks.
package data

import (
	"sort"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
)

// SliceSource replays an in-memory sequence of data points. Points are
// sorted by time at construction so the stream is always non-decreasing.
type SliceSource struct {
	points []core.DataPoint
	next   int
}

// NewSliceSource creates a source over the given points
func NewSliceSource(points []core.DataPoint) *SliceSource {
	sorted := make([]core.DataPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return &SliceSource{points: sorted}
}

// Next returns the next point, ErrSourceExhausted at the end
func (s *SliceSource) Next() (core.DataPoint, error) {
	if s.next >= len(s.points) {
		return core.DataPoint{}, apperrors.ErrSourceExhausted
	}
	point := s.points[s.next]
	s.next++
	return point, nil
}

// Close releases nothing; in-memory sources hold no resources
func (s *SliceSource) Close() error {
	s.next = len(s.points)
	return nil
}

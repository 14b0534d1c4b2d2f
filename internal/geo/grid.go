// Package geo partitions a geographic viewport into a search grid so a
// deep scan can defeat the provider's per-query result cap.
package geo

import (
	"math"

	"github.com/octobees/leads-generator/search/internal/entity"
)

const (
	minGridSize = 1
	maxGridSize = 20

	// MaxRadiusMeters is the provider's maximum allowed location-bias radius.
	MaxRadiusMeters = 50000

	// Cell radii are scaled up slightly so adjacent sectors overlap instead
	// of leaving seams between circles.
	overlapFactor = 1.1

	metersPerDegreeLat = 111000
)

// GridPoint is one search sector: a center coordinate and the radius of the
// location-bias circle covering its cell.
type GridPoint struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Valid reports whether the point is usable for a provider query. Degenerate
// (zero-span) viewports yield zero-radius points.
func (p GridPoint) Valid() bool {
	return p.RadiusMeters > 0
}

// GenerateGrid divides the viewport into an n x n grid and returns exactly
// n*n points, center-aligned per cell, ordered row-major from the southwest
// corner. n is clamped to [1,20]. Longitude wraparound is not handled: the
// viewport must satisfy west <= east.
func GenerateGrid(vp entity.Viewport, n int) []GridPoint {
	if n < minGridSize {
		n = minGridSize
	}
	if n > maxGridSize {
		n = maxGridSize
	}

	latSpan := (vp.Northeast.Lat - vp.Southwest.Lat) / float64(n)
	lngSpan := (vp.Northeast.Lng - vp.Southwest.Lng) / float64(n)

	// Longitude degrees shrink with latitude; anchor the conversion at the
	// viewport's south edge, matching provider behaviour for small boxes.
	baseLat := vp.Southwest.Lat
	cellHeight := latSpan * metersPerDegreeLat
	cellWidth := lngSpan * metersPerDegreeLat * math.Cos(baseLat*math.Pi/180)

	radius := math.Hypot(cellWidth, cellHeight) / 2 * overlapFactor
	if radius > MaxRadiusMeters {
		radius = MaxRadiusMeters
	}

	points := make([]GridPoint, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			points = append(points, GridPoint{
				Lat:          vp.Southwest.Lat + latSpan*(float64(row)+0.5),
				Lng:          vp.Southwest.Lng + lngSpan*(float64(col)+0.5),
				RadiusMeters: radius,
			})
		}
	}
	return points
}

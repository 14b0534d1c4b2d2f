package places

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/octobees/leads-generator/search/internal/entity"
	"github.com/octobees/leads-generator/search/internal/geo"
)

// pacing delay between continuation pages inside one sector, provider
// etiquette for chained page tokens.
const sectorPagePacing = 2 * time.Second

// ScanOptions tune a grid scan.
type ScanOptions struct {
	GridSize        int
	MaxPagesPerGrid int
}

// ScanCity partitions the viewport into a grid and searches every sector
// concurrently with a location-bias circle. A failing sector logs and
// contributes nothing; the scan never aborts as a whole. Backpressure
// against the provider comes from the gateway's in-flight cap, not from a
// per-scan bound.
func (g *Gateway) ScanCity(ctx context.Context, query string, vp entity.Viewport, opts ScanOptions) []entity.Place {
	points := geo.GenerateGrid(vp, opts.GridSize)

	results := make([][]entity.Place, len(points))
	var wg sync.WaitGroup
	for i, point := range points {
		if !point.Valid() {
			continue
		}
		wg.Add(1)
		go func(i int, point geo.GridPoint) {
			defer wg.Done()
			results[i] = g.scanSector(ctx, query, point, opts.MaxPagesPerGrid)
		}(i, point)
	}
	wg.Wait()

	var flat []entity.Place
	for _, sector := range results {
		flat = append(flat, sector...)
	}
	return flat
}

// scanSector pages through one grid sector sequentially, pacing between
// continuation fetches.
func (g *Gateway) scanSector(ctx context.Context, query string, point geo.GridPoint, maxPages int) []entity.Place {
	if maxPages < 1 {
		maxPages = 1
	}

	bias := &Circle{Lat: point.Lat, Lng: point.Lng, RadiusMeters: point.RadiusMeters}

	var places []entity.Place
	token := ""
	for pageNum := 0; pageNum < maxPages; pageNum++ {
		if pageNum > 0 {
			if err := g.sleep(ctx, sectorPagePacing); err != nil {
				return places
			}
		}

		page, err := g.SearchText(ctx, query, SearchOptions{PageToken: token, Bias: bias})
		if err != nil {
			log.Printf("grid sector lat=%f lng=%f page=%d failed: %v", point.Lat, point.Lng, pageNum, err)
			return places
		}
		places = append(places, page.Places...)
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	return places
}

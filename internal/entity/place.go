package entity

import (
	"time"
)

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Viewport is a geographic bounding box. Northeast must sit north and east
// of Southwest; boxes crossing the antimeridian are not supported.
type Viewport struct {
	Northeast LatLng `json:"northeast"`
	Southwest LatLng `json:"southwest"`
}

// Place represents one normalized search hit from the places provider.
// PlaceID is globally unique and is the identity key everywhere.
type Place struct {
	PlaceID        string    `json:"place_id"`
	Name           string    `json:"name"`
	Rating         *float64  `json:"rating,omitempty"`
	Reviews        *int      `json:"reviews,omitempty"`
	Address        *string   `json:"address,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Website        *string   `json:"website,omitempty"`
	BusinessStatus *string   `json:"business_status,omitempty"`
	Location       *LatLng   `json:"location,omitempty"`
	Viewport       *Viewport `json:"viewport,omitempty"`
	Photos         []string  `json:"photos,omitempty"`
	OpenNow        *bool     `json:"open_now,omitempty"`
}

// Slim returns a reduced-field copy sized for cheap cached pagination.
func (p Place) Slim() Place {
	p.Viewport = nil
	p.Photos = nil
	p.OpenNow = nil
	return p
}

// Scrape status lifecycle for a place's enrichment record. Transitions are
// one-directional; FAILED is terminal and not retried automatically.
const (
	ScrapeStatusPending    = "PENDING"
	ScrapeStatusProcessing = "PROCESSING"
	ScrapeStatusCompleted  = "COMPLETED"
	ScrapeStatusFailed     = "FAILED"
)

// EnrichedPlace is a Place plus the contact data owned by the enrichment
// worker. Only the worker mutates the enrichment fields; this service reads
// them for response composition.
type EnrichedPlace struct {
	Place
	Emails       []string           `json:"emails,omitempty"`
	EmailScores  map[string]float64 `json:"email_scores,omitempty"`
	Phones       []string           `json:"phones,omitempty"`
	Socials      map[string]string  `json:"socials,omitempty"`
	ScrapeStatus string             `json:"scrape_status"`
	EnrichedAt   *time.Time         `json:"enriched_at,omitempty"`
}

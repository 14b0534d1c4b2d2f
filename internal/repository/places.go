package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-generator/search/internal/entity"
)

// PlacesRepository describes persistence operations for places and per-user
// leads.
type PlacesRepository interface {
	UpsertBatch(ctx context.Context, places []entity.Place) error
	FindByIDs(ctx context.Context, placeIDs []string) ([]entity.Place, error)
	FindEnrichedByIDs(ctx context.Context, placeIDs []string) ([]entity.EnrichedPlace, error)
	PendingEnrichment(ctx context.Context, placeIDs []string) ([]string, error)
	UpsertLeads(ctx context.Context, userID uuid.UUID, placeIDs []string) error
}

// PGXPlacesRepository implements PlacesRepository using pgx.
type PGXPlacesRepository struct {
	pool pgxPool
}

// NewPGXPlacesRepository wires a pgx backed repository.
func NewPGXPlacesRepository(pool *pgxpool.Pool) *PGXPlacesRepository {
	return &PGXPlacesRepository{pool: pool}
}

const upsertPlaceSQL = `
        INSERT INTO places (
            place_id,
            name,
            rating,
            reviews,
            address,
            phone,
            website,
            business_status,
            lat,
            lng,
            viewport,
            photos,
            scrape_status,
            updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb,
            'PENDING',
            NOW()
        )
        ON CONFLICT (place_id) DO UPDATE SET
            name = EXCLUDED.name,
            rating = EXCLUDED.rating,
            reviews = EXCLUDED.reviews,
            address = EXCLUDED.address,
            phone = COALESCE(EXCLUDED.phone, places.phone),
            website = COALESCE(EXCLUDED.website, places.website),
            business_status = EXCLUDED.business_status,
            lat = EXCLUDED.lat,
            lng = EXCLUDED.lng,
            viewport = COALESCE(EXCLUDED.viewport, places.viewport),
            photos = COALESCE(EXCLUDED.photos, places.photos),
            updated_at = NOW();
    `

// UpsertBatch persists places idempotently by place_id. Enrichment status
// starts PENDING on first insert and is owned by the enrichment worker
// afterwards.
func (r *PGXPlacesRepository) UpsertBatch(ctx context.Context, places []entity.Place) error {
	if len(places) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start places upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, place := range places {
		if place.PlaceID == "" {
			return fmt.Errorf("place without place_id")
		}

		var viewport, photos any
		if place.Viewport != nil {
			data, err := json.Marshal(place.Viewport)
			if err != nil {
				return fmt.Errorf("encode viewport for %s: %w", place.PlaceID, err)
			}
			viewport = string(data)
		}
		if len(place.Photos) > 0 {
			data, err := json.Marshal(place.Photos)
			if err != nil {
				return fmt.Errorf("encode photos for %s: %w", place.PlaceID, err)
			}
			photos = string(data)
		}

		var lat, lng any
		if place.Location != nil {
			lat = place.Location.Lat
			lng = place.Location.Lng
		}

		if _, err := tx.Exec(ctx, upsertPlaceSQL,
			place.PlaceID,
			place.Name,
			place.Rating,
			place.Reviews,
			place.Address,
			place.Phone,
			place.Website,
			place.BusinessStatus,
			lat,
			lng,
			viewport,
			photos,
		); err != nil {
			return fmt.Errorf("upsert place %s: %w", place.PlaceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit places upsert tx: %w", err)
	}
	return nil
}

// FindByIDs fetches full records for the given ids, preserving request order.
func (r *PGXPlacesRepository) FindByIDs(ctx context.Context, placeIDs []string) ([]entity.Place, error) {
	if len(placeIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
        SELECT place_id, name, rating, reviews, address, phone, website,
               business_status, lat, lng, viewport, photos
        FROM places
        WHERE place_id = ANY($1)
    `, placeIDs)
	if err != nil {
		return nil, fmt.Errorf("query places by ids: %w", err)
	}
	defer rows.Close()

	found, err := scanPlaces(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]entity.Place, len(found))
	for _, place := range found {
		byID[place.PlaceID] = place
	}

	ordered := make([]entity.Place, 0, len(found))
	for _, id := range placeIDs {
		if place, ok := byID[id]; ok {
			ordered = append(ordered, place)
		}
	}
	return ordered, nil
}

// FindEnrichedByIDs fetches places together with the contact data owned by
// the enrichment worker, preserving request order.
func (r *PGXPlacesRepository) FindEnrichedByIDs(ctx context.Context, placeIDs []string) ([]entity.EnrichedPlace, error) {
	if len(placeIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
        SELECT place_id, name, rating, reviews, address, phone, website,
               business_status, lat, lng, viewport, photos,
               scrape_status, emails, email_scores, phones, socials, enriched_at
        FROM places
        WHERE place_id = ANY($1)
    `, placeIDs)
	if err != nil {
		return nil, fmt.Errorf("query enriched places by ids: %w", err)
	}
	defer rows.Close()

	found, err := scanEnrichedPlaces(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]entity.EnrichedPlace, len(found))
	for _, place := range found {
		byID[place.PlaceID] = place
	}

	ordered := make([]entity.EnrichedPlace, 0, len(found))
	for _, id := range placeIDs {
		if place, ok := byID[id]; ok {
			ordered = append(ordered, place)
		}
	}
	return ordered, nil
}

// PendingEnrichment filters the given ids down to those still awaiting
// enrichment.
func (r *PGXPlacesRepository) PendingEnrichment(ctx context.Context, placeIDs []string) ([]string, error) {
	if len(placeIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
        SELECT place_id FROM places
        WHERE place_id = ANY($1) AND scrape_status = $2
    `, placeIDs, entity.ScrapeStatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending enrichment: %w", err)
	}
	defer rows.Close()

	var pending []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		pending = append(pending, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}
	return pending, nil
}

// UpsertLeads links places to the searching user, idempotent on
// (user_id, place_id).
func (r *PGXPlacesRepository) UpsertLeads(ctx context.Context, userID uuid.UUID, placeIDs []string) error {
	if len(placeIDs) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO user_leads (user_id, place_id, created_at)
        SELECT $1, unnest($2::text[]), NOW()
        ON CONFLICT (user_id, place_id) DO NOTHING
    `, userID, placeIDs)
	if err != nil {
		return fmt.Errorf("upsert leads for %s: %w", userID, err)
	}
	return nil
}

func scanPlaces(rows pgx.Rows) ([]entity.Place, error) {
	var places []entity.Place
	for rows.Next() {
		var (
			place        entity.Place
			rating       sql.NullFloat64
			reviews      sql.NullInt64
			address      sql.NullString
			phone        sql.NullString
			website      sql.NullString
			status       sql.NullString
			lat, lng     sql.NullFloat64
			viewportJSON []byte
			photosJSON   []byte
		)
		if err := rows.Scan(
			&place.PlaceID,
			&place.Name,
			&rating,
			&reviews,
			&address,
			&phone,
			&website,
			&status,
			&lat,
			&lng,
			&viewportJSON,
			&photosJSON,
		); err != nil {
			return nil, fmt.Errorf("scan place row: %w", err)
		}

		if rating.Valid {
			place.Rating = &rating.Float64
		}
		if reviews.Valid {
			count := int(reviews.Int64)
			place.Reviews = &count
		}
		if address.Valid {
			place.Address = &address.String
		}
		if phone.Valid {
			place.Phone = &phone.String
		}
		if website.Valid {
			place.Website = &website.String
		}
		if status.Valid {
			place.BusinessStatus = &status.String
		}
		if lat.Valid && lng.Valid {
			place.Location = &entity.LatLng{Lat: lat.Float64, Lng: lng.Float64}
		}
		if len(viewportJSON) > 0 {
			var vp entity.Viewport
			if err := json.Unmarshal(viewportJSON, &vp); err == nil {
				place.Viewport = &vp
			}
		}
		if len(photosJSON) > 0 {
			var photos []string
			if err := json.Unmarshal(photosJSON, &photos); err == nil {
				place.Photos = photos
			}
		}

		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate place rows: %w", err)
	}
	return places, nil
}

func scanEnrichedPlaces(rows pgx.Rows) ([]entity.EnrichedPlace, error) {
	var places []entity.EnrichedPlace
	for rows.Next() {
		var (
			place        entity.EnrichedPlace
			rating       sql.NullFloat64
			reviews      sql.NullInt64
			address      sql.NullString
			phone        sql.NullString
			website      sql.NullString
			status       sql.NullString
			lat, lng     sql.NullFloat64
			viewportJSON []byte
			photosJSON   []byte
			scrapeStatus sql.NullString
			emailsJSON   []byte
			scoresJSON   []byte
			phonesJSON   []byte
			socialsJSON  []byte
			enrichedAt   sql.NullTime
		)
		if err := rows.Scan(
			&place.PlaceID,
			&place.Name,
			&rating,
			&reviews,
			&address,
			&phone,
			&website,
			&status,
			&lat,
			&lng,
			&viewportJSON,
			&photosJSON,
			&scrapeStatus,
			&emailsJSON,
			&scoresJSON,
			&phonesJSON,
			&socialsJSON,
			&enrichedAt,
		); err != nil {
			return nil, fmt.Errorf("scan enriched place row: %w", err)
		}

		if rating.Valid {
			place.Rating = &rating.Float64
		}
		if reviews.Valid {
			count := int(reviews.Int64)
			place.Reviews = &count
		}
		if address.Valid {
			place.Address = &address.String
		}
		if phone.Valid {
			place.Phone = &phone.String
		}
		if website.Valid {
			place.Website = &website.String
		}
		if status.Valid {
			place.BusinessStatus = &status.String
		}
		if lat.Valid && lng.Valid {
			place.Location = &entity.LatLng{Lat: lat.Float64, Lng: lng.Float64}
		}
		if len(viewportJSON) > 0 {
			var vp entity.Viewport
			if err := json.Unmarshal(viewportJSON, &vp); err == nil {
				place.Viewport = &vp
			}
		}
		if len(photosJSON) > 0 {
			var photos []string
			if err := json.Unmarshal(photosJSON, &photos); err == nil {
				place.Photos = photos
			}
		}

		place.ScrapeStatus = entity.ScrapeStatusPending
		if scrapeStatus.Valid {
			place.ScrapeStatus = scrapeStatus.String
		}
		if len(emailsJSON) > 0 {
			var emails []string
			if err := json.Unmarshal(emailsJSON, &emails); err == nil {
				place.Emails = emails
			}
		}
		if len(scoresJSON) > 0 {
			var scores map[string]float64
			if err := json.Unmarshal(scoresJSON, &scores); err == nil {
				place.EmailScores = scores
			}
		}
		if len(phonesJSON) > 0 {
			var phones []string
			if err := json.Unmarshal(phonesJSON, &phones); err == nil {
				place.Phones = phones
			}
		}
		if len(socialsJSON) > 0 {
			var socials map[string]string
			if err := json.Unmarshal(socialsJSON, &socials); err == nil {
				place.Socials = socials
			}
		}
		if enrichedAt.Valid {
			place.EnrichedAt = &enrichedAt.Time
		}

		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enriched place rows: %w", err)
	}
	return places, nil
}

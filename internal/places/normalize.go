package places

import (
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/leads-generator/search/internal/entity"
)

// normalizePlace converts a raw provider hit into the normalized record
// persisted and served everywhere else.
func normalizePlace(raw rawPlace) entity.Place {
	place := entity.Place{
		PlaceID: raw.ID,
	}
	if raw.DisplayName != nil {
		place.Name = raw.DisplayName.Text
	}
	place.Rating = raw.Rating
	place.Reviews = raw.UserRatingCount
	if addr := strings.TrimSpace(raw.FormattedAddress); addr != "" {
		place.Address = &addr
	}
	if phone := normalizePhone(raw.InternationalPhoneNumber, raw.NationalPhoneNumber); phone != "" {
		place.Phone = &phone
	}
	if site := normalizeWebsite(raw.WebsiteURI); site != "" {
		place.Website = &site
	}
	if status := strings.TrimSpace(raw.BusinessStatus); status != "" {
		place.BusinessStatus = &status
	}
	if raw.Location != nil {
		place.Location = &entity.LatLng{Lat: raw.Location.Latitude, Lng: raw.Location.Longitude}
	}
	if raw.Viewport != nil {
		place.Viewport = &entity.Viewport{
			Northeast: entity.LatLng{Lat: raw.Viewport.High.Latitude, Lng: raw.Viewport.High.Longitude},
			Southwest: entity.LatLng{Lat: raw.Viewport.Low.Latitude, Lng: raw.Viewport.Low.Longitude},
		}
	}
	for _, photo := range raw.Photos {
		if photo.Name != "" {
			place.Photos = append(place.Photos, photo.Name)
		}
	}
	if raw.CurrentOpeningHours != nil {
		place.OpenNow = raw.CurrentOpeningHours.OpenNow
	}
	return place
}

// normalizePhone prefers the international representation and renders it in
// E.164. Unparseable numbers are kept as-is rather than dropped.
func normalizePhone(international, national string) string {
	candidate := strings.TrimSpace(international)
	if candidate == "" {
		candidate = strings.TrimSpace(national)
	}
	if candidate == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(candidate, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return candidate
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// normalizeWebsite lowercases the host and renders internationalized domains
// in punycode so the same site always dedupes to one string.
func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	host := strings.ToLower(parsed.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := parsed.Port(); port != "" {
		host = host + ":" + port
	}
	parsed.Host = host
	return parsed.String()
}

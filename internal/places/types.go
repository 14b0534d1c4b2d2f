package places

// Wire types for the provider's text-search endpoint
// (POST /v1/places:searchText).

type textSearchRequest struct {
	TextQuery    string        `json:"textQuery"`
	LanguageCode string        `json:"languageCode,omitempty"`
	PageSize     int           `json:"pageSize,omitempty"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle *circle `json:"circle,omitempty"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type textSearchResponse struct {
	Places        []rawPlace `json:"places"`
	NextPageToken string     `json:"nextPageToken"`
}

type rawPlace struct {
	ID                       string         `json:"id"`
	DisplayName              *localizedText `json:"displayName"`
	FormattedAddress         string         `json:"formattedAddress"`
	InternationalPhoneNumber string         `json:"internationalPhoneNumber"`
	NationalPhoneNumber      string         `json:"nationalPhoneNumber"`
	WebsiteURI               string         `json:"websiteUri"`
	Rating                   *float64       `json:"rating"`
	UserRatingCount          *int           `json:"userRatingCount"`
	BusinessStatus           string         `json:"businessStatus"`
	Location                 *latLng        `json:"location"`
	Viewport                 *rawViewport   `json:"viewport"`
	Photos                   []rawPhoto     `json:"photos"`
	CurrentOpeningHours      *openingHours  `json:"currentOpeningHours"`
}

type localizedText struct {
	Text string `json:"text"`
}

type rawViewport struct {
	Low  latLng `json:"low"`
	High latLng `json:"high"`
}

type rawPhoto struct {
	Name string `json:"name"`
}

type openingHours struct {
	OpenNow *bool `json:"openNow"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

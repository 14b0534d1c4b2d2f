package entity

// Plan describes the search limits attached to a billing tier.
type Plan struct {
	Name string `json:"name"`
	// PageSize is how many places one logical result page holds.
	PageSize int `json:"page_size"`
	// MaxResults caps how many places a single search session may retrieve
	// across standard-pagination continuations.
	MaxResults int `json:"max_results"`
	// GridSize is the base N for an N x N deep-search grid.
	GridSize int `json:"grid_size"`
	// MaxPagesPerGrid bounds provider pagination within one grid sector.
	MaxPagesPerGrid int `json:"max_pages_per_grid"`
	// MaxDeepPages bounds how many result pages a deep search may materialize.
	MaxDeepPages int `json:"max_deep_pages"`
}

// DefaultPlans returns the built-in tier table keyed by plan name.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"free": {
			Name:            "free",
			PageSize:        20,
			MaxResults:      60,
			GridSize:        3,
			MaxPagesPerGrid: 2,
			MaxDeepPages:    5,
		},
		"starter": {
			Name:            "starter",
			PageSize:        20,
			MaxResults:      120,
			GridSize:        5,
			MaxPagesPerGrid: 3,
			MaxDeepPages:    10,
		},
		"pro": {
			Name:            "pro",
			PageSize:        20,
			MaxResults:      200,
			GridSize:        8,
			MaxPagesPerGrid: 5,
			MaxDeepPages:    20,
		},
	}
}

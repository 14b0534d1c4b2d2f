package dto

// SearchRequest is the payload accepted by POST /search.
type SearchRequest struct {
	City       string `json:"city"`
	Keyword    string `json:"keyword"`
	DeepSearch bool   `json:"deep_search,omitempty"`
	PageToken  string `json:"page_token,omitempty"`
}

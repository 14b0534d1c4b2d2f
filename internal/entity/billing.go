package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account holds a user's credit balance and plan assignment.
type Account struct {
	UserID    uuid.UUID `json:"user_id"`
	Plan      string    `json:"plan"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger entry types.
const (
	LedgerTypeSearch     = "SEARCH"
	LedgerTypeDeepSearch = "DEEP_SEARCH"
)

// LedgerEntry is an append-only record of a credit movement. Entries are
// never mutated after creation.
type LedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    int             `json:"amount"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SearchHistory records a newly initiated search (not continuations).
type SearchHistory struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	City       string    `json:"city"`
	Keyword    string    `json:"keyword"`
	DeepSearch bool      `json:"deep_search"`
	JobID      string    `json:"job_id"`
	CreatedAt  time.Time `json:"created_at"`
}

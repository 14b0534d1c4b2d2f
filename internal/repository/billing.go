package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-generator/search/internal/entity"
)

// ErrInsufficientCredits is returned when a charge would overdraw the
// account. Business-rule error: surfaced to the caller, never retried.
var ErrInsufficientCredits = errors.New("insufficient credits")

const defaultPlan = "free"

// signupCredits is the balance granted to a freshly created account.
const signupCredits = 30

// SearchCharge describes one atomic billing commit.
type SearchCharge struct {
	UserID     uuid.UUID
	Amount     int
	LedgerType string
	Metadata   map[string]any
	// History is recorded for newly initiated searches only, not continuations.
	History *entity.SearchHistory
}

// BillingRepository manages credit accounts and the append-only ledger.
type BillingRepository interface {
	GetOrCreateAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	ChargeSearch(ctx context.Context, charge SearchCharge) error
}

// PGXBillingRepository implements BillingRepository using pgx.
type PGXBillingRepository struct {
	pool pgxPool
}

// NewPGXBillingRepository wires a pgx backed billing repository.
func NewPGXBillingRepository(pool *pgxpool.Pool) *PGXBillingRepository {
	return &PGXBillingRepository{pool: pool}
}

// GetOrCreateAccount fetches the user's billing record, creating it with the
// default plan and signup balance on first contact.
func (r *PGXBillingRepository) GetOrCreateAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO accounts (user_id, plan, credits)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING user_id, plan, credits, created_at, updated_at
    `, userID, defaultPlan, signupCredits)

	var account entity.Account
	if err := row.Scan(&account.UserID, &account.Plan, &account.Credits, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get or create account %s: %w", userID, err)
	}
	return &account, nil
}

// ChargeSearch commits the credit decrement, the ledger entry and (for new
// searches) the history record as one transaction. The decrement is
// conditional on the balance so concurrent spends cannot overdraw.
func (r *PGXBillingRepository) ChargeSearch(ctx context.Context, charge SearchCharge) error {
	if charge.Amount <= 0 {
		return fmt.Errorf("charge amount must be positive, got %d", charge.Amount)
	}

	metadata := charge.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode charge metadata: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start charge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE accounts
        SET credits = credits - $2, updated_at = NOW()
        WHERE user_id = $1 AND credits >= $2
    `, charge.UserID, charge.Amount)
	if err != nil {
		return fmt.Errorf("decrement credits for %s: %w", charge.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO credit_ledger (user_id, amount, type, metadata)
        VALUES ($1, $2, $3, $4::jsonb)
    `, charge.UserID, -charge.Amount, charge.LedgerType, metadataJSON); err != nil {
		return fmt.Errorf("insert ledger entry for %s: %w", charge.UserID, err)
	}

	if charge.History != nil {
		if _, err := tx.Exec(ctx, `
            INSERT INTO search_history (user_id, city, keyword, deep_search, job_id)
            VALUES ($1, $2, $3, $4, $5)
        `, charge.History.UserID, charge.History.City, charge.History.Keyword,
			charge.History.DeepSearch, charge.History.JobID); err != nil {
			return fmt.Errorf("insert search history for %s: %w", charge.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit charge tx: %w", err)
	}
	return nil
}

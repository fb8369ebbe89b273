package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

// TransactionRepository stores provider-side payment records.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Upsert inserts or refreshes the row keyed by (provider, provider_reference).
// An empty intent reference or user id never overwrites a known one.
func (r *TransactionRepository) Upsert(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, provider, provider_reference, intent_reference, user_id, amount, currency,
			status, raw_event_type, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (provider, provider_reference) DO UPDATE SET
			intent_reference = COALESCE(NULLIF(EXCLUDED.intent_reference, ''), transactions.intent_reference),
			user_id = COALESCE(EXCLUDED.user_id, transactions.user_id),
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			raw_event_type = EXCLUDED.raw_event_type,
			metadata = transactions.metadata || EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		tx.ID, tx.Provider, tx.ProviderReference, tx.IntentReference, tx.UserID, tx.Amount, tx.Currency,
		tx.Status, tx.RawEventType, tx.Metadata, tx.CreatedAt, tx.UpdatedAt,
	)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to upsert transaction")
	}
	return nil
}

func (r *TransactionRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, providerReference string) (*domain.Transaction, error) {
	var tx domain.Transaction
	query := `SELECT * FROM transactions WHERE provider = $1 AND provider_reference = $2`
	err := r.db.GetContext(ctx, &tx, query, provider, providerReference)
	if err == sql.ErrNoRows {
		return nil, errors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find transaction")
	}
	return &tx, nil
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

type PaymentIntentRepository struct {
	db *sqlx.DB
}

func NewPaymentIntentRepository(db *sqlx.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, reference, user_id, wallet_id, amount, currency, country, payment_method,
			provider, provider_reference, client_secret, checkout_url, status, failure_reason,
			description, metadata, completed_at, created_at, updated_at
		) VALUES (
			:id, :reference, :user_id, :wallet_id, :amount, :currency, :country, :payment_method,
			:provider, :provider_reference, :client_secret, :checkout_url, :status, :failure_reason,
			:description, :metadata, :completed_at, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, intent)
	return errors.Wrap(err, "failed to create payment intent")
}

// UpdateProviderDetails stores what the provider returned for a new intent
// and returns the stored row. Status is left to TransitionStatus. Intents a
// callback has already settled are not touched and yield
// ErrInvalidIntentTransition.
func (r *PaymentIntentRepository) UpdateProviderDetails(ctx context.Context, intent *domain.PaymentIntent) (*domain.PaymentIntent, error) {
	stored := &domain.PaymentIntent{}
	query := `
		UPDATE payment_intents SET
			provider_reference = $1,
			client_secret = $2,
			checkout_url = $3,
			updated_at = $4
		WHERE id = $5 AND status = ANY($6)
		RETURNING *
	`
	open := pq.Array([]string{string(domain.IntentStatusRequiresPayment), string(domain.IntentStatusProcessing)})
	err := r.db.GetContext(ctx, stored, query,
		intent.ProviderReference, intent.ClientSecret, intent.CheckoutURL, time.Now().UTC(), intent.ID, open)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrInvalidIntentTransition
		}
		return nil, errors.Wrap(err, "failed to update payment intent")
	}
	return stored, nil
}

// TransitionStatus moves the intent to `to` only if its current status is
// one of `from`. It returns ErrInvalidIntentTransition when no row matched.
func (r *PaymentIntentRepository) TransitionStatus(ctx context.Context, reference string, from []domain.IntentStatus, to domain.IntentStatus, failureReason string) (*domain.PaymentIntent, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if to.IsTerminal() {
		completedAt = &now
	}

	intent := &domain.PaymentIntent{}
	query := `
		UPDATE payment_intents SET
			status = $1,
			failure_reason = $2,
			completed_at = COALESCE($3, completed_at),
			updated_at = $4
		WHERE reference = $5 AND status = ANY($6)
		RETURNING *
	`
	err := r.db.GetContext(ctx, intent, query, to, failureReason, completedAt, now, reference, pq.Array(allowed))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrInvalidIntentTransition
		}
		return nil, errors.Wrap(err, "failed to transition payment intent")
	}
	return intent, nil
}

func (r *PaymentIntentRepository) FindByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	intent := &domain.PaymentIntent{}
	err := r.db.GetContext(ctx, intent, `SELECT * FROM payment_intents WHERE reference = $1`, reference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrIntentNotFound
		}
		return nil, errors.Wrap(err, "failed to find payment intent")
	}
	return intent, nil
}

func (r *PaymentIntentRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, providerReference string) (*domain.PaymentIntent, error) {
	intent := &domain.PaymentIntent{}
	query := `SELECT * FROM payment_intents WHERE provider = $1 AND provider_reference = $2`
	err := r.db.GetContext(ctx, intent, query, provider, providerReference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrIntentNotFound
		}
		return nil, errors.Wrap(err, "failed to find payment intent by provider reference")
	}
	return intent, nil
}

func (r *PaymentIntentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.PaymentIntent, error) {
	var intents []*domain.PaymentIntent
	query := `SELECT * FROM payment_intents WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &intents, query, userID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list payment intents")
	}
	return intents, nil
}

// ListStale returns intents stuck in status since before cutoff, oldest first.
func (r *PaymentIntentRepository) ListStale(ctx context.Context, status domain.IntentStatus, cutoff time.Time, limit int) ([]*domain.PaymentIntent, error) {
	var intents []*domain.PaymentIntent
	query := `SELECT * FROM payment_intents
		WHERE status = $1 AND updated_at < $2 AND provider_reference <> ''
		ORDER BY updated_at ASC LIMIT $3`
	if err := r.db.SelectContext(ctx, &intents, query, status, cutoff, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list stale payment intents")
	}
	return intents, nil
}

func (r *PaymentIntentRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payment_intents WHERE user_id = $1`, userID)
	return count, errors.Wrap(err, "failed to count payment intents")
}

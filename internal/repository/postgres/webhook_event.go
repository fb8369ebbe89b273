package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

type WebhookEventRepository struct {
	db *sqlx.DB
}

func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record stores ev once per (provider, event_id). When the pair already
// exists the stored row is returned with created=false.
func (r *WebhookEventRepository) Record(ctx context.Context, ev *domain.WebhookEvent) (*domain.WebhookEvent, bool, error) {
	query := `
		INSERT INTO webhook_events (id, provider, event_id, event_type, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Provider, ev.EventID, ev.EventType, ev.Payload, ev.Status, ev.ReceivedAt)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to record webhook event")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 1 {
		return ev, true, nil
	}

	existing := &domain.WebhookEvent{}
	err = r.db.GetContext(ctx, existing,
		`SELECT * FROM webhook_events WHERE provider = $1 AND event_id = $2`, ev.Provider, ev.EventID)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to load webhook event")
	}
	return existing, false, nil
}

func (r *WebhookEventRepository) MarkStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, errMsg string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errMsg, now, id)
	return errors.Wrap(err, "failed to update webhook event")
}

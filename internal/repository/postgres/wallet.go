package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, user_id, currency, balance, status, created_at, updated_at
		) VALUES (
			:id, :user_id, :currency, :balance, :status, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, wallet)
	if isUniqueViolation(err, "wallets_user_currency_key") {
		return errors.ErrWalletAlreadyExists
	}
	return errors.Wrap(err, "failed to create wallet")
}

func (r *WalletRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update wallet status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrWalletNotFound
	}
	return nil
}

func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT * FROM wallets WHERE id = $1`
	err := r.db.GetContext(ctx, wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet by id")
	}
	return wallet, nil
}

func (r *WalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	query := `SELECT * FROM wallets WHERE user_id = $1 ORDER BY created_at`
	err := r.db.SelectContext(ctx, &wallets, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find wallets by user id")
	}
	return wallets, nil
}

func (r *WalletRepository) FindByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT * FROM wallets WHERE user_id = $1 AND currency = $2`
	err := r.db.GetContext(ctx, wallet, query, userID, currency)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet by user and currency")
	}
	return wallet, nil
}

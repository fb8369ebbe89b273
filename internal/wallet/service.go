// ==============================================================================
// WALLET SERVICE - internal/wallet/service.go
// ==============================================================================
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"payvost/internal/domain"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error)
	FindByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// EnsureWallet returns the user's wallet in currency, creating an empty one
// on first use.
func (s *Service) EnsureWallet(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	currency = domain.NormalizeCurrency(string(currency))

	existing, err := s.repo.FindByUserAndCurrency(ctx, userID, currency)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errors.ErrWalletNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		Balance:   decimal.Zero,
		Status:    domain.WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		if errors.Is(err, errors.ErrWalletAlreadyExists) {
			// Lost a creation race; the other request's wallet is the one.
			return s.repo.FindByUserAndCurrency(ctx, userID, currency)
		}
		return nil, err
	}

	s.logger.Info("Wallet created", map[string]interface{}{
		"wallet_id": wallet.ID,
		"user_id":   userID,
		"currency":  currency,
	})

	return wallet, nil
}

func (s *Service) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.repo.FindByID(ctx, id)
}

// GetUserWallet returns the wallet only if it belongs to userID.
func (s *Service) GetUserWallet(ctx context.Context, id, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		return nil, errors.ErrAccessDenied
	}
	return wallet, nil
}

func (s *Service) GetUserWallets(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	return s.repo.FindByUserID(ctx, userID)
}

package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"payvost/internal/domain"
	pkgerrors "payvost/pkg/errors"
	"payvost/pkg/logger"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Wallet), args.Error(1)
}

func (m *MockRepository) FindByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

// --- Tests ---

func TestEnsureWallet_ReturnsExisting(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	existing := &domain.Wallet{ID: uuid.New(), UserID: userID, Currency: domain.NGN, Balance: decimal.NewFromInt(10)}
	mockRepo.On("FindByUserAndCurrency", ctx, userID, domain.NGN).Return(existing, nil)

	w, err := service.EnsureWallet(ctx, userID, "ngn")
	require.NoError(t, err)
	assert.Equal(t, existing, w)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnsureWallet_CreatesOnFirstUse(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	mockRepo.On("FindByUserAndCurrency", ctx, userID, domain.KES).Return(nil, pkgerrors.ErrWalletNotFound)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(w *domain.Wallet) bool {
		return w.UserID == userID && w.Currency == domain.KES && w.Balance.IsZero() && w.Status == domain.WalletStatusActive
	})).Return(nil)

	w, err := service.EnsureWallet(ctx, userID, domain.KES)
	require.NoError(t, err)
	assert.Equal(t, domain.KES, w.Currency)
	mockRepo.AssertExpectations(t)
}

func TestEnsureWallet_CreationRace(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	userID := uuid.New()
	winner := &domain.Wallet{ID: uuid.New(), UserID: userID, Currency: domain.USD}

	mockRepo.On("FindByUserAndCurrency", ctx, userID, domain.USD).Return(nil, pkgerrors.ErrWalletNotFound).Once()
	mockRepo.On("Create", ctx, mock.Anything).Return(pkgerrors.ErrWalletAlreadyExists)
	mockRepo.On("FindByUserAndCurrency", ctx, userID, domain.USD).Return(winner, nil).Once()

	w, err := service.EnsureWallet(ctx, userID, domain.USD)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, w.ID)
}

func TestEnsureWallet_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	mockRepo.On("FindByUserAndCurrency", ctx, userID, domain.EUR).Return(nil, errors.New("connection reset"))

	_, err := service.EnsureWallet(ctx, userID, domain.EUR)
	assert.Error(t, err)
}

func TestGetUserWallets(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	wallets := []*domain.Wallet{
		{ID: uuid.New(), UserID: userID, Currency: domain.USD, Balance: decimal.NewFromFloat(100.00)},
	}
	mockRepo.On("FindByUserID", ctx, userID).Return(wallets, nil)

	got, err := service.GetUserWallets(ctx, userID)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, domain.USD, got[0].Currency)
}

func TestGetUserWallet_Ownership(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, logger.NewNop())
	ctx := context.Background()
	walletID := uuid.New()
	owner := uuid.New()

	mockRepo.On("FindByID", ctx, walletID).Return(&domain.Wallet{ID: walletID, UserID: owner}, nil)

	_, err := service.GetUserWallet(ctx, walletID, owner)
	assert.NoError(t, err)

	_, err = service.GetUserWallet(ctx, walletID, uuid.New())
	assert.True(t, errors.Is(err, pkgerrors.ErrAccessDenied))
}

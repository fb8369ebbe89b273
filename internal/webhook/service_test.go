package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payvost/internal/domain"
	"payvost/internal/payment"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Record(ctx context.Context, ev *domain.WebhookEvent) (*domain.WebhookEvent, bool, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Bool(1), args.Error(2)
}

func (m *MockEventRepository) MarkStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, errMsg string) error {
	return m.Called(ctx, id, status, errMsg).Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Upsert(ctx context.Context, tx *domain.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) FindForProvider(ctx context.Context, p domain.ProviderID, intentRef, providerRef string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, p, intentRef, providerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *MockPayments) ApplyProviderStatus(ctx context.Context, intent *domain.PaymentIntent, update payment.ProviderUpdate) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, intent, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

// stubVerifier accepts every payload and returns a fixed event.
type stubVerifier struct {
	event *NormalizedEvent
	err   error
}

func (v *stubVerifier) Provider() domain.ProviderID { return domain.ProviderPaystack }

func (v *stubVerifier) VerifyAndParse([]byte, http.Header) (*NormalizedEvent, error) {
	return v.event, v.err
}

type webhookFixture struct {
	events   *MockEventRepository
	txs      *MockTransactionRepository
	payments *MockPayments
	svc      *Service
}

func newWebhookFixture(v Verifier) *webhookFixture {
	f := &webhookFixture{
		events:   new(MockEventRepository),
		txs:      new(MockTransactionRepository),
		payments: new(MockPayments),
	}
	f.svc = NewService(f.events, f.txs, f.payments, logger.NewNop(), v)
	return f
}

func successEvent() *NormalizedEvent {
	return &NormalizedEvent{
		Provider:          domain.ProviderPaystack,
		EventID:           "charge.success:1",
		Type:              "charge.success",
		ProviderReference: "pi_ref",
		IntentReference:   "pi_ref",
		Status:            domain.IntentStatusSucceeded,
		Amount:            decimal.NewFromInt(5000),
		Currency:          domain.NGN,
	}
}

func processingIntent() *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:        uuid.New(),
		Reference: "pi_ref",
		UserID:    uuid.New(),
		Amount:    decimal.NewFromInt(5000),
		Currency:  domain.NGN,
		Provider:  domain.ProviderPaystack,
		Status:    domain.IntentStatusProcessing,
	}
}

func TestHandle_AppliesSuccess(t *testing.T) {
	ev := successEvent()
	f := newWebhookFixture(&stubVerifier{event: ev})
	ctx := context.Background()
	intent := processingIntent()
	succeeded := *intent
	succeeded.Status = domain.IntentStatusSucceeded
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.MatchedBy(func(e *domain.WebhookEvent) bool {
		return e.EventID == ev.EventID && e.Status == domain.WebhookEventReceived
	})).Return(&domain.WebhookEvent{ID: storedID, Status: domain.WebhookEventReceived}, true, nil)
	f.payments.On("FindForProvider", ctx, domain.ProviderPaystack, "pi_ref", "pi_ref").Return(intent, nil)
	f.txs.On("Upsert", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool {
		return tx.Status == domain.TransactionStatusSucceeded && tx.UserID != nil && *tx.UserID == intent.UserID
	})).Return(nil)
	f.payments.On("ApplyProviderStatus", ctx, intent, mock.MatchedBy(func(u payment.ProviderUpdate) bool {
		return u.Status == domain.IntentStatusSucceeded && u.Amount.Equal(intent.Amount)
	})).Return(&succeeded, nil)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventProcessed, "").Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventProcessed, res.Status)
	assert.Equal(t, domain.IntentStatusSucceeded, res.IntentStatus)
	assert.False(t, res.Duplicate)
	f.events.AssertExpectations(t)
	f.txs.AssertExpectations(t)
}

func TestHandle_DuplicateEventShortCircuits(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})
	ctx := context.Background()

	f.events.On("Record", ctx, mock.Anything).
		Return(&domain.WebhookEvent{ID: uuid.New(), Status: domain.WebhookEventProcessed}, false, nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	f.payments.AssertNotCalled(t, "ApplyProviderStatus", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "MarkStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_RetriesPreviouslyFailedEvent(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})
	ctx := context.Background()
	intent := processingIntent()
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.Anything).
		Return(&domain.WebhookEvent{ID: storedID, Status: domain.WebhookEventFailed}, false, nil)
	f.payments.On("FindForProvider", ctx, mock.Anything, mock.Anything, mock.Anything).Return(intent, nil)
	f.txs.On("Upsert", ctx, mock.Anything).Return(nil)
	f.payments.On("ApplyProviderStatus", ctx, intent, mock.Anything).Return(intent, nil)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventProcessed, "").Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	f.payments.AssertNumberOfCalls(t, "ApplyProviderStatus", 1)
}

func TestHandle_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{err: errors.Wrap(errors.ErrInvalidSignature, "paystack")})

	_, err := f.svc.Handle(context.Background(), domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	assert.True(t, errors.Is(err, errors.ErrInvalidSignature))
	f.events.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestHandle_UnknownProvider(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})

	_, err := f.svc.Handle(context.Background(), domain.ProviderStripe, http.Header{}, nil)

	assert.True(t, errors.Is(err, errors.ErrProviderNotFound))
}

func TestHandle_IgnoredEventType(t *testing.T) {
	ev := successEvent()
	ev.Status = ""
	f := newWebhookFixture(&stubVerifier{event: ev})
	ctx := context.Background()
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.Anything).Return(&domain.WebhookEvent{ID: storedID}, true, nil)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventIgnored, "").Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventIgnored, res.Status)
	f.txs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHandle_UnknownIntentIsIgnored(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})
	ctx := context.Background()
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.Anything).Return(&domain.WebhookEvent{ID: storedID}, true, nil)
	f.payments.On("FindForProvider", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.ErrIntentNotFound)
	f.txs.On("Upsert", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool { return tx.UserID == nil })).Return(nil)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventIgnored, errors.ErrIntentNotFound.Error()).Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventIgnored, res.Status)
}

func TestHandle_LateEventForSettledIntent(t *testing.T) {
	ev := successEvent()
	ev.Status = domain.IntentStatusFailed
	f := newWebhookFixture(&stubVerifier{event: ev})
	ctx := context.Background()
	intent := processingIntent()
	intent.Status = domain.IntentStatusSucceeded
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.Anything).Return(&domain.WebhookEvent{ID: storedID}, true, nil)
	f.payments.On("FindForProvider", ctx, mock.Anything, mock.Anything, mock.Anything).Return(intent, nil)
	f.txs.On("Upsert", ctx, mock.Anything).Return(nil)
	f.payments.On("ApplyProviderStatus", ctx, intent, mock.Anything).Return(intent, errors.ErrInvalidIntentTransition)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventIgnored, mock.Anything).Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventIgnored, res.Status)
	assert.Equal(t, domain.IntentStatusSucceeded, res.IntentStatus)
}

func TestHandle_LedgerFailureAsksForRetry(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})
	ctx := context.Background()
	intent := processingIntent()
	storedID := uuid.New()
	dbErr := errors.Wrap(errors.ErrWalletInactive, "credit")

	f.events.On("Record", ctx, mock.Anything).Return(&domain.WebhookEvent{ID: storedID}, true, nil)
	f.payments.On("FindForProvider", ctx, mock.Anything, mock.Anything, mock.Anything).Return(intent, nil)
	f.txs.On("Upsert", ctx, mock.Anything).Return(nil)
	f.payments.On("ApplyProviderStatus", ctx, intent, mock.Anything).Return(intent, dbErr)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventFailed, dbErr.Error()).Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	assert.ErrorIs(t, err, errors.ErrWalletInactive)
	assert.Equal(t, domain.WebhookEventFailed, res.Status)
}

func TestHandle_AmountMismatchIsNotRetried(t *testing.T) {
	f := newWebhookFixture(&stubVerifier{event: successEvent()})
	ctx := context.Background()
	intent := processingIntent()
	storedID := uuid.New()

	f.events.On("Record", ctx, mock.Anything).Return(&domain.WebhookEvent{ID: storedID}, true, nil)
	f.payments.On("FindForProvider", ctx, mock.Anything, mock.Anything, mock.Anything).Return(intent, nil)
	f.txs.On("Upsert", ctx, mock.Anything).Return(nil)
	f.payments.On("ApplyProviderStatus", ctx, intent, mock.Anything).Return(intent, errors.ErrAmountMismatch)
	f.events.On("MarkStatus", ctx, storedID, domain.WebhookEventFailed, errors.ErrAmountMismatch.Error()).Return(nil)

	res, err := f.svc.Handle(ctx, domain.ProviderPaystack, http.Header{}, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventFailed, res.Status)
}

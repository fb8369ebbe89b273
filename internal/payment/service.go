// ==============================================================================
// PAYMENT INTENT SERVICE - internal/payment/service.go
// ==============================================================================
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"

	"payvost/internal/domain"
	"payvost/internal/ledger"
	"payvost/internal/notification"
	"payvost/internal/provider"
	"payvost/internal/routing"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
	"payvost/pkg/validator"
)

const (
	referencePrefix = "pi_"
	referenceLength = 21
)

type Repository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	UpdateProviderDetails(ctx context.Context, intent *domain.PaymentIntent) (*domain.PaymentIntent, error)
	TransitionStatus(ctx context.Context, reference string, from []domain.IntentStatus, to domain.IntentStatus, failureReason string) (*domain.PaymentIntent, error)
	FindByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error)
	FindByProviderReference(ctx context.Context, p domain.ProviderID, providerReference string) (*domain.PaymentIntent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.PaymentIntent, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type WalletService interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
}

type Router interface {
	Route(ctx context.Context, req routing.RouteRequest) (*routing.Decision, error)
	Record(ctx context.Context, intentReference string, req routing.RouteRequest, d *routing.Decision) error
}

type LedgerService interface {
	Credit(ctx context.Context, req *ledger.CreditRequest) (*ledger.CreditResult, error)
}

type ProviderLookup interface {
	Get(id domain.ProviderID) (provider.Provider, error)
}

type Service struct {
	repo      Repository
	wallets   WalletService
	router    Router
	ledger    LedgerService
	providers ProviderLookup
	notifier  notification.Notifier
	validator *validator.Validator
	logger    logger.Logger
}

func NewService(
	repo Repository,
	wallets WalletService,
	router Router,
	ledgerService LedgerService,
	providers ProviderLookup,
	notifier notification.Notifier,
	log logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		wallets:   wallets,
		router:    router,
		ledger:    ledgerService,
		providers: providers,
		notifier:  notifier,
		validator: validator.New(),
		logger:    log,
	}
}

type CreateIntentRequest struct {
	UserID            uuid.UUID              `json:"-" validate:"required"`
	Amount            decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Currency          domain.Currency        `json:"currency" validate:"required,iso4217"`
	Country           domain.CountryCode     `json:"country" validate:"required,iso3166_1_alpha2"`
	PaymentMethod     domain.PaymentMethod   `json:"payment_method" validate:"payment_method"`
	PreferredProvider domain.ProviderID      `json:"preferred_provider,omitempty"`
	CustomerEmail     string                 `json:"customer_email" validate:"omitempty,email"`
	Description       string                 `json:"description" validate:"max=255"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type IntentResponse struct {
	Intent   *domain.PaymentIntent `json:"payment_intent"`
	Decision *routing.Decision     `json:"routing,omitempty"`
}

// ProviderUpdate is a status report from a provider, via webhook or polling.
type ProviderUpdate struct {
	Status        domain.IntentStatus
	Amount        decimal.Decimal
	Currency      domain.Currency
	FailureReason string
}

// CreateIntent routes the payment, opens it with the chosen provider and
// persists the intent together with the routing decision.
func (s *Service) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*IntentResponse, error) {
	req.Currency = domain.NormalizeCurrency(string(req.Currency))
	req.Country = domain.NormalizeCountry(string(req.Country))
	req.Description = validator.Sanitize(req.Description)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := checkPrecision(req.Amount); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.EnsureWallet(ctx, req.UserID, req.Currency)
	if err != nil {
		return nil, err
	}

	routeReq := routing.RouteRequest{
		Amount:            req.Amount,
		Currency:          req.Currency,
		Country:           req.Country,
		PaymentMethod:     req.PaymentMethod,
		PreferredProvider: req.PreferredProvider,
	}
	decision, err := s.router.Route(ctx, routeReq)
	if err != nil {
		return &IntentResponse{Decision: decision}, err
	}

	idGenerator, err := nanoid.Standard(referenceLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reference generator")
	}

	metadata := domain.Metadata{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.CustomerEmail != "" {
		metadata["customer_email"] = req.CustomerEmail
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:            uuid.New(),
		Reference:     referencePrefix + idGenerator(),
		UserID:        req.UserID,
		WalletID:      wallet.ID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Country:       req.Country,
		PaymentMethod: req.PaymentMethod,
		Provider:      decision.ProviderID,
		Status:        domain.IntentStatusRequiresPayment,
		Description:   req.Description,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, err
	}

	if err := s.router.Record(ctx, intent.Reference, routeReq, decision); err != nil {
		s.logger.Error("Failed to record routing decision", map[string]interface{}{
			"reference": intent.Reference,
			"error":     err.Error(),
		})
	}

	result, err := decision.Provider.CreatePayment(ctx, &provider.CreatePaymentRequest{
		Reference:     intent.Reference,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Country:       intent.Country,
		PaymentMethod: intent.PaymentMethod,
		CustomerEmail: req.CustomerEmail,
		Description:   intent.Description,
		Metadata: map[string]string{
			"intent_reference": intent.Reference,
			"user_id":          intent.UserID.String(),
		},
	})
	if err != nil {
		s.logger.Error("Provider rejected payment", map[string]interface{}{
			"reference": intent.Reference,
			"provider":  intent.Provider,
			"error":     err.Error(),
		})
		failed, _, tErr := s.transition(ctx, intent, domain.IntentStatusFailed, err.Error())
		if tErr == nil {
			intent = failed
			s.notify(ctx, intent)
		}
		return &IntentResponse{Intent: intent, Decision: decision}, err
	}

	intent.ProviderReference = result.ProviderReference
	intent.ClientSecret = result.ClientSecret
	intent.CheckoutURL = result.CheckoutURL
	stored, err := s.repo.UpdateProviderDetails(ctx, intent)
	if errors.Is(err, errors.ErrInvalidIntentTransition) {
		// A callback settled the intent while CreatePayment was in flight.
		current, fErr := s.repo.FindByReference(ctx, intent.Reference)
		if fErr != nil {
			return nil, fErr
		}
		current.ClientSecret = result.ClientSecret
		current.CheckoutURL = result.CheckoutURL
		return &IntentResponse{Intent: current, Decision: decision}, nil
	}
	if err != nil {
		return nil, err
	}
	intent = stored

	if result.Status == domain.IntentStatusProcessing {
		updated, _, err := s.transition(ctx, intent, domain.IntentStatusProcessing, "")
		if err != nil && !errors.Is(err, errors.ErrInvalidIntentTransition) {
			return nil, err
		}
		intent = updated
	}

	s.logger.Info("Payment intent created", map[string]interface{}{
		"reference":          intent.Reference,
		"provider":           intent.Provider,
		"provider_reference": intent.ProviderReference,
		"amount":             intent.Amount.String(),
		"currency":           intent.Currency,
		"score":              decision.Score,
	})

	if result.Status.IsTerminal() {
		updated, err := s.ApplyProviderStatus(ctx, intent, ProviderUpdate{Status: result.Status})
		if err != nil {
			return nil, err
		}
		intent = updated
	}

	return &IntentResponse{Intent: intent, Decision: decision}, nil
}

// Quote runs the router without creating anything.
func (s *Service) Quote(ctx context.Context, req routing.RouteRequest) (*routing.Decision, error) {
	req.Currency = domain.NormalizeCurrency(string(req.Currency))
	req.Country = domain.NormalizeCountry(string(req.Country))
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := checkPrecision(req.Amount); err != nil {
		return nil, err
	}
	return s.router.Route(ctx, req)
}

// checkPrecision rejects amounts that do not convert exactly to minor units.
func checkPrecision(amount decimal.Decimal) error {
	if domain.HasMinorUnitPrecision(amount) {
		return nil
	}
	return fmt.Errorf("%w: amount %s has more than %d decimal places",
		validator.ErrValidation, amount.String(), domain.MinorUnitPlaces)
}

// GetIntent returns an intent owned by userID.
func (s *Service) GetIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, errors.ErrAccessDenied
	}
	return intent, nil
}

type ListResponse struct {
	Intents []*domain.PaymentIntent `json:"payment_intents"`
	Total   int                     `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
}

func (s *Service) ListUserIntents(ctx context.Context, userID uuid.UUID, limit, offset int) (*ListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	intents, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if intents == nil {
		intents = []*domain.PaymentIntent{}
	}

	return &ListResponse{Intents: intents, Total: total, Limit: limit, Offset: offset}, nil
}

// CancelIntent is only allowed before the customer has paid.
func (s *Service) CancelIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.GetIntent(ctx, reference, userID)
	if err != nil {
		return nil, err
	}
	if !intent.Status.CanTransitionTo(domain.IntentStatusCancelled) {
		return nil, errors.ErrInvalidIntentTransition
	}

	cancelled, err := s.repo.TransitionStatus(ctx, reference,
		[]domain.IntentStatus{domain.IntentStatusRequiresPayment}, domain.IntentStatusCancelled, "cancelled by customer")
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment intent cancelled", map[string]interface{}{"reference": reference})
	s.notify(ctx, cancelled)
	return cancelled, nil
}

// SyncIntent polls the provider and applies what it reports.
func (s *Service) SyncIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.GetIntent(ctx, reference, userID)
	if err != nil {
		return nil, err
	}
	return s.Refresh(ctx, intent)
}

// Refresh is SyncIntent without the ownership check, for background reconciliation.
func (s *Service) Refresh(ctx context.Context, intent *domain.PaymentIntent) (*domain.PaymentIntent, error) {
	if intent.Status.IsTerminal() || intent.ProviderReference == "" {
		return intent, nil
	}

	p, err := s.providers.Get(intent.Provider)
	if err != nil {
		return nil, err
	}
	status, err := p.GetPaymentStatus(ctx, intent.ProviderReference)
	if err != nil {
		return nil, err
	}

	return s.ApplyProviderStatus(ctx, intent, ProviderUpdate{
		Status:        status.Status,
		Amount:        status.Amount,
		Currency:      status.Currency,
		FailureReason: status.FailureReason,
	})
}

// FindForProvider resolves the intent a provider callback refers to.
func (s *Service) FindForProvider(ctx context.Context, p domain.ProviderID, intentReference, providerReference string) (*domain.PaymentIntent, error) {
	if intentReference != "" {
		intent, err := s.repo.FindByReference(ctx, intentReference)
		if err == nil {
			return intent, nil
		}
		if !errors.Is(err, errors.ErrIntentNotFound) {
			return nil, err
		}
	}
	if providerReference == "" {
		return nil, errors.ErrIntentNotFound
	}
	return s.repo.FindByProviderReference(ctx, p, providerReference)
}

// ApplyProviderStatus moves the intent along its lifecycle. A succeeded
// intent credits its wallet using the intent reference, so repeated reports
// never credit twice.
func (s *Service) ApplyProviderStatus(ctx context.Context, intent *domain.PaymentIntent, update ProviderUpdate) (*domain.PaymentIntent, error) {
	target := update.Status
	failureReason := update.FailureReason

	// Providers may only cancel an intent that has not started processing.
	if target == domain.IntentStatusCancelled && intent.Status == domain.IntentStatusProcessing {
		target = domain.IntentStatusFailed
		if failureReason == "" {
			failureReason = "cancelled by provider"
		}
	}

	if target == domain.IntentStatusSucceeded && !update.Amount.IsZero() {
		if !update.Amount.Equal(intent.Amount) || (update.Currency != "" && update.Currency != intent.Currency) {
			s.logger.Error("Provider amount mismatch", map[string]interface{}{
				"reference":         intent.Reference,
				"intent_amount":     intent.Amount.String(),
				"intent_currency":   intent.Currency,
				"provider_amount":   update.Amount.String(),
				"provider_currency": update.Currency,
			})
			return intent, errors.ErrAmountMismatch
		}
	}

	updated, changed, err := s.transition(ctx, intent, target, failureReason)
	if err != nil {
		return intent, err
	}

	if updated.Status == domain.IntentStatusSucceeded {
		if err := s.credit(ctx, updated); err != nil {
			return updated, err
		}
	}
	if changed {
		s.notify(ctx, updated)
	}
	return updated, nil
}

// transition applies target if the lifecycle allows it. It reports changed=false
// when the intent is already in target.
func (s *Service) transition(ctx context.Context, intent *domain.PaymentIntent, target domain.IntentStatus, failureReason string) (*domain.PaymentIntent, bool, error) {
	if intent.Status == target {
		return intent, false, nil
	}
	if !intent.Status.CanTransitionTo(target) {
		s.logger.Warn("Ignoring invalid intent transition", map[string]interface{}{
			"reference": intent.Reference,
			"from":      intent.Status,
			"to":        target,
		})
		return intent, false, errors.ErrInvalidIntentTransition
	}

	updated, err := s.repo.TransitionStatus(ctx, intent.Reference, sourcesFor(target), target, failureReason)
	if errors.Is(err, errors.ErrInvalidIntentTransition) {
		// Lost a race with another writer; judge against the stored row.
		current, fErr := s.repo.FindByReference(ctx, intent.Reference)
		if fErr != nil {
			return intent, false, fErr
		}
		if current.Status == target {
			return current, false, nil
		}
		return current, false, err
	}
	if err != nil {
		return intent, false, err
	}

	s.logger.Info("Payment intent status changed", map[string]interface{}{
		"reference": intent.Reference,
		"from":      intent.Status,
		"to":        target,
	})
	return updated, true, nil
}

func sourcesFor(target domain.IntentStatus) []domain.IntentStatus {
	var from []domain.IntentStatus
	for _, s := range []domain.IntentStatus{domain.IntentStatusRequiresPayment, domain.IntentStatusProcessing} {
		if s.CanTransitionTo(target) {
			from = append(from, s)
		}
	}
	return from
}

func (s *Service) credit(ctx context.Context, intent *domain.PaymentIntent) error {
	res, err := s.ledger.Credit(ctx, &ledger.CreditRequest{
		WalletID:    intent.WalletID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Reference:   intent.Reference,
		Source:      string(intent.Provider),
		Description: "payment intent " + intent.Reference,
	})
	if err != nil {
		s.logger.Error("Failed to credit wallet for payment", map[string]interface{}{
			"reference": intent.Reference,
			"wallet_id": intent.WalletID,
			"error":     err.Error(),
		})
		return err
	}
	if !res.Duplicate {
		s.logger.Info("Wallet credited for payment", map[string]interface{}{
			"reference":     intent.Reference,
			"wallet_id":     intent.WalletID,
			"balance_after": res.Entry.BalanceAfter.String(),
		})
	}
	return nil
}

func (s *Service) notify(ctx context.Context, intent *domain.PaymentIntent) {
	if s.notifier == nil {
		return
	}
	if ev, ok := notification.NewIntentEvent(intent); ok {
		s.notifier.Notify(ctx, ev)
	}
}

// Package ledger credits and debits wallets. Every movement is an
// append-only entry, applied at most once per external reference.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"payvost/internal/domain"
	"payvost/internal/metrics"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

// Repository performs the locked read-modify-write; see postgres.LedgerRepository.Post.
type Repository interface {
	Post(ctx context.Context, p *domain.LedgerPosting) (*domain.LedgerEntry, bool, error)
	FindByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
	CountByWallet(ctx context.Context, walletID uuid.UUID) (int, error)
	ChainForWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.LedgerEntry, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

type CreditRequest struct {
	WalletID    uuid.UUID       `json:"wallet_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    domain.Currency `json:"currency" validate:"required,iso4217"`
	Reference   string          `json:"reference" validate:"required"`
	Source      string          `json:"source"`
	Description string          `json:"description"`
}

// DebitRequest has the same shape as a credit.
type DebitRequest = CreditRequest

type CreditResult struct {
	Entry     *domain.LedgerEntry `json:"entry"`
	Duplicate bool                `json:"duplicate"`
}

// Credit adds funds. A reference that was already applied returns the
// original entry with Duplicate set and leaves the balance untouched.
func (s *Service) Credit(ctx context.Context, req *CreditRequest) (*CreditResult, error) {
	return s.post(ctx, domain.EntryTypeCredit, req)
}

// Debit removes funds and refuses to overdraw.
func (s *Service) Debit(ctx context.Context, req *DebitRequest) (*CreditResult, error) {
	return s.post(ctx, domain.EntryTypeDebit, req)
}

func (s *Service) post(ctx context.Context, entryType domain.EntryType, req *CreditRequest) (*CreditResult, error) {
	record := metrics.RecordLedgerCredit
	if entryType == domain.EntryTypeDebit {
		record = metrics.RecordLedgerDebit
	}

	if req.Reference == "" {
		return nil, errors.ErrMissingReference
	}
	if !req.Amount.IsPositive() {
		record(req.Source, "rejected")
		return nil, errors.ErrInvalidAmount
	}

	posting := &domain.LedgerPosting{
		WalletID:    req.WalletID,
		Reference:   req.Reference,
		EntryType:   entryType,
		Amount:      req.Amount.Round(domain.AmountScale),
		Currency:    domain.NormalizeCurrency(string(req.Currency)),
		Source:      req.Source,
		Description: req.Description,
	}

	entry, duplicate, err := s.repo.Post(ctx, posting)
	if errors.Is(err, errors.ErrDuplicateReference) {
		// The unique index fired; report the row that won.
		entry, err = s.repo.FindByReference(ctx, req.Reference)
		if err == nil && entry == nil {
			err = errors.ErrDuplicateReference
		}
		duplicate = true
	}
	if err != nil {
		record(req.Source, "rejected")
		s.logger.Warn("Ledger posting rejected", map[string]interface{}{
			"wallet_id":  req.WalletID,
			"reference":  req.Reference,
			"entry_type": entryType,
			"error":      err.Error(),
		})
		return nil, err
	}

	if duplicate {
		record(req.Source, "duplicate")
		s.logger.Info("Ledger reference already applied", map[string]interface{}{
			"wallet_id": req.WalletID,
			"reference": req.Reference,
			"entry_id":  entry.ID,
		})
		return &CreditResult{Entry: entry, Duplicate: true}, nil
	}

	record(req.Source, "applied")
	s.logger.Info("Ledger entry posted", map[string]interface{}{
		"wallet_id":     entry.WalletID,
		"reference":     entry.Reference,
		"entry_type":    entry.EntryType,
		"amount":        entry.Amount.String(),
		"balance_after": entry.BalanceAfter.String(),
	})
	return &CreditResult{Entry: entry}, nil
}

type HistoryResponse struct {
	Entries []*domain.LedgerEntry `json:"entries"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

func (s *Service) History(ctx context.Context, walletID uuid.UUID, limit, offset int) (*HistoryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	return &HistoryResponse{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// ChainReport is the result of re-hashing a wallet's entries.
type ChainReport struct {
	WalletID     uuid.UUID       `json:"wallet_id"`
	Entries      int             `json:"entries"`
	Valid        bool            `json:"valid"`
	BrokenAt     int64           `json:"broken_at,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	FinalBalance decimal.Decimal `json:"final_balance"`
}

// VerifyChain recomputes every hash, link and running balance of a wallet's chain.
func (s *Service) VerifyChain(ctx context.Context, walletID uuid.UUID) (*ChainReport, error) {
	entries, err := s.repo.ChainForWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{WalletID: walletID, Entries: len(entries), Valid: true, FinalBalance: decimal.Zero}
	prevHash := domain.GenesisHash
	balance := decimal.Zero

	for i, e := range entries {
		var reason string
		switch {
		case e.Sequence != int64(i+1):
			reason = "sequence gap"
		case e.PreviousHash != prevHash:
			reason = "previous hash mismatch"
		case e.ComputeHash() != e.Hash:
			reason = "hash mismatch"
		case !e.BalanceBefore.Equal(balance):
			reason = "balance_before does not follow previous entry"
		}
		if reason == "" {
			balance = applyEntry(balance, e)
			if !e.BalanceAfter.Equal(balance) {
				reason = "balance_after does not match amount"
			}
		}

		if reason != "" {
			report.Valid = false
			report.BrokenAt = e.Sequence
			report.Reason = reason
			s.logger.Error("Ledger chain broken", map[string]interface{}{
				"wallet_id": walletID,
				"sequence":  e.Sequence,
				"reason":    reason,
			})
			return report, nil
		}
		prevHash = e.Hash
	}

	report.FinalBalance = balance
	return report, nil
}

func applyEntry(balance decimal.Decimal, e *domain.LedgerEntry) decimal.Decimal {
	if e.EntryType == domain.EntryTypeDebit {
		return balance.Sub(e.Amount)
	}
	return balance.Add(e.Amount)
}

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

// LedgerRepository applies balance movements under a wallet row lock and
// keeps a per-wallet hash chain of entries.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Post applies p inside one transaction:
//
//  1. SELECT the wallet FOR UPDATE
//  2. return the existing entry if p.Reference was already applied
//  3. check currency, status and balance
//  4. update the balance and append the chained entry
//
// The reference lookup happens after the lock is taken, so two concurrent
// posts with the same reference serialise on the wallet row. The unique
// index on reference catches anything that slips past (a different wallet
// with the same reference) and surfaces as ErrDuplicateReference.
func (r *LedgerRepository) Post(ctx context.Context, p *domain.LedgerPosting) (*domain.LedgerEntry, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to begin ledger transaction")
	}
	defer tx.Rollback()

	var wallet domain.Wallet
	err = tx.GetContext(ctx, &wallet, `SELECT * FROM wallets WHERE id = $1 FOR UPDATE`, p.WalletID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, errors.ErrWalletNotFound
		}
		return nil, false, errors.Wrap(err, "failed to lock wallet")
	}

	existing, err := findByReference(ctx, tx, p.Reference)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	if wallet.Currency != p.Currency {
		return nil, false, errors.ErrCurrencyMismatch
	}
	if wallet.Status != domain.WalletStatusActive {
		return nil, false, errors.ErrWalletInactive
	}
	if !p.Amount.IsPositive() {
		return nil, false, errors.ErrInvalidAmount
	}

	balanceAfter := wallet.Balance.Add(p.Amount)
	if p.EntryType == domain.EntryTypeDebit {
		if wallet.Balance.LessThan(p.Amount) {
			return nil, false, errors.ErrInsufficientBalance
		}
		balanceAfter = wallet.Balance.Sub(p.Amount)
	}

	var prev struct {
		Sequence int64  `db:"sequence"`
		Hash     string `db:"hash"`
	}
	err = tx.GetContext(ctx, &prev,
		`SELECT sequence, hash FROM ledger_entries WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT 1`,
		wallet.ID)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, false, errors.Wrap(err, "failed to read chain head")
		}
		prev.Hash = domain.GenesisHash
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Sequence:      prev.Sequence + 1,
		Reference:     p.Reference,
		EntryType:     p.EntryType,
		Amount:        p.Amount,
		Currency:      wallet.Currency,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  balanceAfter,
		Source:        p.Source,
		Description:   p.Description,
		PreviousHash:  prev.Hash,
		CreatedAt:     now,
	}
	entry.Hash = entry.ComputeHash()

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, last_transaction_at = $2, updated_at = $2 WHERE id = $3`,
		balanceAfter, now, wallet.ID)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to update wallet balance")
	}

	insertQuery := `
		INSERT INTO ledger_entries (
			id, wallet_id, sequence, reference, entry_type, amount, currency,
			balance_before, balance_after, source, description, previous_hash, hash, created_at
		) VALUES (
			:id, :wallet_id, :sequence, :reference, :entry_type, :amount, :currency,
			:balance_before, :balance_after, :source, :description, :previous_hash, :hash, :created_at
		)
	`
	if _, err := tx.NamedExecContext(ctx, insertQuery, entry); err != nil {
		if isUniqueViolation(err, "ledger_entries_reference_key") {
			return nil, false, errors.ErrDuplicateReference
		}
		return nil, false, errors.Wrap(err, "failed to insert ledger entry")
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, "ledger_entries_reference_key") {
			return nil, false, errors.ErrDuplicateReference
		}
		return nil, false, errors.Wrap(err, "failed to commit ledger transaction")
	}
	return entry, false, nil
}

// FindByReference returns the entry applied for reference, or nil.
func (r *LedgerRepository) FindByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	return findByReference(ctx, r.db, reference)
}

// ListByWallet returns entries newest first.
func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	query := `SELECT * FROM ledger_entries WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &entries, query, walletID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list ledger entries")
	}
	return entries, nil
}

func (r *LedgerRepository) CountByWallet(ctx context.Context, walletID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID)
	return count, errors.Wrap(err, "failed to count ledger entries")
}

// ChainForWallet returns the full chain oldest first.
func (r *LedgerRepository) ChainForWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	query := `SELECT * FROM ledger_entries WHERE wallet_id = $1 ORDER BY sequence ASC`
	if err := r.db.SelectContext(ctx, &entries, query, walletID); err != nil {
		return nil, errors.Wrap(err, "failed to read ledger chain")
	}
	return entries, nil
}

func findByReference(ctx context.Context, q sqlx.QueryerContext, reference string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := sqlx.GetContext(ctx, q, &entry, `SELECT * FROM ledger_entries WHERE reference = $1`, reference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find ledger entry")
	}
	return &entry, nil
}

package handler

import (
	"context"
	"net/http"

	"payvost/internal/domain"
	"payvost/internal/ledger"
	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type WalletService interface {
	GetUserWallet(ctx context.Context, id, userID uuid.UUID) (*domain.Wallet, error)
	GetUserWallets(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error)
}

type LedgerReader interface {
	History(ctx context.Context, walletID uuid.UUID, limit, offset int) (*ledger.HistoryResponse, error)
}

// WalletHandler serves a customer's wallets and their ledger.
type WalletHandler struct {
	base
	wallets WalletService
	ledger  LedgerReader
}

func NewWalletHandler(wallets WalletService, ledgerReader LedgerReader, log logger.Logger) *WalletHandler {
	return &WalletHandler{base: base{logger: log}, wallets: wallets, ledger: ledgerReader}
}

func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	wallets, err := h.wallets.GetUserWallets(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []*domain.Wallet{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// GetLedger returns the newest ledger entries of one of the caller's wallets.
func (h *WalletHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	walletID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid wallet ID")
		return
	}

	if _, err := h.wallets.GetUserWallet(r.Context(), walletID, userID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	history, err := h.ledger.History(r.Context(), walletID, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, history)
}

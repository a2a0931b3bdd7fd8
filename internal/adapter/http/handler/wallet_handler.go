package handler

import (
	"context"
	"strings"

	"eromax-ledger/internal/adapter/http/dto"
	"eromax-ledger/internal/adapter/http/middleware"
	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints, including the admin money moves.
type WalletHandler struct {
	walletSvc ports.WalletService
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		ledgerSvc: ledgerSvc,
	}
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	scope, err := scopeFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var q dto.WalletListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	q.Normalize()
	q.Q = strings.TrimSpace(q.Q)

	wallets, total, err := h.walletSvc.List(c.Request.Context(), ports.WalletListParams{
		Scope:    scope,
		StoreID:  optionalUUID(q.StoreID),
		Active:   q.Active,
		Query:    q.Q,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, wallets, q.Page, q.PageSize, total)
}

// Get handles GET /api/v1/wallets/:id where :id is the wallet id or key.
func (h *WalletHandler) Get(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ident, err := bindWalletIdent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.FindByIdentifier(c.Request.Context(), ident)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.walletSvc.CheckAccess(c.Request.Context(), p, wallet); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GetByStore handles GET /api/v1/stores/:id/wallet.
func (h *WalletHandler) GetByStore(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	storeID, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.GetByStore(c.Request.Context(), storeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.walletSvc.CheckAccess(c.Request.Context(), p, wallet); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// Sync handles POST /api/v1/wallets/sync. It creates the missing wallets.
func (h *WalletHandler) Sync(c *gin.Context) {
	created, err := h.walletSvc.CreateMissingWallets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CreateWalletsResponse{Created: created})
}

// Toggle handles PATCH /api/v1/wallets/:id/toggle.
func (h *WalletHandler) Toggle(c *gin.Context) {
	ident, err := bindWalletIdent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.ToggleActive(c.Request.Context(), ident)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// Deposit handles POST /api/v1/wallets/:id/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	h.moveMoney(c, h.ledgerSvc.Deposit)
}

// Withdraw handles POST /api/v1/wallets/:id/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.moveMoney(c, h.ledgerSvc.Withdraw)
}

type moneyOp func(ctx context.Context, req ports.MoneyRequest) (*domain.Transfer, error)

func (h *WalletHandler) moveMoney(c *gin.Context, op moneyOp) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ident, err := bindWalletIdent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	transfer, err := op(c.Request.Context(), ports.MoneyRequest{
		WalletIdentifier: ident,
		Amount:           *req.Amount,
		Actor:            p.ID,
		IdempotencyKey:   c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transfer)
}

// Reset handles POST /api/v1/wallets/:id/reset. The balance is zeroed by a
// compensating transfer and the wallet is deactivated.
func (h *WalletHandler) Reset(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ident, err := bindWalletIdent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.ResetToInitial(c.Request.Context(), ident, p.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// Reconcile handles GET /api/v1/wallets/:id/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	ident, err := bindWalletIdent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.ledgerSvc.Reconcile(c.Request.Context(), ident)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

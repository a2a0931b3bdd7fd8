package handler

import (
	"strings"
	"time"

	"eromax-ledger/internal/adapter/http/dto"
	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles ledger entry endpoints.
type TransferHandler struct {
	ledgerSvc ports.LedgerService
	walletSvc ports.WalletService
	loc       *time.Location
}

// NewTransferHandler creates a new TransferHandler. Date filters are read
// as whole days in loc.
func NewTransferHandler(ledgerSvc ports.LedgerService, walletSvc ports.WalletService, loc *time.Location) *TransferHandler {
	return &TransferHandler{
		ledgerSvc: ledgerSvc,
		walletSvc: walletSvc,
		loc:       loc,
	}
}

// List handles GET /api/v1/transfers.
func (h *TransferHandler) List(c *gin.Context) {
	scope, err := scopeFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var q dto.TransferListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	q.Normalize()
	q.Q = strings.TrimSpace(q.Q)

	params := ports.TransferListParams{
		Scope:    scope,
		WalletID: optionalUUID(q.WalletID),
		StoreID:  optionalUUID(q.StoreID),
		Query:    q.Q,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	params.From, params.To = parseRange(q.DateRange, h.loc)
	if q.Status != "" {
		st := domain.TransferStatus(q.Status)
		params.Status = &st
	}
	if q.Type != "" {
		typ := domain.TransferType(q.Type)
		params.Type = &typ
	}

	transfers, total, err := h.ledgerSvc.ListTransfers(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, transfers, q.Page, q.PageSize, total)
}

// Get handles GET /api/v1/transfers/:id. Clients only see transfers of
// their own wallets.
func (h *TransferHandler) Get(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	transfer, err := h.ledgerSvc.GetTransfer(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !p.IsAdmin() {
		wallet, err := h.walletSvc.FindByIdentifier(c.Request.Context(), transfer.WalletID.String())
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := h.walletSvc.CheckAccess(c.Request.Context(), p, wallet); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.OK(c, transfer)
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	transfer, err := h.ledgerSvc.CancelTransfer(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, transfer)
}

// Validate handles POST /api/v1/transfers/:id/validate.
func (h *TransferHandler) Validate(c *gin.Context) {
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	transfer, err := h.ledgerSvc.ValidateTransfer(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, transfer)
}

// Correct handles POST /api/v1/transfers/:id/correct.
func (h *TransferHandler) Correct(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	transfer, err := h.ledgerSvc.CorrectTransfer(c.Request.Context(), ports.CorrectionRequest{
		TransferID:  id,
		NewAmount:   *req.NewAmount,
		Description: req.Description,
		Actor:       p.ID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, transfer)
}

// Delete handles DELETE /api/v1/transfers/:id. The balance is not touched.
func (h *TransferHandler) Delete(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.ledgerSvc.DeleteTransfer(c.Request.Context(), id, p.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": id})
}

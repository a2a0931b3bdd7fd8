package handler

import (
	"context"
	"strings"
	"time"

	"eromax-ledger/internal/adapter/http/dto"
	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles the payout workflow endpoints.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
	walletSvc     ports.WalletService
	loc           *time.Location
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService, walletSvc ports.WalletService, loc *time.Location) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalSvc: withdrawalSvc,
		walletSvc:     walletSvc,
		loc:           loc,
	}
}

// Create handles POST /api/v1/withdrawals, a client asking for a payout.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	h.create(c, h.withdrawalSvc.Create)
}

// CreateAdmin handles POST /api/v1/withdrawals/admin. The request starts
// in processing.
func (h *WithdrawalHandler) CreateAdmin(c *gin.Context) {
	h.create(c, h.withdrawalSvc.CreateAdmin)
}

func (h *WithdrawalHandler) create(c *gin.Context, op func(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error)) {
	p, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	withdrawal, err := op(c.Request.Context(), ports.WithdrawalRequest{
		WalletIdentifier: req.Wallet,
		PaymentID:        uuid.MustParse(req.PaymentID),
		Montant:          *req.Montant,
		Actor:            p,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, withdrawal)
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	scope, err := scopeFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var q dto.WithdrawalListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	q.Normalize()

	params := ports.WithdrawalListParams{
		Scope:    scope,
		WalletID: optionalUUID(q.WalletID),
		StoreID:  optionalUUID(q.StoreID),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	params.From, params.To = parseRange(q.DateRange, h.loc)
	if q.Status != "" {
		st := domain.WithdrawalStatus(q.Status)
		params.Status = &st
	}

	withdrawals, total, err := h.withdrawalSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, withdrawals, q.Page, q.PageSize, total)
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
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

	withdrawal, err := h.withdrawalSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !p.IsAdmin() {
		wallet, err := h.walletSvc.FindByIdentifier(c.Request.Context(), withdrawal.WalletID.String())
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := h.walletSvc.CheckAccess(c.Request.Context(), p, wallet); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.OK(c, withdrawal)
}

// UpdateStatus handles PATCH /api/v1/withdrawals/:id/status.
func (h *WithdrawalHandler) UpdateStatus(c *gin.Context) {
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateWithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	withdrawal, err := h.withdrawalSvc.UpdateStatus(c.Request.Context(), id, domain.WithdrawalStatus(req.Status), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, withdrawal)
}

// AttachProof handles PUT /api/v1/withdrawals/:id/proof.
func (h *WithdrawalHandler) AttachProof(c *gin.Context) {
	id, err := bindID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AttachProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	// proof is a URL or file reference; trimmed but not escaped
	withdrawal, err := h.withdrawalSvc.AttachProof(c.Request.Context(), id, strings.TrimSpace(req.Proof))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, withdrawal)
}

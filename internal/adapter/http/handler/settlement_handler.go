package handler

import (
	"context"
	"time"

	"eromax-ledger/internal/adapter/http/dto"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/apperror"
	"eromax-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler exposes manual triggers for the end-of-day jobs.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
	loc           *time.Location
	now           func() time.Time
}

// NewSettlementHandler creates a new SettlementHandler. A missing date
// means today in loc.
func NewSettlementHandler(settlementSvc ports.SettlementService, loc *time.Location) *SettlementHandler {
	return &SettlementHandler{
		settlementSvc: settlementSvc,
		loc:           loc,
		now:           time.Now,
	}
}

// RunDaily handles POST /api/v1/settlement/daily.
func (h *SettlementHandler) RunDaily(c *gin.Context) {
	h.run(c, h.settlementSvc.RunDaily)
}

// RunPickups handles POST /api/v1/settlement/pickups.
func (h *SettlementHandler) RunPickups(c *gin.Context) {
	h.run(c, h.settlementSvc.RunPickups)
}

func (h *SettlementHandler) run(c *gin.Context, job func(ctx context.Context, day time.Time) (*ports.SettlementRun, error)) {
	var q dto.SettlementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	day := h.now().In(h.loc)
	if q.Date != "" {
		d, err := time.ParseInLocation(dateLayout, q.Date, h.loc)
		if err != nil {
			response.Error(c, apperror.Validation("date must be YYYY-MM-DD"))
			return
		}
		day = d
	}

	run, err := job(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, run)
}

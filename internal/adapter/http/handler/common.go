package handler

import (
	"time"

	"eromax-ledger/internal/adapter/http/dto"
	"eromax-ledger/internal/adapter/http/middleware"
	"eromax-ledger/internal/core/domain"
	"eromax-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// principal returns the caller set by JWTAuth.
func principal(c *gin.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return domain.Principal{}, apperror.ErrUnauthenticated()
	}
	return p, nil
}

// scopeFilter resolves the base list filter for the caller.
func scopeFilter(c *gin.Context) (domain.ScopeFilter, error) {
	p, err := principal(c)
	if err != nil {
		return domain.ScopeFilter{}, err
	}
	scope, err := domain.ScopeFor(p)
	if err != nil {
		return domain.ScopeFilter{}, apperror.ErrForbidden()
	}
	return scope.BaseFilter(), nil
}

// bindID binds a UUID path parameter.
func bindID(c *gin.Context) (uuid.UUID, error) {
	var uri dto.IDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		return uuid.Nil, apperror.ErrInvalidIdentifier("id")
	}
	return uuid.MustParse(uri.ID), nil
}

// bindWalletIdent binds a wallet id-or-key path parameter.
func bindWalletIdent(c *gin.Context) (string, error) {
	var uri dto.WalletURI
	if err := c.ShouldBindUri(&uri); err != nil {
		return "", apperror.ErrInvalidIdentifier("wallet")
	}
	return uri.ID, nil
}

// optionalUUID parses an already validated, possibly empty, uuid query value.
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// parseRange turns a validated date range into an inclusive [from, to]
// interval of whole days in loc.
func parseRange(r dto.DateRange, loc *time.Location) (from, to *time.Time) {
	if r.From != "" {
		if d, err := time.ParseInLocation(dateLayout, r.From, loc); err == nil {
			from = &d
		}
	}
	if r.To != "" {
		if d, err := time.ParseInLocation(dateLayout, r.To, loc); err == nil {
			end := d.AddDate(0, 0, 1).Add(-time.Nanosecond)
			to = &end
		}
	}
	return from, to
}

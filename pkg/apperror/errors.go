package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError for callers that branch on failure class
// rather than on the exact code.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindInsufficient  Kind = "INSUFFICIENT_FUNDS"
	KindAuthorization Kind = "AUTHORIZATION"
	KindTransaction   Kind = "TRANSACTION_FAILURE"
	KindRateLimit     Kind = "RATE_LIMIT"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err carries an AppError of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a generic field-level validation error.
func Validation(message string) *AppError {
	return New(KindValidation, "VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrBelowMinimumWithdrawal(minimum string) *AppError {
	return New(KindValidation, "VAL_003", fmt.Sprintf("Withdrawal amount must be at least %s", minimum), http.StatusBadRequest)
}

func ErrDescriptionRequired() *AppError {
	return New(KindValidation, "VAL_004", "Description is required for a correction", http.StatusBadRequest)
}

func ErrInvalidIdentifier(field string) *AppError {
	return New(KindValidation, "VAL_005", fmt.Sprintf("Invalid %s", field), http.StatusBadRequest)
}

func ErrAmountPrecision() *AppError {
	return New(KindValidation, "VAL_006", "Amount cannot have more than 2 decimal places", http.StatusBadRequest)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletNotFound() *AppError {
	return New(KindNotFound, "NF_002", "Wallet not found", http.StatusNotFound)
}

func ErrTransferNotFound() *AppError {
	return New(KindNotFound, "NF_003", "Transfer not found", http.StatusNotFound)
}

func ErrWithdrawalNotFound() *AppError {
	return New(KindNotFound, "NF_004", "Withdrawal not found", http.StatusNotFound)
}

func ErrPaymentNotFound() *AppError {
	return New(KindNotFound, "NF_005", "Payment method not found", http.StatusNotFound)
}

// ---- State conflicts (STATE) ----

func ErrWalletInactive() *AppError {
	return New(KindStateConflict, "STATE_001", "Wallet is not active", http.StatusBadRequest)
}

func ErrTransferAlreadyCancelled() *AppError {
	return New(KindStateConflict, "STATE_002", "Transfer is already cancelled", http.StatusBadRequest)
}

func ErrTransferAlreadyValidated() *AppError {
	return New(KindStateConflict, "STATE_003", "Transfer is already validated", http.StatusBadRequest)
}

func ErrTransferNotCorrectable() *AppError {
	return New(KindStateConflict, "STATE_004", "Only validated, non-correction transfers can be corrected", http.StatusBadRequest)
}

func ErrWithdrawalTerminal() *AppError {
	return New(KindStateConflict, "STATE_005", "Withdrawal is already in a final status", http.StatusBadRequest)
}

func ErrDuplicateWithdrawal() *AppError {
	return New(KindStateConflict, "STATE_006", "An identical withdrawal request is already in progress", http.StatusBadRequest)
}

func ErrIllegalTransition(from, to string) *AppError {
	return New(KindStateConflict, "STATE_007", fmt.Sprintf("Cannot move from %s to %s", from, to), http.StatusBadRequest)
}

// ---- Funds (FUND) ----

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficient, "FUND_001", "Insufficient balance in wallet", http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrUnauthenticated() *AppError {
	return New(KindAuthorization, "AUTH_001", "Authentication required", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(KindAuthorization, "AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(KindAuthorization, "AUTH_003", "Forbidden", http.StatusForbidden)
}

func ErrPaymentNotOwned() *AppError {
	return New(KindAuthorization, "AUTH_004", "Payment method does not belong to the wallet owner", http.StatusForbidden)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimit, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// ErrTransactionFailure reports that the atomic scope could not commit.
// Nothing was persisted; the caller may retry the whole operation.
func ErrTransactionFailure(err error) *AppError {
	return Wrap(KindTransaction, "SYS_001", "Transaction failed, nothing was applied", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_002 error.
func InternalError(err error) *AppError {
	return Wrap(KindTransaction, "SYS_002", "Internal server error", http.StatusInternalServerError, err)
}

package dto

import (
	"html"
	"reflect"
	"strings"

	"eromax-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("wallet_ident", validateWalletIdent)
		_ = v.RegisterValidation("withdrawal_status", validateWithdrawalStatus)
		_ = v.RegisterValidation("transfer_status", validateTransferStatus)
		_ = v.RegisterValidation("transfer_type", validateTransferType)
	}
}

// validateWalletIdent accepts a UUID or an EROMAX-WALLET key.
func validateWalletIdent(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if domain.IsWalletKey(s) {
		return len(s) <= 64
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func validateWithdrawalStatus(fl validator.FieldLevel) bool {
	return domain.WithdrawalStatus(fl.Field().String()).Valid()
}

func validateTransferStatus(fl validator.FieldLevel) bool {
	return domain.TransferStatus(fl.Field().String()).Valid()
}

func validateTransferType(fl validator.FieldLevel) bool {
	return domain.TransferType(fl.Field().String()).Valid()
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Struct:
			if rv.Type().Field(i).Anonymous {
				sanitizeFields(f)
			}
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

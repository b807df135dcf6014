package usecase

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// 欄位驗證失敗對應的領域錯誤
var fieldErrors = map[string]error{
	"Amount":        domain.ErrAmountMustBePositive,
	"FundsOrigin":   domain.ErrFundsOriginRequired,
	"DestinationID": domain.ErrSameAccount,
	"AccountType":   domain.ErrAccountTypeRequired,
	"AccountNumber": domain.ErrInvalidAccountNumber,
}

type depositCommand struct {
	Amount      int64  `validate:"gt=0"`
	FundsOrigin string `validate:"required"`
}

type withdrawCommand struct {
	Amount int64 `validate:"gt=0"`
}

type transferCommand struct {
	SourceID      int64
	DestinationID int64 `validate:"nefield=SourceID"`
	Amount        int64 `validate:"gt=0"`
}

type createAccountCommand struct {
	AccountType    string `validate:"required"`
	AccountNumber  string `validate:"omitempty,len=11,number"`
	InitialBalance int64  `validate:"gte=0"`
}

// validateCommand 驗證指令結構，失敗時轉成包裝 domain.ErrValidation 的錯誤
func validateCommand(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for _, fe := range verrs {
		if mapped, ok := fieldErrors[fe.Field()]; ok {
			return mapped
		}
	}
	return fmt.Errorf("%w: field %s failed on %q", domain.ErrValidation, verrs[0].Field(), verrs[0].Tag())
}

package domain

import (
	"errors"
	"fmt"
)

// 錯誤種類 (Kind)
// 呼叫端以 errors.Is(err, ErrXxx) 判斷種類，具體錯誤皆包裝其中一種
var (
	// ErrValidation 輸入格式錯誤，不重試
	ErrValidation = errors.New("validation error")

	// ErrNotFound 參照的帳戶不存在
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds 餘額不足 (業務拒絕，非系統錯誤)
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrencyConflict 原子提交因競爭失敗，可重試
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStoreUnavailable 儲存層無法使用
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = fmt.Errorf("%w: amount must be positive", ErrValidation)

	// ErrFundsOriginRequired 存款必須填寫資金來源
	ErrFundsOriginRequired = fmt.Errorf("%w: funds origin is required", ErrValidation)

	// ErrSameAccount 轉出與轉入帳戶相同
	ErrSameAccount = fmt.Errorf("%w: source and destination are the same account", ErrValidation)

	// ErrInvalidAccountNumber 帳號必須為 11 位數字
	ErrInvalidAccountNumber = fmt.Errorf("%w: account number must be exactly 11 digits", ErrValidation)

	// ErrAccountTypeRequired 帳戶類型必填
	ErrAccountTypeRequired = fmt.Errorf("%w: account type is required", ErrValidation)

	// ErrInvalidDateRange 對帳單起日晚於迄日
	ErrInvalidDateRange = fmt.Errorf("%w: date from is after date to", ErrValidation)

	// ErrAccountNumberInUse 指定的帳號已被使用
	ErrAccountNumberInUse = fmt.Errorf("%w: account number already in use", ErrValidation)

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = fmt.Errorf("%w: balance lower than amount", ErrInsufficientFunds)

	// ErrAccountNumberTaken 提交時帳號已被其他交易搶先寫入，由配號迴圈重試
	ErrAccountNumberTaken = fmt.Errorf("%w: account number taken", ErrConcurrencyConflict)

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = fmt.Errorf("%w: wal write failed", ErrStoreUnavailable)

	// ErrLedgerClosed 帳本已停止接受交易
	ErrLedgerClosed = fmt.Errorf("%w: ledger closed", ErrStoreUnavailable)
)

// IsRetryable 回報錯誤是否可由呼叫端重試
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

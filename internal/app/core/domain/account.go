package domain

import (
	"strings"
	"time"
)

// AccountNumberLength 對外帳號長度
const AccountNumberLength = 11

// Account 帳戶快照 (值型別)
// 只有 LedgerService 在原子單位內會修改它，呼叫端拿到的永遠是副本
type Account struct {
	// ID: 儲存層建立時分配
	ID int64
	// AccountNumber: 對外帳號，全域唯一的 11 位數字
	AccountNumber string
	// AccountType: 自由分類，一律轉大寫
	AccountType string
	// Balance: 最小貨幣單位，不得為負
	Balance int64
	// OwnerRef: 外部客戶參照，核心不解析
	OwnerRef string
	// OwnerName: 顯示名稱，寫入交易快照用
	OwnerName string
	// CreatedAt: 開戶日期
	CreatedAt time.Time
}

// Deposit 存款
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	a.Balance = a.Balance + amount
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	if a.Balance < amount {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance - amount
	return nil
}

// NormalizeAccountType 帳戶類型去空白並轉大寫
func NormalizeAccountType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// NormalizeOwnerName 顯示名稱去空白並轉大寫
func NormalizeOwnerName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ValidAccountNumber 檢查帳號是否恰為 11 位十進位數字
func ValidAccountNumber(s string) bool {
	if len(s) != AccountNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// StartOfDay 回傳 t 當日 00:00:00 (保留時區)
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay 回傳 t 當日最後一個奈秒
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

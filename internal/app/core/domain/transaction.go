package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TransactionType 交易類型
// 為了極致節省記憶體，使用 uint8
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdrawal TransactionType = 2
	// 轉出
	TransactionTypeTransferOut TransactionType = 3
	// 轉入
	TransactionTypeTransferIn TransactionType = 4
)

var transactionTypeNames = map[TransactionType]string{
	TransactionTypeDeposit:     "DEPOSIT",
	TransactionTypeWithdrawal:  "WITHDRAWAL",
	TransactionTypeTransferOut: "TRANSFER_OUT",
	TransactionTypeTransferIn:  "TRANSFER_IN",
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TransactionType(%d)", uint8(t))
}

// ParseTransactionType 由名稱解析交易類型
func ParseTransactionType(s string) (TransactionType, error) {
	for t, name := range transactionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, s)
}

// MarshalText 讓 WAL / JSON 內以名稱儲存
func (t TransactionType) MarshalText() ([]byte, error) {
	if _, ok := transactionTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown transaction type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 從名稱解析交易類型，未知名稱回傳錯誤
func (t *TransactionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsCredit 存款與轉入為貸方，其餘為借方
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeTransferIn
}

// Signed 依類型回傳帶正負號的金額
func (t TransactionType) Signed(amount int64) int64 {
	if t.IsCredit() {
		return amount
	}
	return -amount
}

// Transaction 一筆不可變的資金異動，只影響單一帳戶
// 轉帳會產生兩筆 (TRANSFER_OUT / TRANSFER_IN)，以相同金額、相反帳戶、相同時間配對
type Transaction struct {
	// ID: 外部追蹤號 (UUID)
	ID uuid.UUID
	// Sequence: 日誌分配的全域遞增序號，同一時間戳內的排序依據
	Sequence uint64
	// Timestamp: 交易時間
	Timestamp time.Time
	Type      TransactionType
	// Amount: 正整數，最小貨幣單位
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	// AccountID: 所屬帳戶；帳戶刪除後為 nil，但紀錄本身永不刪除
	AccountID *int64
	// 寫入當下的快照，帳戶或客戶之後異動也不影響歷史
	AccountNumberSnapshot string
	OwnerNameSnapshot     string
	// FundsOrigin: 只有存款有值
	FundsOrigin string
	// CounterpartyAccountNumber: 只有轉帳有值
	CounterpartyAccountNumber string
}

// SignedAmount 對所屬帳戶餘額的影響
func (t Transaction) SignedAmount() int64 {
	return t.Type.Signed(t.Amount)
}

// BelongsTo 是否仍連結到指定帳戶
func (t Transaction) BelongsTo(accountID int64) bool {
	return t.AccountID != nil && *t.AccountID == accountID
}

// NewTransaction 以帳戶異動前後的快照建立交易紀錄
func NewTransaction(t TransactionType, before, after Account, amount int64, at time.Time) Transaction {
	id := after.ID
	return Transaction{
		ID:                    uuid.New(),
		Timestamp:             at,
		Type:                  t,
		Amount:                amount,
		BalanceBefore:         before.Balance,
		BalanceAfter:          after.Balance,
		AccountID:             &id,
		AccountNumberSnapshot: after.AccountNumber,
		OwnerNameSnapshot:     after.OwnerName,
	}
}

// GetLockIDs 回傳需要鎖定的帳號 ID，去重並由小到大排序以避免死鎖
func GetLockIDs(ids ...int64) []int64 {
	out := make([]int64, 0, len(ids))
	out = append(out, ids...)
	slices.Sort(out)
	return slices.Compact(out)
}

// SortTransactions 依 (時間, 序號) 遞增排序
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
}

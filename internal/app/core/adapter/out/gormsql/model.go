package gormsql

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// accountRow 對應資料庫的 accounts 表
type accountRow struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	AccountNumber string    `gorm:"size:11;not null;uniqueIndex"`
	AccountType   string    `gorm:"size:64;not null"`
	Balance       int64     `gorm:"not null"`
	OwnerRef      string    `gorm:"size:128"`
	OwnerName     string    `gorm:"size:255"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"` // 開戶日由業務層決定
	UpdatedAt     time.Time
}

func (*accountRow) TableName() string {
	return "accounts"
}

// transactionRow 對應資料庫的 transactions 表
// ID 自動遞增，即 domain.Transaction.Sequence
type transactionRow struct {
	ID                        uint64    `gorm:"primaryKey;autoIncrement"`
	RefID                     string    `gorm:"column:ref_id;size:36;not null;uniqueIndex"`
	Timestamp                 time.Time `gorm:"column:occurred_at;precision:6;not null;index:idx_tx_account_time,priority:2"`
	Type                      uint8     `gorm:"not null"`
	Amount                    int64     `gorm:"not null"`
	BalanceBefore             int64
	BalanceAfter              int64
	AccountID                 *int64 `gorm:"index:idx_tx_account_time,priority:1"` // 銷戶後為 NULL
	AccountNumberSnapshot     string `gorm:"size:11"`
	OwnerNameSnapshot         string `gorm:"size:255"`
	FundsOrigin               string `gorm:"size:255"`
	CounterpartyAccountNumber string `gorm:"size:11"`
}

func (*transactionRow) TableName() string {
	return "transactions"
}

func toAccountRow(a domain.Account) accountRow {
	return accountRow{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		OwnerRef:      a.OwnerRef,
		OwnerName:     a.OwnerName,
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:            r.ID,
		AccountNumber: r.AccountNumber,
		AccountType:   r.AccountType,
		Balance:       r.Balance,
		OwnerRef:      r.OwnerRef,
		OwnerName:     r.OwnerName,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func toTransactionRow(t domain.Transaction) transactionRow {
	return transactionRow{
		ID:                        t.Sequence,
		RefID:                     t.ID.String(),
		Timestamp:                 columnTime(t.Timestamp),
		Type:                      uint8(t.Type),
		Amount:                    t.Amount,
		BalanceBefore:             t.BalanceBefore,
		BalanceAfter:              t.BalanceAfter,
		AccountID:                 t.AccountID,
		AccountNumberSnapshot:     t.AccountNumberSnapshot,
		OwnerNameSnapshot:         t.OwnerNameSnapshot,
		FundsOrigin:               t.FundsOrigin,
		CounterpartyAccountNumber: t.CounterpartyAccountNumber,
	}
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	id, err := uuid.Parse(r.RefID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:                        id,
		Sequence:                  r.ID,
		Timestamp:                 r.Timestamp.UTC(),
		Type:                      domain.TransactionType(r.Type),
		Amount:                    r.Amount,
		BalanceBefore:             r.BalanceBefore,
		BalanceAfter:              r.BalanceAfter,
		AccountID:                 r.AccountID,
		AccountNumberSnapshot:     r.AccountNumberSnapshot,
		OwnerNameSnapshot:         r.OwnerNameSnapshot,
		FundsOrigin:               r.FundsOrigin,
		CounterpartyAccountNumber: r.CounterpartyAccountNumber,
	}, nil
}

func toTransactions(rows []transactionRow) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

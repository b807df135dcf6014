package domain

import (
	"time"

	"github.com/google/uuid"
)

// 事件類型
const (
	EventAccountCreated = "account.created"
	EventAccountUpdated = "account.updated"
	EventAccountDeleted = "account.deleted"
	EventDeposit        = "deposit.completed"
	EventWithdrawal     = "withdrawal.completed"
	EventTransfer       = "transfer.completed"
)

// LedgerEvent 提交成功後對外發布的通知
type LedgerEvent struct {
	EventType     string      `json:"event_type"`
	AccountID     int64       `json:"account_id,omitempty"`
	AccountNumber string      `json:"account_number,omitempty"`
	Transactions  []uuid.UUID `json:"transactions,omitempty"`
	Amount        int64       `json:"amount,omitempty"`
	BalanceAfter  int64       `json:"balance_after,omitempty"`
	FromAccount   string      `json:"from_account,omitempty"`
	ToAccount     string      `json:"to_account,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

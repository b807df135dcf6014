package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// AccountReader 帳戶唯讀查詢
type AccountReader interface {
	// GetAccount 取得帳戶快照，不存在回傳 domain.ErrAccountNotFound
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	// AccountNumberExists 帳號是否已被使用
	AccountNumberExists(ctx context.Context, number string) (bool, error)
	// ListAccounts 列出所有帳戶 (依 ID 排序)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// AccountStore 帳戶存取介面 (由外部持久層提供)
type AccountStore interface {
	AccountReader
	// SaveAccount ID 為 0 時建立並分配 ID；帳號重複回傳 domain.ErrAccountNumberTaken
	SaveAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	// DeleteAccount 刪除帳戶
	DeleteAccount(ctx context.Context, id int64) error
}

// TransactionReader 交易日誌唯讀查詢
type TransactionReader interface {
	// QueryByAccountAndRange 查詢 [from, to] (含兩端) 內的紀錄，依 (時間, 序號) 遞增
	QueryByAccountAndRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error)
	// All 全部紀錄，依序號遞增
	All(ctx context.Context) ([]domain.Transaction, error)
}

// TransactionLog 只能追加的交易日誌
// 除了 UnlinkAccount 清除帳戶參照外，沒有任何修改或刪除紀錄的方法
type TransactionLog interface {
	TransactionReader
	// Append 追加一筆紀錄，回傳帶有序號的紀錄
	Append(ctx context.Context, tran domain.Transaction) (domain.Transaction, error)
	// UnlinkAccount 清除所有指向該帳戶的參照，回傳影響筆數
	UnlinkAccount(ctx context.Context, accountID int64) (int, error)
}

// WorkFunc 在原子單位內執行的業務邏輯
type WorkFunc func(ctx context.Context, accounts AccountStore, log TransactionLog) error

// Ledger 是帳務系統的儲存介面
type Ledger interface {
	// Atomic 依 ID 由小到大鎖定 lockIDs 後執行 fn
	// fn 回傳 nil 時所有寫入一起提交，否則全部捨棄
	Atomic(ctx context.Context, lockIDs []int64, fn WorkFunc) error
	// Accounts 已提交狀態的唯讀視圖
	Accounts() AccountReader
	// Log 已提交狀態的唯讀視圖
	Log() TransactionReader
}

// EventPublisher 提交後的事件發布
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// NopPublisher 不發布任何事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	st: 已提交狀態 (含 WAL)
//	locks: 每個帳戶一把鎖，依 ID 由小到大取得
//
// 不相交的帳戶集合可以並行處理；提交時才短暫持有 st 的寫鎖
type MutexLedger struct {
	st    *state
	locks sync.Map // map[int64]*sync.Mutex
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	wal: Write-Ahead Log 實例 (nil 表示不持久化)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	st := newState(w)
	if err := st.recoverFromWAL(); err != nil {
		return nil, fmt.Errorf("recover from wal: %w", err)
	}
	return &MutexLedger{st: st}, nil
}

// Atomic 依序鎖定帳戶後執行 fn，成功才提交
//
// 參數:
//
//	ctx: 上下文
//	lockIDs: 需要鎖定的帳戶 ID
//	fn: 業務邏輯
//
// 回傳:
//
//	error: fn 的錯誤或提交錯誤
func (m *MutexLedger) Atomic(ctx context.Context, lockIDs []int64, fn usecase.WorkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, id := range domain.GetLockIDs(lockIDs...) {
		mu := m.lockFor(id)
		mu.Lock()
		defer mu.Unlock()
	}

	view := newTxView(m.st)
	if err := fn(ctx, view, view); err != nil {
		return err
	}
	return m.st.commit(view.toBatch())
}

func (m *MutexLedger) lockFor(id int64) *sync.Mutex {
	if v, ok := m.locks.Load(id); ok {
		return v.(*sync.Mutex)
	}
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Accounts 已提交狀態的帳戶查詢
func (m *MutexLedger) Accounts() usecase.AccountReader {
	return reader{m.st}
}

// Log 已提交狀態的交易查詢
func (m *MutexLedger) Log() usecase.TransactionReader {
	return reader{m.st}
}

var _ usecase.Ledger = (*MutexLedger)(nil)

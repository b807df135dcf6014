package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// workRequest 原子單位請求包裝 channel，讓 Atomic 可以等待結果
type workRequest struct {
	ctx    context.Context
	fn     usecase.WorkFunc
	Result chan error // 讓 Atomic 等這個 channel
}

// LMAXLedger 單一寫入者帳本
// 所有原子單位排隊進輸送帶，由唯一的 goroutine 依序執行，不需要帳戶鎖
type LMAXLedger struct {
	st *state
	// 輸送帶 負責接收原子單位
	workChan chan *workRequest
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	// done 在核心引擎停止後關閉
	done      chan struct{}
	startOnce sync.Once
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 後才會處理請求
//
// 參數:
//
//	wal: Write-Ahead Log 實例 (nil 表示不持久化)
//	bufferSize: 輸送帶容量
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(w *wal.WAL, bufferSize int) (*LMAXLedger, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	st := newState(w)
	// 在啟動前先恢復資料
	if err := st.recoverFromWAL(); err != nil {
		return nil, fmt.Errorf("recover from wal: %w", err)
	}
	return &LMAXLedger{
		st:       st,
		workChan: make(chan *workRequest, bufferSize),
		done:     make(chan struct{}),
		requestPool: sync.Pool{
			New: func() any {
				return &workRequest{
					Result: make(chan error, 1),
				}
			},
		},
	}, nil
}

// Start 啟動核心引擎 (非同步)，ctx 結束時處理完剩餘請求後停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Done 核心引擎停止後關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.done
}

// Atomic 把原子單位放入輸送帶並等待結果
// PostWork(等待) -> Channel -> Run Loop (核心) -> WAL -> Map Update -> Result Channel -> 收到結果
func (l *LMAXLedger) Atomic(ctx context.Context, lockIDs []int64, fn usecase.WorkFunc) error {
	req := l.requestPool.Get().(*workRequest)
	req.ctx = ctx
	req.fn = fn
	// 清空 Channel (理論上應該是空的)
	select {
	case <-req.Result:
	default:
	}

	select {
	case l.workChan <- req:
	case <-ctx.Done():
		l.requestPool.Put(req)
		return ctx.Err()
	case <-l.done:
		l.requestPool.Put(req)
		return domain.ErrLedgerClosed
	}

	select {
	case err := <-req.Result:
		l.release(req)
		return err
	case <-l.done:
		// drain 可能已經處理過這筆
		select {
		case err := <-req.Result:
			l.release(req)
			return err
		default:
			return domain.ErrLedgerClosed
		}
	}
}

func (l *LMAXLedger) release(req *workRequest) {
	req.ctx = nil
	req.fn = nil
	l.requestPool.Put(req)
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.workChan:
			l.process(req)
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.workChan:
			l.process(req)
		default:
			return
		}
	}
}

// process 執行單一原子單位並回傳結果
func (l *LMAXLedger) process(req *workRequest) {
	req.Result <- l.execute(req.ctx, req.fn)
}

func (l *LMAXLedger) execute(ctx context.Context, fn usecase.WorkFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: work panicked: %v", domain.ErrStoreUnavailable, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	view := newTxView(l.st)
	if err := fn(ctx, view, view); err != nil {
		return err
	}
	return l.st.commit(view.toBatch())
}

// Accounts 已提交狀態的帳戶查詢
func (l *LMAXLedger) Accounts() usecase.AccountReader {
	return reader{l.st}
}

// Log 已提交狀態的交易查詢
func (l *LMAXLedger) Log() usecase.TransactionReader {
	return reader{l.st}
}

var _ usecase.Ledger = (*LMAXLedger)(nil)

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// batch 一個原子單位提交的所有變更，也是 WAL 內的一行
type batch struct {
	Saved    []domain.Account     `json:"saved,omitempty"`
	Appended []domain.Transaction `json:"appended,omitempty"`
	Unlinked []int64              `json:"unlinked,omitempty"`
	Deleted  []int64              `json:"deleted,omitempty"`
	// created: 本批新建的帳戶，提交時需再檢查帳號唯一性 (不寫入 WAL)
	created map[int64]bool
}

func (b *batch) empty() bool {
	return len(b.Saved) == 0 && len(b.Appended) == 0 && len(b.Unlinked) == 0 && len(b.Deleted) == 0
}

// state 已提交的帳本狀態
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	numbers: 帳號 -> 帳戶 ID 索引
//	transactions: 交易紀錄 (依提交順序)
//	mu: 保護以上三者，提交時一次套用整批變更
//	wal: Write-Ahead Log 實例 (可為 nil)
type state struct {
	mu           sync.RWMutex
	accounts     map[int64]domain.Account
	numbers      map[string]int64
	transactions []domain.Transaction

	lastAccountID atomic.Int64
	lastSequence  atomic.Uint64

	wal *wal.WAL
}

func newState(w *wal.WAL) *state {
	return &state{
		accounts: make(map[int64]domain.Account),
		numbers:  make(map[string]int64),
		wal:      w,
	}
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只在建構時呼叫 (單執行緒)
func (s *state) recoverFromWAL() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var b batch
		if err := json.Unmarshal(jsonRaw, &b); err != nil {
			return err
		}
		s.apply(&b)
		return nil
	})
}

// commit 檢查唯一性、先寫 WAL，再把整批變更套用到記憶體
//
// 回傳:
//
//	error: ErrAccountNumberTaken / ErrWALWriteFailed，失敗時狀態完全不變
func (s *state) commit(b *batch) error {
	if b.empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range b.Saved {
		if !b.created[a.ID] {
			continue
		}
		if owner, ok := s.numbers[a.AccountNumber]; ok && owner != a.ID {
			return domain.ErrAccountNumberTaken
		}
	}

	// 1. 寫入 WAL (Critical Path)
	if s.wal != nil {
		if err := s.wal.Write(b); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}

	// 2. 套用到記憶體
	s.apply(b)
	return nil
}

// apply 套用變更，呼叫端需持有寫鎖 (或處於單執行緒恢復階段)
func (s *state) apply(b *batch) {
	for _, a := range b.Saved {
		if old, ok := s.accounts[a.ID]; ok && old.AccountNumber != a.AccountNumber {
			delete(s.numbers, old.AccountNumber)
		}
		s.accounts[a.ID] = a
		s.numbers[a.AccountNumber] = a.ID
		if a.ID > s.lastAccountID.Load() {
			s.lastAccountID.Store(a.ID)
		}
	}
	for _, t := range b.Appended {
		s.transactions = append(s.transactions, t)
		if t.Sequence > s.lastSequence.Load() {
			s.lastSequence.Store(t.Sequence)
		}
	}
	for _, id := range b.Unlinked {
		for i := range s.transactions {
			if s.transactions[i].BelongsTo(id) {
				s.transactions[i].AccountID = nil
			}
		}
	}
	for _, id := range b.Deleted {
		if a, ok := s.accounts[id]; ok {
			delete(s.numbers, a.AccountNumber)
			delete(s.accounts, id)
		}
	}
}

// reader 已提交狀態的唯讀視圖
type reader struct {
	st *state
}

func (r reader) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	a, ok := r.st.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (r reader) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	_, ok := r.st.numbers[number]
	return ok, nil
}

func (r reader) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	r.st.mu.RLock()
	out := make([]domain.Account, 0, len(r.st.accounts))
	for _, a := range r.st.accounts {
		out = append(out, a)
	}
	r.st.mu.RUnlock()
	sortAccounts(out)
	return out, nil
}

func (r reader) QueryByAccountAndRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	r.st.mu.RLock()
	out := filterRange(r.st.transactions, accountID, from, to, nil)
	r.st.mu.RUnlock()
	domain.SortTransactions(out)
	return out, nil
}

func (r reader) All(ctx context.Context) ([]domain.Transaction, error) {
	r.st.mu.RLock()
	out := slices.Clone(r.st.transactions)
	r.st.mu.RUnlock()
	sortBySequence(out)
	return out, nil
}

// filterRange 篩選屬於 accountID 且時間落在 [from, to] 的紀錄
// unlinked 內的帳戶視為已解除連結
func filterRange(txs []domain.Transaction, accountID int64, from, to time.Time, unlinked map[int64]bool) []domain.Transaction {
	out := make([]domain.Transaction, 0)
	if unlinked[accountID] {
		return out
	}
	for _, t := range txs {
		if !t.BelongsTo(accountID) {
			continue
		}
		if t.Timestamp.Before(from) || t.Timestamp.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func sortAccounts(accounts []domain.Account) {
	slices.SortFunc(accounts, func(a, b domain.Account) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func sortBySequence(txs []domain.Transaction) {
	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
}

var (
	_ usecase.AccountReader     = reader{}
	_ usecase.TransactionReader = reader{}
)

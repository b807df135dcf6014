package memory

import (
	"context"
	"slices"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// txView 原子單位內的暫存視圖
// 讀取時先看暫存再看已提交狀態，寫入只進暫存，commit 時整批套用
type txView struct {
	st       *state
	saved    map[int64]domain.Account
	created  map[int64]bool
	deleted  map[int64]bool
	unlinked map[int64]bool
	appended []domain.Transaction
}

func newTxView(st *state) *txView {
	return &txView{
		st:       st,
		saved:    make(map[int64]domain.Account),
		created:  make(map[int64]bool),
		deleted:  make(map[int64]bool),
		unlinked: make(map[int64]bool),
	}
}

// toBatch 把暫存內容轉成可提交的 batch
func (v *txView) toBatch() *batch {
	b := &batch{created: v.created}
	for _, a := range v.saved {
		b.Saved = append(b.Saved, a)
	}
	sortAccounts(b.Saved)
	b.Appended = v.appended
	for id := range v.unlinked {
		b.Unlinked = append(b.Unlinked, id)
	}
	slices.Sort(b.Unlinked)
	for id := range v.deleted {
		if !v.created[id] {
			b.Deleted = append(b.Deleted, id)
		}
	}
	slices.Sort(b.Deleted)
	return b
}

func (v *txView) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	if v.deleted[id] {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if a, ok := v.saved[id]; ok {
		return a, nil
	}
	return reader{v.st}.GetAccount(ctx, id)
}

func (v *txView) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	for _, a := range v.saved {
		if a.AccountNumber == number {
			return true, nil
		}
	}
	v.st.mu.RLock()
	id, ok := v.st.numbers[number]
	v.st.mu.RUnlock()
	return ok && !v.deleted[id], nil
}

func (v *txView) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	committed, err := reader{v.st}.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(committed)+len(v.saved))
	for _, a := range committed {
		if v.deleted[a.ID] {
			continue
		}
		if staged, ok := v.saved[a.ID]; ok {
			a = staged
		}
		out = append(out, a)
	}
	for id, a := range v.saved {
		if v.created[id] {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (v *txView) SaveAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	if account.ID == 0 {
		exists, err := v.AccountNumberExists(ctx, account.AccountNumber)
		if err != nil {
			return domain.Account{}, err
		}
		if exists {
			return domain.Account{}, domain.ErrAccountNumberTaken
		}
		account.ID = v.st.lastAccountID.Add(1)
		v.created[account.ID] = true
		v.saved[account.ID] = account
		return account, nil
	}
	if _, err := v.GetAccount(ctx, account.ID); err != nil {
		return domain.Account{}, err
	}
	v.saved[account.ID] = account
	return account, nil
}

func (v *txView) DeleteAccount(ctx context.Context, id int64) error {
	delete(v.saved, id)
	v.deleted[id] = true
	return nil
}

func (v *txView) Append(ctx context.Context, tran domain.Transaction) (domain.Transaction, error) {
	tran.Sequence = v.st.lastSequence.Add(1)
	v.appended = append(v.appended, tran)
	return tran, nil
}

func (v *txView) UnlinkAccount(ctx context.Context, accountID int64) (int, error) {
	count := 0
	if !v.unlinked[accountID] {
		v.st.mu.RLock()
		for _, t := range v.st.transactions {
			if t.BelongsTo(accountID) {
				count++
			}
		}
		v.st.mu.RUnlock()
	}
	for i := range v.appended {
		if v.appended[i].BelongsTo(accountID) {
			v.appended[i].AccountID = nil
			count++
		}
	}
	v.unlinked[accountID] = true
	return count, nil
}

func (v *txView) QueryByAccountAndRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	v.st.mu.RLock()
	out := filterRange(v.st.transactions, accountID, from, to, v.unlinked)
	v.st.mu.RUnlock()
	out = append(out, filterRange(v.appended, accountID, from, to, nil)...)
	domain.SortTransactions(out)
	return out, nil
}

func (v *txView) All(ctx context.Context) ([]domain.Transaction, error) {
	v.st.mu.RLock()
	out := make([]domain.Transaction, 0, len(v.st.transactions)+len(v.appended))
	for _, t := range v.st.transactions {
		if t.AccountID != nil && v.unlinked[*t.AccountID] {
			t.AccountID = nil
		}
		out = append(out, t)
	}
	v.st.mu.RUnlock()
	out = append(out, v.appended...)
	sortBySequence(out)
	return out, nil
}

var (
	_ usecase.AccountStore   = (*txView)(nil)
	_ usecase.TransactionLog = (*txView)(nil)
)

package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 查詢全部區間用的邊界
var (
	minTime = time.Unix(0, 0).UTC()
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// StatementAggregator 產生對帳單
type StatementAggregator struct {
	ledger Ledger
	policy domain.ClosingBalancePolicy
	logger *zap.Logger
}

// NewStatementAggregator 建立 StatementAggregator，policy 空值時使用 ClosingAtPeriodEnd
func NewStatementAggregator(ledger Ledger, policy domain.ClosingBalancePolicy, logger *zap.Logger) *StatementAggregator {
	if policy == "" {
		policy = domain.ClosingAtPeriodEnd
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementAggregator{
		ledger: ledger,
		policy: policy,
		logger: logger,
	}
}

// BuildStatement 產生 [dateFrom 當日 00:00, dateTo 當日結束] 的對帳單
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	dateFrom, dateTo: 期間 (只取日期部分)
//
// 回傳:
//
//	domain.Statement: 對帳單 (opening + credits - debits == closing)
//	error: ErrNotFound / ErrValidation / ErrStoreUnavailable
func (a *StatementAggregator) BuildStatement(ctx context.Context, accountID int64, dateFrom, dateTo time.Time) (domain.Statement, error) {
	from := domain.StartOfDay(dateFrom)
	to := domain.EndOfDay(dateTo)
	if from.After(to) {
		return domain.Statement{}, domain.ErrInvalidDateRange
	}

	var stmt domain.Statement
	// 鎖住帳戶讀取，避免看到只套用一半的操作
	err := a.ledger.Atomic(ctx, domain.GetLockIDs(accountID), func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
		account, err := accounts.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		txs, err := log.QueryByAccountAndRange(ctx, accountID, from, to)
		if err != nil {
			return err
		}

		closing := account.Balance
		if a.policy == domain.ClosingAtPeriodEnd {
			later, err := log.QueryByAccountAndRange(ctx, accountID, to.Add(time.Nanosecond), maxTime)
			if err != nil {
				return err
			}
			for _, t := range later {
				closing -= t.SignedAmount()
			}
		}

		stmt = aggregate(account, txs, closing)
		stmt.DateFrom = from
		stmt.DateTo = to
		return nil
	})
	if err != nil {
		return domain.Statement{}, fmt.Errorf("build statement for account %d: %w", accountID, err)
	}

	a.logger.Debug("statement built",
		zap.Int64("account_id", accountID),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("count", stmt.Count),
		zap.String("closing_policy", string(a.policy)),
	)
	return stmt, nil
}

// aggregate 分類借貸並由期末餘額反推期初餘額
func aggregate(account domain.Account, txs []domain.Transaction, closing int64) domain.Statement {
	var credits, debits int64
	for _, t := range txs {
		if t.Type.IsCredit() {
			credits += t.Amount
		} else {
			debits += t.Amount
		}
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return domain.Statement{
		Account:        account,
		Transactions:   txs,
		Count:          len(txs),
		TotalCredits:   credits,
		TotalDebits:    debits,
		ClosingBalance: closing,
		OpeningBalance: closing - credits + debits,
	}
}

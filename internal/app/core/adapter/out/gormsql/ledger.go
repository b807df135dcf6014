package gormsql

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Ledger 以關聯式資料庫實作的帳本 (MySQL / PostgreSQL)
// 每個原子單位是一個資料庫交易，並以 SELECT ... FOR UPDATE 依 ID 順序鎖住帳戶列
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLedger 建立 Ledger
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		db:     db,
		logger: logger,
	}
}

// Migrate 建立或更新 accounts 與 transactions 表
func (l *Ledger) Migrate(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&accountRow{}, &transactionRow{})
}

// Atomic 在單一資料庫交易內執行 fn
//
// 參數:
//
//	ctx: 上下文
//	lockIDs: 需要鎖定的帳戶 ID，依 ID 由小到大加上悲觀鎖
//	fn: 業務邏輯
//
// 回傳:
//
//	error: fn 的錯誤，或已分類為領域錯誤種類的資料庫錯誤
func (l *Ledger) Atomic(ctx context.Context, lockIDs []int64, fn usecase.WorkFunc) error {
	var workErr error
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ids := domain.GetLockIDs(lockIDs...); len(ids) > 0 {
			// 取得鎖定帳號 悲觀鎖；不存在的帳戶交由 fn 回報
			var locked []accountRow
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id IN ?", ids).
				Order("id").
				Find(&locked).Error; err != nil {
				return err
			}
		}
		s := store{db: tx}
		workErr = fn(ctx, s, s)
		return workErr
	})
	if err == nil {
		return nil
	}
	// fn 自己的錯誤 (業務拒絕等) 原樣回傳，已回滾
	if workErr != nil {
		return workErr
	}
	classified := classify(err)
	if errors.Is(classified, domain.ErrStoreUnavailable) {
		l.logger.Error("sql ledger transaction failed", zap.Error(err))
	}
	return classified
}

// Accounts 已提交狀態的帳戶查詢
func (l *Ledger) Accounts() usecase.AccountReader {
	return store{db: l.db}
}

// Log 已提交狀態的交易查詢
func (l *Ledger) Log() usecase.TransactionReader {
	return store{db: l.db}
}

// store 綁定在某個 *gorm.DB (交易或連線池) 上的存取實作
type store struct {
	db *gorm.DB
}

func (s store) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	var row accountRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return domain.Account{}, classify(err)
	}
	return row.toDomain(), nil
}

func (s store) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&accountRow{}).Where("account_number = ?", number).Count(&n).Error; err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (s store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var rows []accountRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	out := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s store) SaveAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := toAccountRow(account)
	db := s.db.WithContext(ctx)
	if row.ID == 0 {
		var n int64
		if err := db.Model(&accountRow{}).Where("account_number = ?", row.AccountNumber).Count(&n).Error; err != nil {
			return domain.Account{}, classify(err)
		}
		if n > 0 {
			return domain.Account{}, domain.ErrAccountNumberTaken
		}
		// 兩個交易同時通過上面的檢查時，由唯一索引擋下並分類成 ErrAccountNumberTaken
		if err := db.Create(&row).Error; err != nil {
			return domain.Account{}, classify(err)
		}
		return row.toDomain(), nil
	}

	var n int64
	if err := db.Model(&accountRow{}).Where("id = ?", row.ID).Count(&n).Error; err != nil {
		return domain.Account{}, classify(err)
	}
	if n == 0 {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err := db.Save(&row).Error; err != nil {
		return domain.Account{}, classify(err)
	}
	return row.toDomain(), nil
}

func (s store) DeleteAccount(ctx context.Context, id int64) error {
	return classify(s.db.WithContext(ctx).Delete(&accountRow{}, id).Error)
}

func (s store) Append(ctx context.Context, tran domain.Transaction) (domain.Transaction, error) {
	tran.Sequence = 0
	row := toTransactionRow(tran)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Transaction{}, classify(err)
	}
	tran.Sequence = row.ID
	tran.Timestamp = row.Timestamp
	return tran, nil
}

func (s store) UnlinkAccount(ctx context.Context, accountID int64) (int, error) {
	res := s.db.WithContext(ctx).Model(&transactionRow{}).
		Where("account_id = ?", accountID).
		Update("account_id", nil)
	if res.Error != nil {
		return 0, classify(res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s store) QueryByAccountAndRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	var rows []transactionRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND occurred_at >= ? AND occurred_at <= ?", accountID, columnTime(from), columnTime(to)).
		Order("occurred_at").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return toTransactions(rows)
}

// columnTime 截到 occurred_at 欄位的微秒精度
// 否則 23:59:59.999999999 會被資料庫進位成隔天 00:00:00
func columnTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s store) All(ctx context.Context) ([]domain.Transaction, error) {
	var rows []transactionRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return toTransactions(rows)
}

var (
	_ usecase.Ledger         = (*Ledger)(nil)
	_ usecase.AccountStore   = store{}
	_ usecase.TransactionLog = store{}
)

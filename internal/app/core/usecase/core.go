package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// openingBalanceOrigin 開戶時初始餘額的資金來源
const openingBalanceOrigin = "opening balance"

// Config 帳本業務參數
type Config struct {
	// MaxRetries: 遇到 ErrConcurrencyConflict 時整個操作重試的次數
	MaxRetries int `yaml:"max_retries"`
	// RetryBackoff: 第 n 次重試前等待 n * RetryBackoff
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// AccountNumberAttempts: 單次配號最多嘗試幾個亂數
	AccountNumberAttempts int `yaml:"account_number_attempts"`
}

// DefaultConfig 預設參數
func DefaultConfig() Config {
	return Config{
		MaxRetries:            3,
		RetryBackoff:          10 * time.Millisecond,
		AccountNumberAttempts: 10,
	}
}

// Option 設定 LedgerService
type Option func(*LedgerService)

// WithConfig 覆寫業務參數
func WithConfig(cfg Config) Option {
	return func(s *LedgerService) {
		s.cfg = cfg
	}
}

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *LedgerService) {
		s.logger = logger
	}
}

// WithPublisher 設定事件發布者
func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) {
		s.publisher = p
	}
}

// WithClock 替換時鐘 (測試用)
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		s.now = now
	}
}

// WithAccountNumberGenerator 替換帳號產生器
func WithAccountNumberGenerator(gen func() string) Option {
	return func(s *LedgerService) {
		s.nextNumber = gen
	}
}

// LedgerService 是核心業務邏輯層：存款、提款、轉帳與開銷戶
type LedgerService struct {
	ledger     Ledger
	cfg        Config
	logger     *zap.Logger
	publisher  EventPublisher
	now        func() time.Time
	nextNumber func() string
}

// NewLedgerService 建立 LedgerService
func NewLedgerService(ledger Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{
		ledger:     ledger,
		cfg:        DefaultConfig(),
		logger:     zap.NewNop(),
		publisher:  NopPublisher{},
		now:        time.Now,
		nextNumber: randomAccountNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.AccountNumberAttempts <= 0 {
		s.cfg.AccountNumberAttempts = 1
	}
	return s
}

// randomAccountNumber 產生 11 位亂數帳號 (首位不為 0)
func randomAccountNumber() string {
	const min, max = 10000000000, 99999999999
	return strconv.FormatInt(min+rand.Int64N(max-min+1), 10)
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amount: 金額 (>0)
//	fundsOrigin: 資金來源 (必填)
//
// 回傳:
//
//	domain.Transaction: 新增的 DEPOSIT 紀錄
//	error: ErrValidation / ErrNotFound / ErrConcurrencyConflict / ErrStoreUnavailable
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount int64, fundsOrigin string) (domain.Transaction, error) {
	cmd := depositCommand{Amount: amount, FundsOrigin: strings.TrimSpace(fundsOrigin)}
	if err := validateCommand(cmd); err != nil {
		return domain.Transaction{}, s.reject("deposit", err, zap.Int64("account_id", accountID))
	}

	var result domain.Transaction
	err := s.withRetry(ctx, "deposit", func() error {
		return s.ledger.Atomic(ctx, domain.GetLockIDs(accountID), func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
			before, err := accounts.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			after := before
			if err := after.Deposit(cmd.Amount); err != nil {
				return err
			}
			if _, err := accounts.SaveAccount(ctx, after); err != nil {
				return err
			}
			tran := domain.NewTransaction(domain.TransactionTypeDeposit, before, after, cmd.Amount, s.now())
			tran.FundsOrigin = cmd.FundsOrigin
			result, err = log.Append(ctx, tran)
			return err
		})
	})
	if err != nil {
		return domain.Transaction{}, s.reject("deposit", err, zap.Int64("account_id", accountID), zap.Int64("amount", amount))
	}

	s.logger.Info("deposit committed",
		zap.Int64("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance_after", result.BalanceAfter),
		zap.Stringer("transaction_id", result.ID),
	)
	s.publish(ctx, domain.LedgerEvent{
		EventType:     domain.EventDeposit,
		AccountID:     accountID,
		AccountNumber: result.AccountNumberSnapshot,
		Transactions:  []uuid.UUID{result.ID},
		Amount:        amount,
		BalanceAfter:  result.BalanceAfter,
		Timestamp:     result.Timestamp,
	})
	return result, nil
}

// Withdraw 提款
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount int64) (domain.Transaction, error) {
	if err := validateCommand(withdrawCommand{Amount: amount}); err != nil {
		return domain.Transaction{}, s.reject("withdraw", err, zap.Int64("account_id", accountID))
	}

	var result domain.Transaction
	err := s.withRetry(ctx, "withdraw", func() error {
		return s.ledger.Atomic(ctx, domain.GetLockIDs(accountID), func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
			before, err := accounts.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			after := before
			if err := after.Withdraw(amount); err != nil {
				return err
			}
			if _, err := accounts.SaveAccount(ctx, after); err != nil {
				return err
			}
			result, err = log.Append(ctx, domain.NewTransaction(domain.TransactionTypeWithdrawal, before, after, amount, s.now()))
			return err
		})
	})
	if err != nil {
		return domain.Transaction{}, s.reject("withdraw", err, zap.Int64("account_id", accountID), zap.Int64("amount", amount))
	}

	s.logger.Info("withdraw committed",
		zap.Int64("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance_after", result.BalanceAfter),
		zap.Stringer("transaction_id", result.ID),
	)
	s.publish(ctx, domain.LedgerEvent{
		EventType:     domain.EventWithdrawal,
		AccountID:     accountID,
		AccountNumber: result.AccountNumberSnapshot,
		Transactions:  []uuid.UUID{result.ID},
		Amount:        amount,
		BalanceAfter:  result.BalanceAfter,
		Timestamp:     result.Timestamp,
	})
	return result, nil
}

// Transfer 轉帳
// 兩個帳戶的鎖一律依 ID 由小到大取得，與參數順序無關
//
// 回傳:
//
//	out: 來源帳戶的 TRANSFER_OUT
//	in: 目的帳戶的 TRANSFER_IN
func (s *LedgerService) Transfer(ctx context.Context, sourceID, destID int64, amount int64) (out, in domain.Transaction, err error) {
	cmd := transferCommand{SourceID: sourceID, DestinationID: destID, Amount: amount}
	if err := validateCommand(cmd); err != nil {
		return out, in, s.reject("transfer", err, zap.Int64("source_id", sourceID), zap.Int64("dest_id", destID))
	}

	err = s.withRetry(ctx, "transfer", func() error {
		return s.ledger.Atomic(ctx, domain.GetLockIDs(sourceID, destID), func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
			srcBefore, err := accounts.GetAccount(ctx, sourceID)
			if err != nil {
				return err
			}
			dstBefore, err := accounts.GetAccount(ctx, destID)
			if err != nil {
				return err
			}
			srcAfter, dstAfter := srcBefore, dstBefore
			if err := srcAfter.Withdraw(amount); err != nil {
				return err
			}
			if err := dstAfter.Deposit(amount); err != nil {
				return err
			}
			if _, err := accounts.SaveAccount(ctx, srcAfter); err != nil {
				return err
			}
			if _, err := accounts.SaveAccount(ctx, dstAfter); err != nil {
				return err
			}

			at := s.now()
			outTran := domain.NewTransaction(domain.TransactionTypeTransferOut, srcBefore, srcAfter, amount, at)
			outTran.CounterpartyAccountNumber = dstAfter.AccountNumber
			inTran := domain.NewTransaction(domain.TransactionTypeTransferIn, dstBefore, dstAfter, amount, at)
			inTran.CounterpartyAccountNumber = srcAfter.AccountNumber

			if out, err = log.Append(ctx, outTran); err != nil {
				return err
			}
			in, err = log.Append(ctx, inTran)
			return err
		})
	})
	if err != nil {
		return domain.Transaction{}, domain.Transaction{}, s.reject("transfer", err,
			zap.Int64("source_id", sourceID), zap.Int64("dest_id", destID), zap.Int64("amount", amount))
	}

	s.logger.Info("transfer committed",
		zap.Int64("source_id", sourceID),
		zap.Int64("dest_id", destID),
		zap.Int64("amount", amount),
	)
	s.publish(ctx, domain.LedgerEvent{
		EventType:    domain.EventTransfer,
		AccountID:    sourceID,
		Transactions: []uuid.UUID{out.ID, in.ID},
		Amount:       amount,
		BalanceAfter: out.BalanceAfter,
		FromAccount:  out.AccountNumberSnapshot,
		ToAccount:    in.AccountNumberSnapshot,
		Timestamp:    out.Timestamp,
	})
	return out, in, nil
}

// CreateAccountInput 開戶參數
type CreateAccountInput struct {
	AccountType string
	OwnerRef    string
	OwnerName   string
	// AccountNumber: 空字串時自動配號
	AccountNumber string
	// InitialBalance: >0 時記一筆開戶存款
	InitialBalance int64
}

// CreateAccount 開戶
// 帳號採「產生後檢查」並有上限的重試；提交時儲存層的唯一性檢查再把關一次
func (s *LedgerService) CreateAccount(ctx context.Context, input CreateAccountInput) (domain.Account, error) {
	cmd := createAccountCommand{
		AccountType:    domain.NormalizeAccountType(input.AccountType),
		AccountNumber:  strings.TrimSpace(input.AccountNumber),
		InitialBalance: input.InitialBalance,
	}
	if err := validateCommand(cmd); err != nil {
		return domain.Account{}, s.reject("create_account", err)
	}

	var created domain.Account
	err := s.withRetry(ctx, "create_account", func() error {
		number := cmd.AccountNumber
		if number == "" {
			var err error
			if number, err = s.allocateAccountNumber(ctx); err != nil {
				return err
			}
		} else {
			exists, err := s.ledger.Accounts().AccountNumberExists(ctx, number)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrAccountNumberInUse
			}
		}

		return s.ledger.Atomic(ctx, nil, func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
			at := s.now()
			account := domain.Account{
				AccountNumber: number,
				AccountType:   cmd.AccountType,
				OwnerRef:      strings.TrimSpace(input.OwnerRef),
				OwnerName:     domain.NormalizeOwnerName(input.OwnerName),
				CreatedAt:     domain.StartOfDay(at),
			}
			saved, err := accounts.SaveAccount(ctx, account)
			if err != nil {
				if errors.Is(err, domain.ErrAccountNumberTaken) && cmd.AccountNumber != "" {
					return domain.ErrAccountNumberInUse
				}
				return err
			}
			if cmd.InitialBalance > 0 {
				before := saved
				if err := saved.Deposit(cmd.InitialBalance); err != nil {
					return err
				}
				if saved, err = accounts.SaveAccount(ctx, saved); err != nil {
					return err
				}
				tran := domain.NewTransaction(domain.TransactionTypeDeposit, before, saved, cmd.InitialBalance, at)
				tran.FundsOrigin = openingBalanceOrigin
				if _, err := log.Append(ctx, tran); err != nil {
					return err
				}
			}
			created = saved
			return nil
		})
	})
	if err != nil {
		return domain.Account{}, s.reject("create_account", err)
	}

	s.logger.Info("account created",
		zap.Int64("account_id", created.ID),
		zap.String("account_number", created.AccountNumber),
		zap.String("account_type", created.AccountType),
	)
	s.publish(ctx, domain.LedgerEvent{
		EventType:     domain.EventAccountCreated,
		AccountID:     created.ID,
		AccountNumber: created.AccountNumber,
		BalanceAfter:  created.Balance,
		Timestamp:     s.now(),
	})
	return created, nil
}

// allocateAccountNumber 產生未被使用的帳號
func (s *LedgerService) allocateAccountNumber(ctx context.Context) (string, error) {
	for i := 0; i < s.cfg.AccountNumberAttempts; i++ {
		number := s.nextNumber()
		if !domain.ValidAccountNumber(number) {
			return "", fmt.Errorf("generated account number %q: %w", number, domain.ErrInvalidAccountNumber)
		}
		exists, err := s.ledger.Accounts().AccountNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		s.logger.Debug("account number collision", zap.String("account_number", number))
	}
	return "", fmt.Errorf("%w: no free account number after %d attempts", domain.ErrConcurrencyConflict, s.cfg.AccountNumberAttempts)
}

// UpdateAccountInput 可修改的帳戶欄位，nil 表示不變
type UpdateAccountInput struct {
	AccountType *string
	OwnerRef    *string
	OwnerName   *string
}

// UpdateAccount 修改帳戶類型或持有人，不會動到餘額
func (s *LedgerService) UpdateAccount(ctx context.Context, id int64, input UpdateAccountInput) (domain.Account, error) {
	if input.AccountType != nil && domain.NormalizeAccountType(*input.AccountType) == "" {
		return domain.Account{}, s.reject("update_account", domain.ErrAccountTypeRequired, zap.Int64("account_id", id))
	}

	var updated domain.Account
	err := s.withRetry(ctx, "update_account", func() error {
		return s.ledger.Atomic(ctx, domain.GetLockIDs(id), func(ctx context.Context, accounts AccountStore, _ TransactionLog) error {
			account, err := accounts.GetAccount(ctx, id)
			if err != nil {
				return err
			}
			if input.AccountType != nil {
				account.AccountType = domain.NormalizeAccountType(*input.AccountType)
			}
			if input.OwnerRef != nil {
				account.OwnerRef = strings.TrimSpace(*input.OwnerRef)
			}
			if input.OwnerName != nil {
				account.OwnerName = domain.NormalizeOwnerName(*input.OwnerName)
			}
			updated, err = accounts.SaveAccount(ctx, account)
			return err
		})
	})
	if err != nil {
		return domain.Account{}, s.reject("update_account", err, zap.Int64("account_id", id))
	}

	s.logger.Info("account updated", zap.Int64("account_id", id))
	s.publish(ctx, domain.LedgerEvent{
		EventType:     domain.EventAccountUpdated,
		AccountID:     id,
		AccountNumber: updated.AccountNumber,
		Timestamp:     s.now(),
	})
	return updated, nil
}

// DeleteAccount 銷戶
// 帳戶不存在時視為成功；否則先清除交易紀錄的帳戶參照 (紀錄保留) 再刪除帳戶
func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	var (
		deleted  domain.Account
		found    bool
		unlinked int
	)
	err := s.withRetry(ctx, "delete_account", func() error {
		found = false
		return s.ledger.Atomic(ctx, domain.GetLockIDs(id), func(ctx context.Context, accounts AccountStore, log TransactionLog) error {
			account, err := accounts.GetAccount(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if unlinked, err = log.UnlinkAccount(ctx, id); err != nil {
				return err
			}
			if err := accounts.DeleteAccount(ctx, id); err != nil {
				return err
			}
			deleted, found = account, true
			return nil
		})
	})
	if err != nil {
		return s.reject("delete_account", err, zap.Int64("account_id", id))
	}
	if !found {
		s.logger.Debug("delete of missing account ignored", zap.Int64("account_id", id))
		return nil
	}

	s.logger.Info("account deleted",
		zap.Int64("account_id", id),
		zap.Int("unlinked_transactions", unlinked),
	)
	s.publish(ctx, domain.LedgerEvent{
		EventType:     domain.EventAccountDeleted,
		AccountID:     id,
		AccountNumber: deleted.AccountNumber,
		Timestamp:     s.now(),
	})
	return nil
}

// GetAccount 取得帳戶快照
func (s *LedgerService) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	return s.ledger.Accounts().GetAccount(ctx, id)
}

// ListAccounts 列出所有帳戶
func (s *LedgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.ledger.Accounts().ListAccounts(ctx)
}

// AllTransactions 全部交易紀錄 (唯讀、不分頁)
func (s *LedgerService) AllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.ledger.Log().All(ctx)
}

// AccountTransactions 單一帳戶的全部交易紀錄
func (s *LedgerService) AccountTransactions(ctx context.Context, id int64) ([]domain.Transaction, error) {
	if _, err := s.ledger.Accounts().GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Log().QueryByAccountAndRange(ctx, id, minTime, maxTime)
}

// withRetry 遇到可重試錯誤時重跑整個操作
func (s *LedgerService) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s retry aborted: %w (last error: %w)", op, ctx.Err(), err)
			case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
			}
		}
		err = fn()
		if !domain.IsRetryable(err) {
			return err
		}
		s.logger.Warn("retryable conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}

// reject 記錄失敗原因後原樣回傳錯誤
// 業務拒絕記 Debug，系統錯誤記 Error
func (s *LedgerService) reject(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("ledger operation failed", fields...)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		s.logger.Warn("ledger operation gave up after retries", fields...)
	default:
		s.logger.Debug("ledger operation rejected", fields...)
	}
	return err
}

// publish 提交後發布事件，失敗只記 log
func (s *LedgerService) publish(ctx context.Context, event domain.LedgerEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ledger event failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

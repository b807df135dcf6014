package gormsql

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// MySQL 錯誤碼
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

var domainKinds = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrInsufficientFunds,
	domain.ErrConcurrencyConflict,
	domain.ErrStoreUnavailable,
}

// classify 把驅動錯誤轉成領域錯誤種類
// 已是領域錯誤或 context 錯誤則原樣回傳
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range domainKinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrAccountNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w (%v)", domain.ErrAccountNumberTaken, err)
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w (%v)", domain.ErrAccountNumberTaken, err)
		case mysqlDeadlockDetected, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w (%v)", domain.ErrAccountNumberTaken, err)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

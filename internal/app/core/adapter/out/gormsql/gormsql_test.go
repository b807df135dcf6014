package gormsql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"domain passthrough", domain.ErrInsufficientBalance, domain.ErrInsufficientFunds},
		{"wrapped domain", fmt.Errorf("ctx: %w", domain.ErrAccountNotFound), domain.ErrNotFound},
		{"record not found", gorm.ErrRecordNotFound, domain.ErrNotFound},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, domain.ErrAccountNumberTaken},
		{"mysql duplicate", &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, domain.ErrAccountNumberTaken},
		{"mysql deadlock", &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}, domain.ErrConcurrencyConflict},
		{"mysql lock wait", &mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout"}, domain.ErrConcurrencyConflict},
		{"mysql other", &mysqldriver.MySQLError{Number: 1146, Message: "Table doesn't exist"}, domain.ErrStoreUnavailable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domain.ErrAccountNumberTaken},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domain.ErrConcurrencyConflict},
		{"pg deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), domain.ErrConcurrencyConflict},
		{"connection refused", errors.New("dial tcp: connection refused"), domain.ErrStoreUnavailable},
		{"context canceled", context.Canceled, context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("want nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v)=%v, want kind %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassifiedConflictsAreRetryable(t *testing.T) {
	if !domain.IsRetryable(classify(&mysqldriver.MySQLError{Number: 1062})) {
		t.Fatal("duplicate account number must be retryable")
	}
	if domain.IsRetryable(classify(errors.New("broken pipe"))) {
		t.Fatal("store failure must not be retryable")
	}
}

func TestTransactionRowMapping(t *testing.T) {
	id := int64(7)
	at := time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.FixedZone("CST", 8*3600))
	tran := domain.Transaction{
		ID:                        uuid.New(),
		Sequence:                  42,
		Timestamp:                 at,
		Type:                      domain.TransactionTypeTransferIn,
		Amount:                    300,
		BalanceBefore:             100,
		BalanceAfter:              400,
		AccountID:                 &id,
		AccountNumberSnapshot:     "12345678901",
		OwnerNameSnapshot:         "DOE",
		CounterpartyAccountNumber: "10987654321",
	}
	got, err := toTransactionRow(tran).toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != tran.ID || got.Sequence != 42 || got.Type != domain.TransactionTypeTransferIn {
		t.Fatalf("got=%+v", got)
	}
	if !got.Timestamp.Equal(at) || got.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp=%v", got.Timestamp)
	}
	if got.AccountID == nil || *got.AccountID != 7 || got.CounterpartyAccountNumber != "10987654321" {
		t.Fatalf("refs=%+v", got)
	}

	unlinked := toTransactionRow(tran)
	unlinked.AccountID = nil
	got, _ = unlinked.toDomain()
	if got.AccountID != nil || got.BelongsTo(7) {
		t.Fatal("unlinked row must not belong to any account")
	}

	bad := transactionRow{RefID: "not-a-uuid"}
	if _, err := bad.toDomain(); err == nil {
		t.Fatal("expected error for malformed ref id")
	}
}

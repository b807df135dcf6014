package grpc

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/ledgerrpc"
)

func toAccount(a domain.Account) *ledgerrpc.Account {
	return &ledgerrpc.Account{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		OwnerRef:      a.OwnerRef,
		OwnerName:     a.OwnerName,
		CreatedAt:     timestamppb.New(a.CreatedAt),
	}
}

func toTransaction(t domain.Transaction) *ledgerrpc.Transaction {
	out := &ledgerrpc.Transaction{
		ID:                        t.ID.String(),
		Sequence:                  t.Sequence,
		Timestamp:                 timestamppb.New(t.Timestamp),
		Type:                      t.Type.String(),
		Amount:                    t.Amount,
		BalanceBefore:             t.BalanceBefore,
		BalanceAfter:              t.BalanceAfter,
		AccountNumber:             t.AccountNumberSnapshot,
		OwnerName:                 t.OwnerNameSnapshot,
		FundsOrigin:               t.FundsOrigin,
		CounterpartyAccountNumber: t.CounterpartyAccountNumber,
	}
	if t.AccountID != nil {
		id := *t.AccountID
		out.AccountID = &id
	}
	return out
}

func toTransactions(txs []domain.Transaction) []*ledgerrpc.Transaction {
	out := make([]*ledgerrpc.Transaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransaction(t))
	}
	return out
}

func toStatement(s domain.Statement) *ledgerrpc.Statement {
	return &ledgerrpc.Statement{
		Account:        toAccount(s.Account),
		Transactions:   toTransactions(s.Transactions),
		DateFrom:       timestamppb.New(s.DateFrom),
		DateTo:         timestamppb.New(s.DateTo),
		Count:          s.Count,
		TotalCredits:   s.TotalCredits,
		TotalDebits:    s.TotalDebits,
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
	}
}

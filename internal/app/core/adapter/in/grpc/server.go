package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/ledgerrpc"
)

// GrpcServer 把 LedgerService 與 StatementAggregator 暴露成 gRPC 服務
type GrpcServer struct {
	ledger     *usecase.LedgerService
	statements *usecase.StatementAggregator
	logger     *zap.Logger
}

// NewGrpcServer 建立 gRPC 服務實作，logger 為 nil 時不記錄
func NewGrpcServer(ledger *usecase.LedgerService, statements *usecase.StatementAggregator, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		ledger:     ledger,
		statements: statements,
		logger:     logger,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *ledgerrpc.CreateAccountRequest) (*ledgerrpc.Account, error) {
	account, err := s.ledger.CreateAccount(ctx, usecase.CreateAccountInput{
		AccountType:    req.AccountType,
		OwnerRef:       req.OwnerRef,
		OwnerName:      req.OwnerName,
		AccountNumber:  req.AccountNumber,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toAccount(account), nil
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *ledgerrpc.AccountRequest) (*ledgerrpc.Account, error) {
	account, err := s.ledger.GetAccount(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toAccount(account), nil
}

func (s *GrpcServer) ListAccounts(ctx context.Context, _ *ledgerrpc.ListAccountsRequest) (*ledgerrpc.ListAccountsResponse, error) {
	accounts, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp := &ledgerrpc.ListAccountsResponse{Accounts: make([]*ledgerrpc.Account, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccount(a))
	}
	return resp, nil
}

func (s *GrpcServer) UpdateAccount(ctx context.Context, req *ledgerrpc.UpdateAccountRequest) (*ledgerrpc.Account, error) {
	account, err := s.ledger.UpdateAccount(ctx, req.ID, usecase.UpdateAccountInput{
		AccountType: req.AccountType,
		OwnerRef:    req.OwnerRef,
		OwnerName:   req.OwnerName,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toAccount(account), nil
}

func (s *GrpcServer) DeleteAccount(ctx context.Context, req *ledgerrpc.AccountRequest) (*ledgerrpc.DeleteAccountResponse, error) {
	if err := s.ledger.DeleteAccount(ctx, req.ID); err != nil {
		return nil, s.toStatus(err)
	}
	return &ledgerrpc.DeleteAccountResponse{}, nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *ledgerrpc.DepositRequest) (*ledgerrpc.TransactionResponse, error) {
	tran, err := s.ledger.Deposit(ctx, req.AccountID, req.Amount, req.FundsOrigin)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ledgerrpc.TransactionResponse{Transaction: toTransaction(tran)}, nil
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *ledgerrpc.WithdrawRequest) (*ledgerrpc.TransactionResponse, error) {
	tran, err := s.ledger.Withdraw(ctx, req.AccountID, req.Amount)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ledgerrpc.TransactionResponse{Transaction: toTransaction(tran)}, nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *ledgerrpc.TransferRequest) (*ledgerrpc.TransferResponse, error) {
	out, in, err := s.ledger.Transfer(ctx, req.SourceID, req.DestinationID, req.Amount)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ledgerrpc.TransferResponse{
		Out: toTransaction(out),
		In:  toTransaction(in),
	}, nil
}

func (s *GrpcServer) GetStatement(ctx context.Context, req *ledgerrpc.StatementRequest) (*ledgerrpc.Statement, error) {
	if req.DateFrom == nil || req.DateTo == nil {
		return nil, status.Error(codes.InvalidArgument, "date_from and date_to are required")
	}
	if err := req.DateFrom.CheckValid(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "date_from: %v", err)
	}
	if err := req.DateTo.CheckValid(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "date_to: %v", err)
	}
	stmt, err := s.statements.BuildStatement(ctx, req.AccountID, req.DateFrom.AsTime(), req.DateTo.AsTime())
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStatement(stmt), nil
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *ledgerrpc.ListTransactionsRequest) (*ledgerrpc.ListTransactionsResponse, error) {
	var (
		txs []domain.Transaction
		err error
	)
	if req.AccountID == 0 {
		txs, err = s.ledger.AllTransactions(ctx)
	} else {
		txs, err = s.ledger.AccountTransactions(ctx, req.AccountID)
	}
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ledgerrpc.ListTransactionsResponse{Transactions: toTransactions(txs)}, nil
}

// toStatus 錯誤種類對應 gRPC 狀態碼
func (s *GrpcServer) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrConcurrencyConflict):
		code = codes.Aborted
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
		s.logger.Error("unclassified ledger error", zap.Error(err))
	}
	return status.Error(code, err.Error())
}

var _ ledgerrpc.LedgerServiceServer = (*GrpcServer)(nil)

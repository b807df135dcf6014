package ledgerrpc

import "google.golang.org/protobuf/types/known/timestamppb"

// Account 帳戶快照
type Account struct {
	ID            int64                  `json:"id"`
	AccountNumber string                 `json:"account_number"`
	AccountType   string                 `json:"account_type"`
	Balance       int64                  `json:"balance"`
	OwnerRef      string                 `json:"owner_ref,omitempty"`
	OwnerName     string                 `json:"owner_name,omitempty"`
	CreatedAt     *timestamppb.Timestamp `json:"created_at"`
}

// Transaction 交易紀錄
// Type: DEPOSIT, WITHDRAWAL, TRANSFER_OUT, TRANSFER_IN
type Transaction struct {
	ID                        string                 `json:"id"`
	Sequence                  uint64                 `json:"sequence"`
	Timestamp                 *timestamppb.Timestamp `json:"timestamp"`
	Type                      string                 `json:"type"`
	Amount                    int64                  `json:"amount"`
	BalanceBefore             int64                  `json:"balance_before"`
	BalanceAfter              int64                  `json:"balance_after"`
	AccountID                 *int64                 `json:"account_id"` // 銷戶後為 null
	AccountNumber             string                 `json:"account_number"`
	OwnerName                 string                 `json:"owner_name,omitempty"`
	FundsOrigin               string                 `json:"funds_origin,omitempty"`
	CounterpartyAccountNumber string                 `json:"counterparty_account_number,omitempty"`
}

type CreateAccountRequest struct {
	AccountType    string `json:"account_type"`
	OwnerRef       string `json:"owner_ref,omitempty"`
	OwnerName      string `json:"owner_name,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"` // 空字串自動配號
	InitialBalance int64  `json:"initial_balance,omitempty"`
}

// AccountRequest 以 ID 指定帳戶 (GetAccount / DeleteAccount)
type AccountRequest struct {
	ID int64 `json:"id"`
}

// UpdateAccountRequest nil 欄位表示不變
type UpdateAccountRequest struct {
	ID          int64   `json:"id"`
	AccountType *string `json:"account_type,omitempty"`
	OwnerRef    *string `json:"owner_ref,omitempty"`
	OwnerName   *string `json:"owner_name,omitempty"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type DeleteAccountResponse struct{}

type DepositRequest struct {
	AccountID   int64  `json:"account_id"`
	Amount      int64  `json:"amount"`
	FundsOrigin string `json:"funds_origin"`
}

type WithdrawRequest struct {
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

type TransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type TransferRequest struct {
	SourceID      int64 `json:"source_id"`
	DestinationID int64 `json:"destination_id"`
	Amount        int64 `json:"amount"`
}

type TransferResponse struct {
	Out *Transaction `json:"out"`
	In  *Transaction `json:"in"`
}

// StatementRequest 只取日期部分
type StatementRequest struct {
	AccountID int64                  `json:"account_id"`
	DateFrom  *timestamppb.Timestamp `json:"date_from"`
	DateTo    *timestamppb.Timestamp `json:"date_to"`
}

type Statement struct {
	Account        *Account               `json:"account"`
	Transactions   []*Transaction         `json:"transactions"`
	DateFrom       *timestamppb.Timestamp `json:"date_from"`
	DateTo         *timestamppb.Timestamp `json:"date_to"`
	Count          int                    `json:"count"`
	TotalCredits   int64                  `json:"total_credits"`
	TotalDebits    int64                  `json:"total_debits"`
	OpeningBalance int64                  `json:"opening_balance"`
	ClosingBalance int64                  `json:"closing_balance"`
}

// ListTransactionsRequest AccountID 為 0 時回傳全部紀錄
type ListTransactionsRequest struct {
	AccountID int64 `json:"account_id,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

package domain

import "time"

// ClosingBalancePolicy 對帳單期末餘額的計算方式
type ClosingBalancePolicy string

const (
	// ClosingAtPeriodEnd 以目前餘額扣回迄日之後的異動，得到迄日當下的餘額
	ClosingAtPeriodEnd ClosingBalancePolicy = "period_end"
	// ClosingAtCurrent 直接使用產生對帳單當下的餘額
	ClosingAtCurrent ClosingBalancePolicy = "current"
)

// Statement 對帳單，交給外部渲染器原樣使用
type Statement struct {
	Account        Account
	Transactions   []Transaction
	DateFrom       time.Time
	DateTo         time.Time
	Count          int
	TotalCredits   int64
	TotalDebits    int64
	OpeningBalance int64
	ClosingBalance int64
}

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// fakeClock 可手動推進的時鐘
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingPublisher 收集發布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	svc    *usecase.LedgerService
	ledger usecase.Ledger
	clock  *fakeClock
	pub    *recordingPublisher
}

func newFixture(t *testing.T, opts ...usecase.Option) *fixture {
	t.Helper()
	ledger, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	return newFixtureWith(t, ledger, opts...)
}

func newFixtureWith(t *testing.T, ledger usecase.Ledger, opts ...usecase.Option) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger,
		clock:  &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		pub:    &recordingPublisher{},
	}
	base := []usecase.Option{
		usecase.WithLogger(zaptest.NewLogger(t)),
		usecase.WithClock(f.clock.Now),
		usecase.WithPublisher(f.pub),
	}
	f.svc = usecase.NewLedgerService(ledger, append(base, opts...)...)
	return f
}

func (f *fixture) open(t *testing.T, balance int64) domain.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(context.Background(), usecase.CreateAccountInput{
		AccountType:    "courant",
		OwnerRef:       "client-1",
		OwnerName:      "Doe",
		InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("CreateAccount err=%v", err)
	}
	return a
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	a, err := f.svc.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount(%d) err=%v", id, err)
	}
	return a.Balance
}

// assertLedgerConsistent 每個帳戶餘額 == 其交易紀錄帶號金額總和
func assertLedgerConsistent(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	accounts, err := f.svc.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range accounts {
		txs, err := f.svc.AccountTransactions(ctx, a.ID)
		if err != nil {
			t.Fatal(err)
		}
		var sum int64
		for _, tr := range txs {
			sum += tr.SignedAmount()
		}
		if sum != a.Balance {
			t.Fatalf("account %d balance=%d but log sum=%d", a.ID, a.Balance, sum)
		}
	}
}

func TestConcreteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.open(t, 1000)
	y := f.open(t, 0)

	dep, err := f.svc.Deposit(ctx, x.ID, 500, "salary")
	if err != nil {
		t.Fatal(err)
	}
	if dep.Type != domain.TransactionTypeDeposit || dep.BalanceBefore != 1000 || dep.BalanceAfter != 1500 || dep.Amount != 500 {
		t.Fatalf("deposit=%+v", dep)
	}
	if dep.FundsOrigin != "salary" || dep.AccountNumberSnapshot != x.AccountNumber || dep.OwnerNameSnapshot != "DOE" {
		t.Fatalf("deposit snapshot=%+v", dep)
	}
	if f.balance(t, x.ID) != 1500 {
		t.Fatalf("x balance=%d", f.balance(t, x.ID))
	}

	if _, err := f.svc.Withdraw(ctx, x.ID, 2000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if f.balance(t, x.ID) != 1500 {
		t.Fatalf("balance changed after rejected withdraw")
	}

	out, in, err := f.svc.Transfer(ctx, x.ID, y.ID, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if f.balance(t, x.ID) != 0 || f.balance(t, y.ID) != 1500 {
		t.Fatalf("x=%d y=%d", f.balance(t, x.ID), f.balance(t, y.ID))
	}
	if out.Type != domain.TransactionTypeTransferOut || !out.BelongsTo(x.ID) || out.Amount != 1500 {
		t.Fatalf("out=%+v", out)
	}
	if in.Type != domain.TransactionTypeTransferIn || !in.BelongsTo(y.ID) || in.Amount != 1500 {
		t.Fatalf("in=%+v", in)
	}
	if out.CounterpartyAccountNumber != y.AccountNumber || in.CounterpartyAccountNumber != x.AccountNumber {
		t.Fatalf("counterparties out=%s in=%s", out.CounterpartyAccountNumber, in.CounterpartyAccountNumber)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Fatal("transfer legs must share a timestamp")
	}
	assertLedgerConsistent(t, f)
}

func TestDepositThenWithdrawRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 250)

	dep, err := f.svc.Deposit(ctx, a.ID, 75, "gift")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := f.svc.Withdraw(ctx, a.ID, 75)
	if err != nil {
		t.Fatal(err)
	}
	if f.balance(t, a.ID) != 250 {
		t.Fatalf("balance=%d want=250", f.balance(t, a.ID))
	}
	if dep.BalanceAfter != wd.BalanceBefore {
		t.Fatalf("chain broken: after=%d before=%d", dep.BalanceAfter, wd.BalanceBefore)
	}
	if wd.Type != domain.TransactionTypeWithdrawal || wd.FundsOrigin != "" || wd.CounterpartyAccountNumber != "" {
		t.Fatalf("withdrawal=%+v", wd)
	}
	assertLedgerConsistent(t, f)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 100)
	b := f.open(t, 100)

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"deposit zero", func() error { _, err := f.svc.Deposit(ctx, a.ID, 0, "x"); return err }, domain.ErrAmountMustBePositive},
		{"deposit negative", func() error { _, err := f.svc.Deposit(ctx, a.ID, -5, "x"); return err }, domain.ErrAmountMustBePositive},
		{"deposit blank origin", func() error { _, err := f.svc.Deposit(ctx, a.ID, 10, ""); return err }, domain.ErrFundsOriginRequired},
		{"deposit whitespace origin", func() error { _, err := f.svc.Deposit(ctx, a.ID, 10, "   "); return err }, domain.ErrFundsOriginRequired},
		{"withdraw zero", func() error { _, err := f.svc.Withdraw(ctx, a.ID, 0); return err }, domain.ErrAmountMustBePositive},
		{"transfer zero", func() error { _, _, err := f.svc.Transfer(ctx, a.ID, b.ID, 0); return err }, domain.ErrAmountMustBePositive},
		{"transfer same account", func() error { _, _, err := f.svc.Transfer(ctx, a.ID, a.ID, 10); return err }, domain.ErrSameAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("%v is not a validation error", err)
			}
		})
	}
	if f.balance(t, a.ID) != 100 || f.balance(t, b.ID) != 100 {
		t.Fatal("validation failure changed a balance")
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 100)

	if _, err := f.svc.Deposit(ctx, 404, 10, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, 404, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("withdraw: %v", err)
	}
	if _, _, err := f.svc.Transfer(ctx, a.ID, 404, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("transfer dest: %v", err)
	}
	if _, _, err := f.svc.Transfer(ctx, 404, a.ID, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("transfer source: %v", err)
	}
	if f.balance(t, a.ID) != 100 {
		t.Fatal("balance changed by failed transfer")
	}
}

func TestTransferInsufficientFundsIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 50)
	b := f.open(t, 10)

	if _, _, err := f.svc.Transfer(ctx, a.ID, b.ID, 51); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if f.balance(t, a.ID) != 50 || f.balance(t, b.ID) != 10 {
		t.Fatal("partial transfer applied")
	}
	all, _ := f.svc.AllTransactions(ctx)
	for _, tr := range all {
		if tr.Type == domain.TransactionTypeTransferOut || tr.Type == domain.TransactionTypeTransferIn {
			t.Fatalf("transfer leg logged for rejected transfer: %+v", tr)
		}
	}
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lmax, err := memory.NewLMAXLedger(nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	lmax.Start(ctx)
	mutex, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}

	for name, ledger := range map[string]usecase.Ledger{"mutex": mutex, "lmax": lmax} {
		t.Run(name, func(t *testing.T) {
			f := newFixtureWith(t, ledger)
			a := f.open(t, 10000)
			b := f.open(t, 10000)

			const rounds = 200
			var wg sync.WaitGroup
			wg.Add(rounds * 2)
			for i := 0; i < rounds; i++ {
				go func() {
					defer wg.Done()
					_, _, _ = f.svc.Transfer(ctx, a.ID, b.ID, 100)
				}()
				go func() {
					defer wg.Done()
					_, _, _ = f.svc.Transfer(ctx, b.ID, a.ID, 100)
				}()
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("transfers deadlocked")
			}

			if sum := f.balance(t, a.ID) + f.balance(t, b.ID); sum != 20000 {
				t.Fatalf("sum=%d want=20000", sum)
			}
			assertLedgerConsistent(t, f)
		})
	}
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: " epargne ", OwnerRef: "c-9", OwnerName: "smith"})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccountType != "EPARGNE" || a.Balance != 0 || a.OwnerName != "SMITH" || a.OwnerRef != "c-9" {
		t.Fatalf("account=%+v", a)
	}
	if !domain.ValidAccountNumber(a.AccountNumber) {
		t.Fatalf("account number %q", a.AccountNumber)
	}
	if !a.CreatedAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created at %v", a.CreatedAt)
	}
	txs, _ := f.svc.AccountTransactions(ctx, a.ID)
	if len(txs) != 0 {
		t.Fatalf("zero-balance account has %d transactions", len(txs))
	}

	// 初始餘額記成一筆開戶存款
	b := f.open(t, 300)
	txs, _ = f.svc.AccountTransactions(ctx, b.ID)
	if len(txs) != 1 || txs[0].Type != domain.TransactionTypeDeposit || txs[0].Amount != 300 || txs[0].BalanceBefore != 0 {
		t.Fatalf("opening transactions=%+v", txs)
	}
	assertLedgerConsistent(t, f)

	_, err = f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: ""})
	if !errors.Is(err, domain.ErrAccountTypeRequired) {
		t.Fatalf("want ErrAccountTypeRequired, got %v", err)
	}
	_, err = f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: "x", InitialBalance: -1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestCreateAccountSuppliedNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: "courant", AccountNumber: "01234567890"})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccountNumber != "01234567890" {
		t.Fatalf("number=%s", a.AccountNumber)
	}
	_, err = f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: "courant", AccountNumber: "01234567890"})
	if !errors.Is(err, domain.ErrAccountNumberInUse) {
		t.Fatalf("want ErrAccountNumberInUse, got %v", err)
	}
	for _, bad := range []string{"123", "1234567890x", "123456789012"} {
		_, err = f.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: "courant", AccountNumber: bad})
		if !errors.Is(err, domain.ErrInvalidAccountNumber) {
			t.Fatalf("%q: want ErrInvalidAccountNumber, got %v", bad, err)
		}
	}
}

func TestCreateAccountRetriesOnCollision(t *testing.T) {
	seq := []string{"11111111111", "11111111111", "11111111111", "22222222222"}
	var mu sync.Mutex
	gen := func() string {
		mu.Lock()
		defer mu.Unlock()
		n := seq[0]
		if len(seq) > 1 {
			seq = seq[1:]
		}
		return n
	}
	f := newFixture(t, usecase.WithAccountNumberGenerator(gen))
	ctx := context.Background()

	first := f.open(t, 0)
	second := f.open(t, 0)
	if first.AccountNumber != "11111111111" || second.AccountNumber != "22222222222" {
		t.Fatalf("numbers=%s,%s", first.AccountNumber, second.AccountNumber)
	}

	// 產生器只會給重複的號碼時，重試用盡後回報可重試的衝突
	stuck := newFixture(t,
		usecase.WithAccountNumberGenerator(func() string { return "33333333333" }),
		usecase.WithConfig(usecase.Config{MaxRetries: 1, AccountNumberAttempts: 3}),
	)
	stuck.open(t, 0)
	_, err := stuck.svc.CreateAccount(ctx, usecase.CreateAccountInput{AccountType: "courant"})
	if !errors.Is(err, domain.ErrConcurrencyConflict) || !domain.IsRetryable(err) {
		t.Fatalf("want retryable conflict, got %v", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 40)

	typ, name := "epargne", "new owner"
	got, err := f.svc.UpdateAccount(ctx, a.ID, usecase.UpdateAccountInput{AccountType: &typ, OwnerName: &name})
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountType != "EPARGNE" || got.OwnerName != "NEW OWNER" || got.Balance != 40 || got.OwnerRef != a.OwnerRef {
		t.Fatalf("updated=%+v", got)
	}

	// 歷史快照不受影響
	txs, _ := f.svc.AccountTransactions(ctx, a.ID)
	if txs[0].OwnerNameSnapshot != "DOE" {
		t.Fatalf("snapshot rewritten: %s", txs[0].OwnerNameSnapshot)
	}

	blank := " "
	if _, err := f.svc.UpdateAccount(ctx, a.ID, usecase.UpdateAccountInput{AccountType: &blank}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if _, err := f.svc.UpdateAccount(ctx, 404, usecase.UpdateAccountInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 100)
	b := f.open(t, 0)
	if _, _, err := f.svc.Transfer(ctx, a.ID, b.ID, 60); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetAccount(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	// 再刪一次是 no-op
	if err := f.svc.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("second delete err=%v", err)
	}

	all, _ := f.svc.AllTransactions(ctx)
	if len(all) != 3 {
		t.Fatalf("log len=%d want=3 (history kept)", len(all))
	}
	unlinked := 0
	for _, tr := range all {
		if tr.AccountID == nil {
			unlinked++
			if tr.AccountNumberSnapshot != a.AccountNumber {
				t.Fatalf("unlinked entry lost its snapshot: %+v", tr)
			}
		}
	}
	if unlinked != 2 {
		t.Fatalf("unlinked=%d want=2", unlinked)
	}
	assertLedgerConsistent(t, f)

	deleted := 0
	for _, typ := range f.pub.types() {
		if typ == domain.EventAccountDeleted {
			deleted++
		}
	}
	if deleted != 1 {
		t.Fatalf("account.deleted events=%d want=1", deleted)
	}
}

// flakyLedger 前 n 次 Atomic 回傳衝突
type flakyLedger struct {
	usecase.Ledger
	mu       sync.Mutex
	failures int
	calls    int
}

func (l *flakyLedger) Atomic(ctx context.Context, ids []int64, fn usecase.WorkFunc) error {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.failures
	l.mu.Unlock()
	if fail {
		return fmt.Errorf("deadlock detected: %w", domain.ErrConcurrencyConflict)
	}
	return l.Ledger.Atomic(ctx, ids, fn)
}

func TestRetryOnConflict(t *testing.T) {
	inner, _ := memory.NewMutexLedger(nil)
	setup := newFixtureWith(t, inner)
	a := setup.open(t, 0)

	flaky := &flakyLedger{Ledger: inner, failures: 2}
	f := newFixtureWith(t, flaky, usecase.WithConfig(usecase.Config{MaxRetries: 3, RetryBackoff: time.Millisecond, AccountNumberAttempts: 1}))
	if _, err := f.svc.Deposit(context.Background(), a.ID, 5, "cash"); err != nil {
		t.Fatalf("deposit after retries err=%v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("calls=%d want=3", flaky.calls)
	}

	exhausted := &flakyLedger{Ledger: inner, failures: 100}
	f = newFixtureWith(t, exhausted, usecase.WithConfig(usecase.Config{MaxRetries: 2, RetryBackoff: time.Millisecond, AccountNumberAttempts: 1}))
	_, err := f.svc.Deposit(context.Background(), a.ID, 5, "cash")
	if !domain.IsRetryable(err) {
		t.Fatalf("want retryable conflict, got %v", err)
	}
	if exhausted.calls != 3 {
		t.Fatalf("calls=%d want=3", exhausted.calls)
	}
	if setup.balance(t, a.ID) != 5 {
		t.Fatalf("balance=%d want=5", setup.balance(t, a.ID))
	}
}

func TestBusinessRejectionsAreNotRetried(t *testing.T) {
	inner, _ := memory.NewMutexLedger(nil)
	counting := &flakyLedger{Ledger: inner}
	f := newFixtureWith(t, counting)
	a := f.open(t, 1)
	before := counting.calls

	if _, err := f.svc.Withdraw(context.Background(), a.ID, 2); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatal(err)
	}
	if counting.calls-before != 1 {
		t.Fatalf("insufficient funds retried: calls=%d", counting.calls-before)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, 0)
	b := f.open(t, 0)
	f.pub.err = errors.New("redis down")

	if _, err := f.svc.Deposit(ctx, a.ID, 10, "cash"); err != nil {
		t.Fatalf("publish failure must not fail the deposit: %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, a.ID, 100); err == nil {
		t.Fatal("expected rejection")
	}
	if _, _, err := f.svc.Transfer(ctx, a.ID, b.ID, 10); err != nil {
		t.Fatal(err)
	}

	want := []string{domain.EventAccountCreated, domain.EventAccountCreated, domain.EventDeposit, domain.EventTransfer}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("events=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v want=%v", got, want)
		}
	}
}

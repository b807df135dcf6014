package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcpkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/ledgerrpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// 壓測：開 N 個帳戶後以隨機方向互相轉帳，最後檢查總額守恆
func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	accounts := flag.Int("accounts", 10, "number of accounts to open")
	initial := flag.Int64("initial", 1_000_000, "opening balance per account")
	total := flag.Int("count", 100_000, "number of transfers")
	concurrency := flag.Int("concurrency", 200, "concurrent requests")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	pool := grpcpkg.NewPool(
		grpcpkg.WithInterceptor(grpcpkg.UnaryClientLogging(log)),
		grpcpkg.WithCallOptions(grpc.WaitForReady(true)),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatal("did not connect", zap.Error(err))
	}
	c := ledgerrpc.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ids := make([]int64, 0, *accounts)
	for i := 0; i < *accounts; i++ {
		a, err := c.CreateAccount(ctx, &ledgerrpc.CreateAccountRequest{
			AccountType:    "LOADTEST",
			OwnerName:      fmt.Sprintf("load-%d", i),
			InitialBalance: *initial,
		})
		if err != nil {
			log.Fatal("create account failed", zap.Error(err))
		}
		ids = append(ids, a.ID)
	}
	if len(ids) < 2 {
		log.Fatal("need at least two accounts")
	}

	var ok, rejected, failed atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)
	start := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			src := ids[rand.IntN(len(ids))]
			dst := ids[rand.IntN(len(ids))]
			for dst == src {
				dst = ids[rand.IntN(len(ids))]
			}
			_, err := c.Transfer(ctx, &ledgerrpc.TransferRequest{
				SourceID:      src,
				DestinationID: dst,
				Amount:        rand.Int64N(1000) + 1,
			})
			switch status.Code(err) {
			case codes.OK:
				ok.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%10000 == 0 {
					log.Warn("transfer failed", zap.Int("idx", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 檢查總額守恆
	var sum int64
	for _, id := range ids {
		a, err := c.GetAccount(ctx, &ledgerrpc.AccountRequest{ID: id})
		if err != nil {
			log.Fatal("get account failed", zap.Int64("id", id), zap.Error(err))
		}
		sum += a.Balance
	}
	want := *initial * int64(len(ids))

	log.Info("load test finished",
		zap.Int("requests", *total),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(*total)/elapsed.Seconds()),
		zap.Int64("ok", ok.Load()),
		zap.Int64("insufficient_funds", rejected.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("sum", sum),
		zap.Bool("conserved", sum == want),
	)
	if sum != want {
		os.Exit(2)
	}
}

package redispub

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, "", 0, nil)
	if p.Channel() != DefaultChannel {
		t.Fatalf("channel=%s", p.Channel())
	}
	if p.logger == nil {
		t.Fatal("logger must default to nop")
	}
}

func TestPublishUnreachable(t *testing.T) {
	// 沒有服務在監聽的埠，發布失敗要回傳錯誤而不是卡住
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := NewPublisher(rdb, "test_events", time.Second, zaptest.NewLogger(t))
	err := p.Publish(context.Background(), domain.LedgerEvent{
		EventType: domain.EventDeposit,
		AccountID: 1,
		Amount:    10,
		Timestamp: time.Now(),
	})
	if err == nil {
		t.Fatal("expected publish error")
	}
}

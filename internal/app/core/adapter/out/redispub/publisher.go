package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// DefaultChannel 預設的事件頻道
const DefaultChannel = "ledger_events"

// Config 定義 Redis 事件發布的配置
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Channel  string        `yaml:"channel"`
	Timeout  time.Duration `yaml:"timeout"` // 單次發布的逾時
}

// NewClient 依配置建立 redis.Client
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Publisher 把 LedgerEvent 以 JSON 發布到 Redis Pub/Sub 頻道
type Publisher struct {
	rdb     *redis.Client
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublisher 建立 Publisher
//
// 參數:
//
//	rdb: Redis 客戶端
//	channel: 頻道名稱 (空字串使用 DefaultChannel)
//	timeout: 單次發布逾時 (0 表示只看呼叫端的 ctx)
//	logger: logger
func NewPublisher(rdb *redis.Client, channel string, timeout time.Duration, logger *zap.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		timeout: timeout,
		logger:  logger,
	}
}

// Publish 發布一個事件
func (p *Publisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	receivers, err := p.rdb.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}

	p.logger.Debug("ledger event published",
		zap.String("channel", p.channel),
		zap.String("event_type", event.EventType),
		zap.Int64("account_id", event.AccountID),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// Channel 使用中的頻道名稱
func (p *Publisher) Channel() string {
	return p.channel
}

var _ usecase.EventPublisher = (*Publisher)(nil)

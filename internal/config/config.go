package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/redispub"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// 帳本實作
const (
	BackendMutex = "mutex" // 記憶體 + 帳戶鎖
	BackendLMAX  = "lmax"  // 記憶體 + 單一寫入者
	BackendSQL   = "sql"   // MySQL / PostgreSQL
)

// envPrefix 環境變數覆寫的前綴
const envPrefix = "LEDGER_"

// Config 服務的完整配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Database  database.Config `yaml:"database"`
	WAL       WALConfig       `yaml:"wal"`
	Redis     redispub.Config `yaml:"redis"`
	Log       logger.Config   `yaml:"log"`
	Statement StatementConfig `yaml:"statement"`
}

// ServerConfig gRPC 服務配置
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Reflection      bool          `yaml:"reflection"`
}

// LedgerConfig 帳本實作與業務參數
type LedgerConfig struct {
	Backend        string `yaml:"backend"`
	LMAXBufferSize int    `yaml:"lmax_buffer_size"`

	usecase.Config `yaml:",inline"`
}

// WALConfig 記憶體帳本的 Write-Ahead Log
type WALConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// StatementConfig 對帳單配置
type StatementConfig struct {
	ClosingPolicy domain.ClosingBalancePolicy `yaml:"closing_policy"`
}

// Default 預設配置
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":50051",
			ShutdownTimeout: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:        BackendMutex,
			LMAXBufferSize: 1000,
			Config:         usecase.DefaultConfig(),
		},
		Database: database.Config{Driver: database.DriverMySQL},
		WAL: WALConfig{
			Enabled: true,
			Path:    "wal.log",
		},
		Redis: redispub.Config{
			Addr:    "localhost:6379",
			Channel: redispub.DefaultChannel,
			Timeout: time.Second,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "json",
		},
		Statement: StatementConfig{
			ClosingPolicy: domain.ClosingAtPeriodEnd,
		},
	}
}

// Load 載入配置
// 順序: 預設值 -> yaml 檔 -> .env -> LEDGER_* 環境變數
//
// 參數:
//
//	path: yaml 檔路徑 (空字串表示不讀檔)
//	envFile: .env 路徑 (空字串或檔案不存在時略過)
//
// 回傳:
//
//	Config: 配置
//	error: 讀檔、解析或檢查失敗
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envFile != "" {
		// 不覆蓋已存在的環境變數
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv 以 LEDGER_* 環境變數覆寫
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SERVER_ADDR":    &cfg.Server.Addr,
		"BACKEND":        &cfg.Ledger.Backend,
		"DB_DRIVER":      &cfg.Database.Driver,
		"DB_HOST":        &cfg.Database.Host,
		"DB_USER":        &cfg.Database.User,
		"DB_PASSWORD":    &cfg.Database.Password,
		"DB_NAME":        &cfg.Database.DBName,
		"DB_SSLMODE":     &cfg.Database.SSLMode,
		"WAL_PATH":       &cfg.WAL.Path,
		"REDIS_ADDR":     &cfg.Redis.Addr,
		"REDIS_PASSWORD": &cfg.Redis.Password,
		"REDIS_CHANNEL":  &cfg.Redis.Channel,
		"LOG_LEVEL":      &cfg.Log.Level,
		"LOG_FORMAT":     &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DB_PORT":     &cfg.Database.Port,
		"REDIS_DB":    &cfg.Redis.DB,
		"MAX_RETRIES": &cfg.Ledger.MaxRetries,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"WAL_ENABLED":   &cfg.WAL.Enabled,
		"REDIS_ENABLED": &cfg.Redis.Enabled,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("env %s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "STATEMENT_CLOSING_POLICY"); ok {
		cfg.Statement.ClosingPolicy = domain.ClosingBalancePolicy(v)
	}
	return nil
}

// fillDefaults 補全 yaml 沒寫的欄位
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = def.Ledger.Backend
	}
	if c.Ledger.LMAXBufferSize <= 0 {
		c.Ledger.LMAXBufferSize = def.Ledger.LMAXBufferSize
	}
	if c.Ledger.AccountNumberAttempts <= 0 {
		c.Ledger.AccountNumberAttempts = def.Ledger.AccountNumberAttempts
	}
	c.Database = c.Database.WithDefaults()
	if c.WAL.Path == "" {
		c.WAL.Path = def.WAL.Path
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = def.Redis.Channel
	}
	if c.Statement.ClosingPolicy == "" {
		c.Statement.ClosingPolicy = def.Statement.ClosingPolicy
	}
}

// Validate 檢查配置
func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendMutex, BackendLMAX, BackendSQL:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries must be >= 0, got %d", c.Ledger.MaxRetries)
	}
	switch c.Statement.ClosingPolicy {
	case domain.ClosingAtPeriodEnd, domain.ClosingAtCurrent:
	default:
		return fmt.Errorf("unknown statement closing policy %q", c.Statement.ClosingPolicy)
	}
	if c.Ledger.Backend == BackendSQL {
		if _, err := c.Database.DSN(); err != nil {
			return err
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

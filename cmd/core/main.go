package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/gormsql"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/redispub"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	grpcpkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/ledgerrpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	envFile := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("ledger stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳本 (依配置選擇實作)
	// LMAX 的核心引擎用獨立的 context，等 gRPC 停止收請求後才停
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	ledger, cleanup, err := newLedger(engineCtx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		stopEngine()
		cleanup()
	}()

	// 3. 事件發布
	var publisher usecase.EventPublisher = usecase.NopPublisher{}
	if cfg.Redis.Enabled {
		rdb := redispub.NewClient(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, events will be dropped until it recovers", zap.Error(err))
		}
		publisher = redispub.NewPublisher(rdb, cfg.Redis.Channel, cfg.Redis.Timeout, log.Named("events"))
		log.Info("publishing ledger events", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
	}

	// 4. 初始化 UseCase
	ledgerService := usecase.NewLedgerService(ledger,
		usecase.WithConfig(cfg.Ledger.Config),
		usecase.WithLogger(log.Named("ledger")),
		usecase.WithPublisher(publisher),
	)
	statements := usecase.NewStatementAggregator(ledger, cfg.Statement.ClosingPolicy, log.Named("statement"))

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcpkg.UnaryServerRecovery(log),
		grpcpkg.UnaryServerLogging(log.Named("rpc")),
	))
	ledgerrpc.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(ledgerService, statements, log.Named("rpc")))
	if cfg.Server.Reflection {
		reflection.Register(s)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting gRPC server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Ledger.Backend),
			zap.String("closing_policy", string(cfg.Statement.ClosingPolicy)),
		)
		serveErr <- s.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	// Graceful Shutdown
	log.Info("shutting down server")
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("graceful stop timed out, forcing")
		s.Stop()
	}
	stopEngine()
	log.Info("server exited")
	return nil
}

// newLedger 依配置建立帳本，回傳的 cleanup 負責釋放底層資源
func newLedger(ctx context.Context, cfg config.Config, log *zap.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendSQL:
		client, err := database.NewClient(cfg.Database, log.Named("database"))
		if err != nil {
			return nil, nil, err
		}
		l := gormsql.NewLedger(client.DB(), log.Named("sql"))
		if err := l.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return l, func() { _ = client.Close() }, nil

	case config.BackendMutex, config.BackendLMAX:
		var w *wal.WAL
		if cfg.WAL.Enabled {
			var err error
			if w, err = wal.NewWAL(cfg.WAL.Path); err != nil {
				return nil, nil, fmt.Errorf("init wal: %w", err)
			}
		}
		recovered := func() int {
			if w == nil {
				return 0
			}
			return w.Records()
		}
		closeWAL := func() {
			if w != nil {
				_ = w.Close()
			}
		}

		if cfg.Ledger.Backend == config.BackendMutex {
			l, err := memory_adapter.NewMutexLedger(w)
			if err != nil {
				closeWAL()
				return nil, nil, err
			}
			log.Info("mutex ledger ready", zap.Bool("wal", w != nil), zap.Int("recovered_batches", recovered()))
			return l, closeWAL, nil
		}

		l, err := memory_adapter.NewLMAXLedger(w, cfg.Ledger.LMAXBufferSize)
		if err != nil {
			closeWAL()
			return nil, nil, err
		}
		l.Start(ctx)
		log.Info("lmax ledger ready",
			zap.Bool("wal", w != nil),
			zap.Int("recovered_batches", recovered()),
			zap.Int("buffer", cfg.Ledger.LMAXBufferSize),
		)
		// 等核心引擎處理完剩餘請求後才關閉 WAL
		return l, func() {
			<-l.Done()
			closeWAL()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

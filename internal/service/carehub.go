package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-carehub/common/database"
	rediscommon "wisefido-carehub/common/redis"
	"wisefido-carehub/internal/clock"
	"wisefido-carehub/internal/config"
	"wisefido-carehub/internal/eventlog"
	httpapi "wisefido-carehub/internal/http"
	"wisefido-carehub/internal/metrics"
	"wisefido-carehub/internal/notifier"
	"wisefido-carehub/internal/repository"
	"wisefido-carehub/internal/scheduler"
	"wisefido-carehub/internal/session"
	"wisefido-carehub/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// shutdownTimeout 停止时等待 HTTP 请求和未完成发送的时间
const shutdownTimeout = 10 * time.Second

// CareHubService 看护服务（整合各层）
type CareHubService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	metrics    *metrics.Collector
	dispatcher *notifier.Dispatcher
	manager    *session.Manager
	router     *httpapi.Router
	server     *Server
}

// NewCareHubService 创建看护服务
func NewCareHubService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*CareHubService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// 1. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		redisClient.Close()
		return nil, err
	}

	m := metrics.NewCollector("carehub")

	// 2. 创建 Repository 层
	kv := store.NewRedisKV(redisClient)
	userRepo := repository.NewUserRepository(kv, logger)
	reminderRepo := repository.NewReminderRepository(kv, logger)
	eventRepo := repository.NewEventRepository(kv)

	// 3. 事件镜像：报警流 + 归档库（可选）
	var sinks []eventlog.Sink
	if cfg.AlertStream != "" {
		sinks = append(sinks, eventlog.NewStreamSink(redisClient, cfg.AlertStream))
	}

	var db *sql.DB
	var archive httpapi.AlertArchive
	if cfg.DBEnabled {
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			redisClient.Close()
			return nil, err
		}
		archiveRepo := repository.NewAlertArchiveRepository(db, logger)
		sinks = append(sinks, archiveRepo)
		archive = archiveRepo
	}

	// 4. 通知通道
	if !cfg.Telemetry.MQTT.HasCredentials() {
		logger.Warn("Adafruit IO credentials missing, telemetry sends will be skipped")
	}
	if cfg.Telegram.BotToken == "" {
		logger.Warn("Telegram bot token missing, emergency messages will be skipped")
	}
	telemetry := notifier.NewMQTTTelemetry(cfg.Telemetry.MQTT, nil, cfg.Telemetry.TeardownDelay, logger)
	messenger := notifier.NewTelegramMessenger(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.Timeout, logger)
	dispatcher := notifier.NewDispatcher(telemetry, messenger, cfg.Telegram.Timeout, logger, m)

	// 5. 会话管理
	manager := session.NewManager(
		userRepo,
		reminderRepo,
		eventRepo,
		dispatcher,
		clock.NewSystemClock(loc),
		session.Config{
			Scheduler: scheduler.Config{
				PollInterval: cfg.Scheduler.PollInterval,
				ClearDelay:   cfg.Scheduler.ClearDelay,
				Feed:         cfg.Telemetry.MedsFeed,
				Location:     loc,
			},
			FallFeed: cfg.Telemetry.FallFeed,
		},
		logger,
		m,
		sinks...,
	)

	// 6. HTTP
	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterMetricsRoutes(m.Handler())
	router.RegisterCareHubRoutes(httpapi.NewCareHubHandler(manager, archive, logger))

	return &CareHubService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		metrics:     m,
		dispatcher:  dispatcher,
		manager:     manager,
		router:      router,
		server:      NewServer(cfg.HTTP.Addr, router, logger),
	}, nil
}

// Handler HTTP 处理器
func (s *CareHubService) Handler() http.Handler {
	return s.router
}

// Start 恢复会话并启动 HTTP 服务，阻塞直到 ctx 结束或服务出错
func (s *CareHubService) Start(ctx context.Context) error {
	s.logger.Info("Starting carehub service",
		zap.Bool("archive_enabled", s.db != nil),
		zap.String("alert_stream", s.config.AlertStream),
	)

	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// Stop 停止服务
func (s *CareHubService) Stop() error {
	s.logger.Info("Stopping carehub service")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop http server", zap.Error(err))
	}

	s.manager.Shutdown()

	// 等待已派发的通知（含延迟复位信号）
	if err := s.dispatcher.Flush(ctx); err != nil {
		s.logger.Warn("Pending notifications dropped on shutdown", zap.Error(err))
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}

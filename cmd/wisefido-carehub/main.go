package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-carehub/common/logger"
	"wisefido-carehub/internal/config"
	"wisefido-carehub/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-carehub")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}

	// 3. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, log, sigChan); err != nil {
		log.Error("Carehub service failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}

	log.Info("Carehub service stopped")
	log.Sync()
}

// run 创建并运行服务，直到收到信号或服务出错
func run(cfg *config.Config, log *zap.Logger, sigChan <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	careHub, err := service.NewCareHubService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create carehub service: %w", err)
	}
	defer careHub.Stop()

	serviceErrChan := make(chan error, 1)
	go func() {
		if err := careHub.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		return nil
	case err := <-serviceErrChan:
		return err
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-emergency/internal/common/logger"
	"wisefido-emergency/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载 .env（可选）
	_ = godotenv.Load()

	// 2. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 3. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-emergency",
		logger.WithFile(logger.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		}),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 4. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. 组装服务
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create emergency service", zap.Error(err))
	}
	defer a.Stop()

	// 6. 启动后台任务
	errChan := make(chan error, 1)
	go func() {
		if err := a.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// 7. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
		cancel()
	}

	log.Info("Emergency service stopped")
}

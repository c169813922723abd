package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	cfg "github.com/wpliao1997/estimation-validator/config"
	"github.com/wpliao1997/estimation-validator/internal/service/estimation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
	"github.com/wpliao1997/estimation-validator/pkg/queue"
	"github.com/wpliao1997/estimation-validator/pkg/worker"
)

func main() {
	// 初始化日誌
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 建立估驗服務
	svc, err := estimation.GetService(ctx, log)
	if err != nil {
		log.Error("Failed to create estimation service", logger.Error(err))
		os.Exit(1)
	}

	// 建立 worker 配置
	env := cfg.GetQueueConfig()
	workerCfg := &worker.Config{
		RedisAddr:   env.RedisAddr,
		RedisDB:     env.RedisDB,
		Concurrency: env.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	// 建立 worker
	estimationWorker, err := worker.NewEstimationWorker(workerCfg, svc, log)
	if err != nil {
		log.Error("Failed to create estimation worker", logger.Error(err))
		os.Exit(1)
	}

	// 啟動 worker
	if err := estimationWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 定期排入清理任務,移除保存期限已過的上傳檔與報告
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: env.RedisAddr, DB: env.RedisDB},
		nil,
	)
	if _, err := scheduler.Register("@every 6h", asynq.NewTask(queue.TaskTypeCleanup, nil), asynq.Queue("low")); err != nil {
		log.Error("Failed to register cleanup schedule", logger.Error(err))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		log.Error("Failed to start scheduler", logger.Error(err))
		os.Exit(1)
	}

	// 等待中斷訊號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 優雅關閉
	log.Info("Shutting down worker...")
	scheduler.Shutdown()
	estimationWorker.Stop()
	log.Info("Worker stopped")
}

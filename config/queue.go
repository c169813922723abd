package config

import (
	"sync"
)

var (
	queueOnce   sync.Once
	queueConfig *QueueConfig
)

type QueueConfig struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
	MaxRetries  int
}

func GetQueueConfig() *QueueConfig {
	queueOnce.Do(func() {
		loadEnv()

		queueConfig = &QueueConfig{
			RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:     getEnvInt("REDIS_DB", 0),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 5),
			MaxRetries:  getEnvInt("TASK_MAX_RETRIES", 3),
		}
	})
	return queueConfig
}

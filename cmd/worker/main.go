package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/filesmanager/internal/config"
	"github.com/maneesh/filesmanager/internal/files"
	"github.com/maneesh/filesmanager/internal/logging"
	"github.com/maneesh/filesmanager/internal/queue"
	"github.com/maneesh/filesmanager/internal/storage"
	"github.com/maneesh/filesmanager/internal/thumbnail"
	"github.com/maneesh/filesmanager/internal/tracing"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("Failed to load config")
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		if workerID, err = os.Hostname(); err != nil {
			workerID = "worker"
		}
	}

	var log logrus.FieldLogger = logging.New(cfg.LogLevel, cfg.LogFormat).WithField("worker_id", workerID)
	log.Info("Starting thumbnail worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName+"-worker", cfg.JaegerEndpoint, cfg.TracingEnabled, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.WithError(err).Error("Error shutting down tracer")
		}
	}()

	metadata, err := storage.OpenMetadataStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize metadata store")
	}
	defer metadata.Close()

	redisClient, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	content, err := storage.OpenContentStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize content store")
	}

	jobs := queue.New(redisClient.Client(), cfg.QueueName)
	processor := thumbnail.NewProcessor(files.NewCachedRepository(metadata, redisClient, log), content, log)

	scheduler := queue.NewScheduler(jobs, cfg.RetrySchedule, log)
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start retry scheduler")
	}
	defer scheduler.Stop()

	consumer := jobs.NewConsumer(queue.Options{
		WorkerID:       workerID,
		Concurrency:    cfg.WorkerConcurrency,
		MaxAttempts:    cfg.JobMaxAttempts,
		BackoffInitial: cfg.JobBackoffInitial,
		BackoffMax:     cfg.JobBackoffMax,
	}, log)

	log.WithField("queue", cfg.QueueName).Info("Consuming thumbnail jobs")
	if err := consumer.Run(ctx, processor.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Worker stopped")
		return
	}
	log.Info("Worker exited")
}

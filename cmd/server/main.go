package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/filesmanager/internal/access"
	"github.com/maneesh/filesmanager/internal/config"
	"github.com/maneesh/filesmanager/internal/files"
	"github.com/maneesh/filesmanager/internal/handlers"
	"github.com/maneesh/filesmanager/internal/logging"
	"github.com/maneesh/filesmanager/internal/queue"
	"github.com/maneesh/filesmanager/internal/session"
	"github.com/maneesh/filesmanager/internal/storage"
	"github.com/maneesh/filesmanager/internal/tracing"
	"github.com/maneesh/filesmanager/internal/users"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("Failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.WithFields(logrus.Fields{
		"service": cfg.ServiceName,
		"port":    cfg.ServicePort,
	}).Info("Starting files manager API...")

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint, cfg.TracingEnabled, log)
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

	// Metadata store (TiDB or MongoDB)
	metadata, err := storage.OpenMetadataStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize metadata store")
	}
	defer metadata.Close()
	log.Info("Metadata store initialized")

	// Redis: sessions, metadata cache and the job queue
	log.WithField("addr", cfg.GetRedisAddr()).Info("Connecting to Redis...")
	redisClient, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize Redis client")
	}
	defer redisClient.Close()
	log.Info("Redis client initialized")

	// Content store (MinIO, S3 or local folder)
	content, err := storage.OpenContentStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize content store")
	}
	log.WithField("type", cfg.StorageType).Info("Content store initialized")

	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	fileRepo := files.NewCachedRepository(metadata, redisClient, log)
	authz := access.NewAuthorizer(sessions, fileRepo, log)
	jobs := queue.New(redisClient.Client(), cfg.QueueName)
	manager := files.NewManager(fileRepo, content, jobs, authz, log)
	userService := users.NewService(metadata, sessions, users.NewBcryptHasher(0), log)

	// Initialize handlers
	router := handlers.NewRouter(handlers.Routes{
		App:   handlers.NewAppHandler(redisClient, metadata, metadata, jobs, log),
		Users: handlers.NewUserHandler(userService, log),
		Files: handlers.NewFileHandler(authz, manager, log),
		Write: handlers.NewWriteHandler(authz, manager, log),
		Read:  handlers.NewReadHandler(manager, log),
	}, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("port", cfg.ServicePort).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

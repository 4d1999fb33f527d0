package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ServiceName string
	LogLevel    string
	LogFormat   string

	// Metadata store: "mysql" or "mongo"
	MetadataDriver string

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// MongoDB configuration
	MongoHost     string
	MongoPort     string
	MongoDatabase string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Content store: "minio", "s3" or "fs"
	StorageType string

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// S3 configuration
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3BaseEndpoint string

	// Local filesystem configuration
	FolderPath string

	// Sessions
	SessionTTL time.Duration

	// Thumbnail worker
	QueueName         string
	WorkerID          string
	WorkerConcurrency int
	JobMaxAttempts    int
	JobBackoffInitial time.Duration
	JobBackoffMax     time.Duration
	RetrySchedule     string

	// Jaeger configuration
	TracingEnabled bool
	JaegerEndpoint string
}

var defaults = map[string]any{
	"service_port": "5000",
	"service_name": "files-manager",
	"log_level":    "info",
	"log_format":   "text",

	"metadata_driver": "mysql",

	"tidb_host":     "localhost",
	"tidb_port":     "4000",
	"tidb_user":     "root",
	"tidb_password": "",
	"tidb_database": "files_manager",

	"db_host":     "localhost",
	"db_port":     "27017",
	"db_database": "files_manager",

	"redis_host":     "localhost",
	"redis_port":     "6379",
	"redis_password": "",
	"redis_db":       0,

	"storage_type": "minio",

	"minio_endpoint":    "localhost:9000",
	"minio_access_key":  "minioadmin",
	"minio_secret_key":  "minioadmin",
	"minio_bucket_name": "files-manager",
	"minio_use_ssl":     false,

	"s3_region":        "us-east-1",
	"s3_access_key":    "",
	"s3_secret_key":    "",
	"s3_bucket":        "files-manager",
	"s3_base_endpoint": "",

	"folder_path": "/tmp/files_manager",

	"session_ttl": 24 * time.Hour,

	"queue_name":          "fileQueue",
	"worker_id":           "",
	"worker_concurrency":  1,
	"job_max_attempts":    5,
	"job_backoff_initial": 2 * time.Second,
	"job_backoff_max":     time.Minute,
	"retry_schedule":      "@every 1s",

	"tracing_enabled": false,
	"jaeger_endpoint": "localhost:4318",
}

// LoadConfig loads configuration from environment variables, an optional
// config file named by CONFIG_FILE, and defaults
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, err
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		ServicePort: v.GetString("service_port"),
		ServiceName: v.GetString("service_name"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),

		MetadataDriver: v.GetString("metadata_driver"),

		TiDBHost:     v.GetString("tidb_host"),
		TiDBPort:     v.GetString("tidb_port"),
		TiDBUser:     v.GetString("tidb_user"),
		TiDBPassword: v.GetString("tidb_password"),
		TiDBDatabase: v.GetString("tidb_database"),

		MongoHost:     v.GetString("db_host"),
		MongoPort:     v.GetString("db_port"),
		MongoDatabase: v.GetString("db_database"),

		RedisHost:     v.GetString("redis_host"),
		RedisPort:     v.GetString("redis_port"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		StorageType: v.GetString("storage_type"),

		MinIOEndpoint:   v.GetString("minio_endpoint"),
		MinIOAccessKey:  v.GetString("minio_access_key"),
		MinIOSecretKey:  v.GetString("minio_secret_key"),
		MinIOBucketName: v.GetString("minio_bucket_name"),
		MinIOUseSSL:     v.GetBool("minio_use_ssl"),

		S3Region:       v.GetString("s3_region"),
		S3AccessKey:    v.GetString("s3_access_key"),
		S3SecretKey:    v.GetString("s3_secret_key"),
		S3Bucket:       v.GetString("s3_bucket"),
		S3BaseEndpoint: v.GetString("s3_base_endpoint"),

		FolderPath: v.GetString("folder_path"),

		SessionTTL: v.GetDuration("session_ttl"),

		QueueName:         v.GetString("queue_name"),
		WorkerID:          v.GetString("worker_id"),
		WorkerConcurrency: v.GetInt("worker_concurrency"),
		JobMaxAttempts:    v.GetInt("job_max_attempts"),
		JobBackoffInitial: v.GetDuration("job_backoff_initial"),
		JobBackoffMax:     v.GetDuration("job_backoff_max"),
		RetrySchedule:     v.GetString("retry_schedule"),

		TracingEnabled: v.GetBool("tracing_enabled"),
		JaegerEndpoint: v.GetString("jaeger_endpoint"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch c.MetadataDriver {
	case "mysql", "mongo":
	default:
		return fmt.Errorf("unsupported metadata driver: %q", c.MetadataDriver)
	}
	switch c.StorageType {
	case "minio", "s3", "fs":
	default:
		return fmt.Errorf("unsupported storage type: %q", c.StorageType)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.WorkerConcurrency < 1 {
		return errors.New("worker concurrency must be at least 1")
	}
	if c.JobMaxAttempts < 1 {
		return errors.New("job max attempts must be at least 1")
	}
	return nil
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetMongoURI returns the MongoDB connection string
func (c *Config) GetMongoURI() string {
	return fmt.Sprintf("mongodb://%s:%s", c.MongoHost, c.MongoPort)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

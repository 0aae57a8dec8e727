// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/lock"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern"`
	Port                          int      `env:"PORT" env-default:"3010"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Project used when a request or command names none.
	Project string `env:"PROJECT" env-default:"default"`

	// Database (postgres or sqlite)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	SQLitePath                    string        `env:"SQLITE_PATH" env-default:"fern.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Graph Database (neo4j / memgraph, bolt protocol)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:""`

	// Auth
	AuthEnabled bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthSecret  string `env:"AUTH_JWT_SECRET" env-default:""`
	AuthIssuer  string `env:"AUTH_JWT_ISSUER" env-default:""`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic    string   `env:"KAFKA_INPUT_TOPIC" env-default:"fern-records"`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-ingest"`
	KafkaOutputTopic   string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"fern-composites"`
	KafkaBatchSize     int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout  int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks  int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression   string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	KafkaPublish       bool     `env:"KAFKA_PUBLISH_ON_CANONICALIZE" env-default:"false"`

	// Redis phase lock; an in-process lock is used when RedisHost is empty.
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	LockTTL       time.Duration `env:"LOCK_TTL" env-default:"5m"`
	LockWait      time.Duration `env:"LOCK_WAIT" env-default:"2s"`

	// Export
	ExportS3Bucket   string `env:"EXPORT_S3_BUCKET" env-default:""`
	ExportS3Prefix   string `env:"EXPORT_S3_PREFIX" env-default:"fern/"`
	ExportS3Region   string `env:"EXPORT_S3_REGION" env-default:""`
	ExportS3Endpoint string `env:"EXPORT_S3_ENDPOINT" env-default:""`

	// Tracing
	TracingExporter     string `env:"TRACING_EXPORTER" env-default:"none"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingOTLPInsecure bool   `env:"TRACING_OTLP_INSECURE" env-default:"true"`

	// Matching
	ScoringProfilePath string `env:"SCORING_PROFILE_PATH" env-default:""`
	MatchWorkerCount   int    `env:"MATCH_WORKER_COUNT" env-default:"4"`
	MatchBatchSize     int    `env:"MATCH_BATCH_SIZE" env-default:"500"`
	MatchMode          string `env:"MATCH_MODE" env-default:"exhaustive"`
	MatchCountryFilter bool   `env:"MATCH_COUNTRY_FILTER" env-default:"false"`
	MatchMaxPostings   int    `env:"MATCH_MAX_POSTINGS" env-default:"0"`
}

// Load reads an optional .env file at envFile, then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", database.DriverPostgres, database.DriverSQLite, c.DatabaseDriver)
	}
	if _, err := matching.ParseMode(c.MatchMode); err != nil {
		return err
	}
	if c.AuthEnabled && c.AuthSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required when AUTH_ENABLED is set")
	}
	if c.Project == "" {
		return errors.New("PROJECT must not be empty")
	}
	return nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		SQLitePath:      c.SQLitePath,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Redis() lock.RedisConfig {
	return lock.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:  c.AppName,
		Exporter:     c.TracingExporter,
		OTLPEndpoint: c.TracingOTLPEndpoint,
		OTLPProtocol: c.TracingOTLPProtocol,
		OTLPInsecure: c.TracingOTLPInsecure,
	}
}

func (c *Config) Auth() middleware.AuthConfig {
	return middleware.AuthConfig{
		Enabled: c.AuthEnabled,
		Secret:  []byte(c.AuthSecret),
		Issuer:  c.AuthIssuer,
	}
}

// Profile loads the scoring profile, falling back to the built-in defaults.
func (c *Config) Profile() (matching.Profile, error) {
	if c.ScoringProfilePath == "" {
		return matching.DefaultProfile(), nil
	}
	return matching.LoadProfile(c.ScoringProfilePath)
}

// GenerateOptions returns candidate generation options for project.
func (c *Config) GenerateOptions(project string) (matching.GenerateOptions, error) {
	mode, err := matching.ParseMode(c.MatchMode)
	if err != nil {
		return matching.GenerateOptions{}, err
	}
	opts := matching.DefaultGenerateOptions(project)
	opts.Mode = mode
	opts.Workers = c.MatchWorkerCount
	opts.BatchSize = c.MatchBatchSize
	opts.CountryFilter = c.MatchCountryFilter
	opts.MaxPostings = c.MatchMaxPostings
	return opts, nil
}

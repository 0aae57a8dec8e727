// Package app wires configuration into the services every command uses.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	migrations "github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/lock"
	"github.com/Ramsey-B/fern/internal/repositories/address"
	"github.com/Ramsey-B/fern/internal/repositories/alias"
	"github.com/Ramsey-B/fern/internal/repositories/document"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/link"
	"github.com/Ramsey-B/fern/internal/repositories/mapping"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/emitter"
	"github.com/Ramsey-B/fern/pkg/export"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Version is reported by the health endpoint.
var Version = "dev"

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	DB     database.DB
	Logger ectologger.Logger
	Redis  *redis.Client

	Entities  *entity.Repository
	Links     *link.Repository
	Aliases   *alias.Repository
	Addresses *address.Repository
	Documents *document.Repository
	Mappings  *mapping.Repository

	Decisions     *decision.Service
	Lifecycle     *emitter.Lifecycle
	Ingest        *ingest.Service
	Scorer        *matching.Scorer
	Generator     *matching.Generator
	Canonicalizer *canonical.Canonicalizer
	Merger        *merging.CompositeMerger
	Runner        *pipeline.Runner
	Locker        lock.Locker

	producer *kafka.Producer
}

// New opens the configured database and locker, then wires every service.
func New(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database(), logger)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisHost != "" {
		rdb, err = lock.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		locker = lock.NewRedisLocker(rdb, "", logger)
	}

	a, err := Wire(cfg, db, locker, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.Redis = rdb
	return a, nil
}

// Wire builds the service graph on an open database.
func Wire(cfg *config.Config, db database.DB, locker lock.Locker, logger ectologger.Logger) (*App, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Entities:  entity.NewRepository(db, logger),
		Links:     link.NewRepository(db, logger),
		Aliases:   alias.NewRepository(db, logger),
		Addresses: address.NewRepository(db, logger),
		Documents: document.NewRepository(db, logger),
		Mappings:  mapping.NewRepository(db, logger),
		Scorer:    matching.NewScorer(profile),
		Locker:    locker,
	}

	a.Decisions = decision.NewService(db, a.Mappings, a.Entities, logger)
	a.Lifecycle = emitter.NewLifecycle(a.Entities, a.Decisions, logger, a.Aliases, a.Addresses, a.Links, a.Documents)
	a.Decisions.AddListener(a.Lifecycle)

	a.Generator = matching.NewGenerator(a.Entities, a.Aliases, a.Decisions, a.Scorer, logger)
	a.Canonicalizer = canonical.NewCanonicalizer(db, a.Decisions, logger, a.Entities, a.Links, a.Aliases, a.Addresses, a.Documents)
	a.Merger = merging.NewCompositeMerger(a.Entities, a.Aliases, a.Addresses, a.Links, logger)
	a.Runner = pipeline.NewRunner(locker, a.Generator, a.Canonicalizer, a.Decisions, pipeline.Options{
		LockTTL:  cfg.LockTTL,
		LockWait: cfg.LockWait,
	}, logger)

	// Judgement records take the project lock like reviewer judgements.
	a.Ingest = ingest.NewService(db, ingest.Stores{
		Entities:  a.Entities,
		Links:     a.Links,
		Aliases:   a.Aliases,
		Addresses: a.Addresses,
		Documents: a.Documents,
	}, a.Runner, logger)
	a.Ingest.SetActivation(a.Lifecycle)

	return a, nil
}

// Migrate applies the embedded migrations for the configured driver.
func (a *App) Migrate() error {
	svc := database.NewMigrationService(a.Logger, &database.MigrationConfig{
		Source:       migrations.Migrations,
		Folder:       migrations.Folder(a.Config.DatabaseDriver),
		Version:      a.Config.DatabaseMigrationVersion,
		Force:        a.Config.DatabaseMigrationForce,
		AutoRollback: a.Config.DatabaseMigrationAutoRollback,
	})
	return svc.Migrate(a.DB)
}

// GenerateOptions returns the configured generation options for project.
func (a *App) GenerateOptions(project string) (matching.GenerateOptions, error) {
	return a.Config.GenerateOptions(project)
}

// Emitter returns an origin emitter bound to project.
func (a *App) Emitter(project, origin string) (*emitter.OriginEmitter, error) {
	return emitter.NewOriginEmitter(emitter.Deps{
		Ingest:     a.Ingest,
		Judgements: lockedJudgements{Service: a.Decisions, runner: a.Runner},
		Entities:   a.Entities,
		Scorer:     a.Scorer,
		Logger:     a.Logger,
	}, project, origin)
}

// lockedJudgements reads through the decision service and writes through
// the pass runner.
type lockedJudgements struct {
	*decision.Service
	runner *pipeline.Runner
}

func (j lockedJudgements) EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error) {
	return j.runner.EmitJudgement(ctx, project, in)
}

// Producer returns the composite event producer, creating it on first use.
func (a *App) Producer() *kafka.Producer {
	if a.producer == nil {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      a.Config.KafkaBrokers,
			Topic:        a.Config.KafkaOutputTopic,
			BatchSize:    a.Config.KafkaBatchSize,
			BatchTimeout: time.Duration(a.Config.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: a.Config.KafkaRequiredAcks,
			Compression:  a.Config.KafkaCompression,
		}, a.Merger, a.Logger)
	}
	return a.producer
}

// EnablePublishing registers the producer as a canonicalize hook.
func (a *App) EnablePublishing() {
	a.Runner.AddHook(a.Producer())
}

// Consumer builds the ingestion consumer.
func (a *App) Consumer() *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       a.Config.KafkaBrokers,
		Topic:         a.Config.KafkaInputTopic,
		ConsumerGroup: a.Config.KafkaConsumerGroup,
	}, a.Logger, kafka.IngestHandler(a.Ingest, a.Config.Project))
}

// GraphExporter connects to the graph database. The caller closes the
// returned client.
func (a *App) GraphExporter(ctx context.Context) (*graph.Exporter, *graph.Client, error) {
	client, err := graph.NewClient(graph.Config{
		Host:     a.Config.GraphDBHost,
		Port:     a.Config.GraphDBPort,
		Username: a.Config.GraphDBUser,
		Password: a.Config.GraphDBPassword,
		Database: a.Config.GraphDBName,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, nil, fmt.Errorf("graph database unreachable: %w", err)
	}
	return graph.NewExporter(client, a.Merger, a.Decisions, a.Logger), client, nil
}

// TableExporter writes CSV tables to dir, or to S3 when a bucket is
// configured and dir is empty.
func (a *App) TableExporter(ctx context.Context, dir string) (*export.Exporter, error) {
	var sink export.Sink = export.DirSink{Dir: dir}
	if dir == "" {
		if a.Config.ExportS3Bucket == "" {
			return nil, errors.New("either an output directory or EXPORT_S3_BUCKET is required")
		}
		s3Sink, err := export.NewS3Sink(ctx, export.S3Config{
			Bucket:   a.Config.ExportS3Bucket,
			Prefix:   a.Config.ExportS3Prefix,
			Region:   a.Config.ExportS3Region,
			Endpoint: a.Config.ExportS3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	}
	return export.NewExporter(a.Merger, a.Decisions, sink, a.Logger), nil
}

// Server builds the HTTP API.
func (a *App) Server(enablePasses bool) (*echo.Echo, *health.Checker, error) {
	opts, err := a.GenerateOptions("")
	if err != nil {
		return nil, nil, err
	}

	checker := health.NewChecker(a.DB, Version)
	if a.Redis != nil {
		checker.AddCheck("redis", health.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}))
	}

	e, err := routes.NewServer(routes.Deps{
		Health:     checker,
		Decisions:  a.Decisions,
		Judge:      a.Runner,
		Runner:     a.Runner,
		Composites: a.Merger,
		Ingester:   a.Ingest,
		Generate:   opts,
	}, routes.Options{
		ServiceName:    a.Config.AppName,
		DefaultProject: a.Config.Project,
		AllowOrigins:   a.Config.AllowOrigins,
		AllowMethods:   a.Config.AllowMethods,
		Auth:           a.Config.Auth(),
		EnablePasses:   enablePasses,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	e.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Port),
		ReadTimeout:       time.Duration(a.Config.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.Config.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.Config.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.Config.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.Config.MaxHeaderBytes,
	}
	return e, checker, nil
}

// Close releases the producer, redis and the database.
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}

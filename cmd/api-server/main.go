package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-directory/internal/api"
	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/checkpoint"
	"github.com/hackgods/hospital-directory/internal/config"
	"github.com/hackgods/hospital-directory/internal/db"
	"github.com/hackgods/hospital-directory/internal/events"
	"github.com/hackgods/hospital-directory/internal/hospital"
	"github.com/hackgods/hospital-directory/internal/logging"
	redisclient "github.com/hackgods/hospital-directory/internal/redis"
	"github.com/hackgods/hospital-directory/internal/registry"
	"github.com/hackgods/hospital-directory/internal/snapshot"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Init("hospital-api", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Init("hospital-api", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("snapshot_backend", cfg.SnapshotBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pgPool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
	}

	store, pruner, err := openStore(rootCtx, cfg, pgPool, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("snapshot store error")
	}

	publisher, closePublisher, err := openPublisher(rootCtx, cfg, pgPool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("event publisher error")
	}
	defer closePublisher()

	dir, err := hospital.NewDirectory(cfg.HospitalName, cfg.HospitalLocation, cfg.DirectoryOptions()...)
	if err != nil {
		logger.Fatal().Err(err).Msg("directory init error")
	}

	svc := registry.NewService(dir, appointment.NewLedger(dir),
		registry.WithStore(store),
		registry.WithPublisher(publisher),
		registry.WithLogger(logger.With().Str("component", "registry").Logger()),
	)

	switch err := svc.Load(rootCtx); {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		logger.Info().Msg("no snapshot found, starting fresh")
	case err != nil:
		logger.Fatal().Err(err).Msg("snapshot load error")
	default:
		logger.Info().Msg("state restored from snapshot")
	}

	var locker redisclient.Locker = redisclient.LocalLocker{}
	if rdb != nil {
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	}

	workerOpts := []checkpoint.Option{
		checkpoint.WithLocker(locker),
		checkpoint.WithLogger(logger.With().Str("component", "checkpoint").Logger()),
	}
	if pruner != nil {
		workerOpts = append(workerOpts, checkpoint.WithPruner(pruner, cfg.SnapshotKeep))
	}
	worker := checkpoint.NewWorker(svc, cfg.CheckpointInterval, workerOpts...)

	// The worker outlives rootCtx so its final checkpoint runs after the
	// HTTP server has drained.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(workerCtx)
	}()

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Locker:         locker,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         logger,
		Env:            cfg.Env,
		Version:        version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := drain(shutdownCtx, srv, stopWorker, &wg); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drain stops accepting requests and waits for in-flight ones, then stops the
// checkpoint worker, whose final save therefore sees every completed request.
func drain(ctx context.Context, srv shutdowner, stopWorker context.CancelFunc, wg *sync.WaitGroup) error {
	err := srv.Shutdown(ctx)
	stopWorker()
	wg.Wait()
	return err
}

func openStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client) (snapshot.Store, checkpoint.Pruner, error) {
	switch cfg.SnapshotBackend {
	case config.BackendPostgres:
		store := snapshot.NewPgStore(pool, cfg.HospitalName)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BackendRedis:
		return snapshot.NewRedisStore(rdb, cfg.HospitalName, cfg.SnapshotTTL), nil, nil
	default:
		return snapshot.NewFileStore(cfg.SnapshotPath), nil, nil
	}
}

// openPublisher fans events out to the log, Kafka when brokers are set and
// the Postgres event log when a database is configured.
func openPublisher(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (events.Publisher, func(), error) {
	pubs := events.Multi{events.NewLogPublisher(logger.With().Str("component", "events").Logger())}
	closeFn := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, kp)
		closeFn = func() {
			if err := kp.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing kafka writer")
			}
		}
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to Kafka")
	}

	if pool != nil {
		log := events.NewPgEventLog(pool)
		if err := log.EnsureSchema(ctx); err != nil {
			return nil, closeFn, err
		}
		pubs = append(pubs, log)
	}
	return pubs, closeFn, nil
}

package main

import (
	"context"
	"flag"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/config"
	"github.com/hackgods/hospital-directory/internal/db"
	"github.com/hackgods/hospital-directory/internal/hospital"
	"github.com/hackgods/hospital-directory/internal/logging"
	redisclient "github.com/hackgods/hospital-directory/internal/redis"
	"github.com/hackgods/hospital-directory/internal/registry"
	"github.com/hackgods/hospital-directory/internal/seed"
	"github.com/hackgods/hospital-directory/internal/snapshot"
)

func main() {
	patients := flag.Int("patients", 15, "patients admitted per department")
	staff := flag.Int("staff", 4, "staff hired per department")
	appts := flag.Int("appointments", 120, "appointments to attempt")
	dayFlag := flag.String("day", time.Now().UTC().Format(time.DateOnly), "day to schedule appointments on (YYYY-MM-DD)")
	fakeSeed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Init("hospital-seed", "dev", "info").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("hospital-seed", cfg.Env, cfg.LogLevel)

	day, err := time.Parse(time.DateOnly, *dayFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid -day")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var store snapshot.Store
	switch cfg.SnapshotBackend {
	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		pg := snapshot.NewPgStore(pool, cfg.HospitalName)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ensure snapshot schema")
		}
		store = pg
	case config.BackendRedis:
		var rdb *redis.Client
		rdb, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()
		store = snapshot.NewRedisStore(rdb, cfg.HospitalName, cfg.SnapshotTTL)
	default:
		store = snapshot.NewFileStore(cfg.SnapshotPath)
	}

	dir, err := hospital.NewDirectory(cfg.HospitalName, cfg.HospitalLocation, cfg.DirectoryOptions()...)
	if err != nil {
		logger.Fatal().Err(err).Msg("directory init error")
	}
	svc := registry.NewService(dir, appointment.NewLedger(dir), registry.WithStore(store), registry.WithLogger(logger))

	logger.Info().Str("hospital", cfg.HospitalName).Str("day", day.Format(time.DateOnly)).Msg("seed starting")

	res, err := seed.Populate(ctx, svc, gofakeit.New(*fakeSeed), seed.Options{
		PatientsPerDepartment: *patients,
		StaffPerDepartment:    *staff,
		Appointments:          *appts,
		Day:                   day,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	if err := svc.Save(ctx); err != nil {
		logger.Fatal().Err(err).Msg("save snapshot")
	}

	logger.Info().
		Int("patients", res.Patients).
		Int("staff", res.Staff).
		Int("appointments", res.Appointments).
		Int("conflicts_skipped", res.Conflicts).
		Str("backend", cfg.SnapshotBackend).
		Msg("seed complete")
}

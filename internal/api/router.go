package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/hospital-directory/internal/redis"
	"github.com/hackgods/hospital-directory/internal/registry"
)

type RouterConfig struct {
	Service *registry.Service
	// Locker guards snapshot writes; nil means a process-local lock.
	Locker         redisclient.Locker
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         zerolog.Logger
	Env            string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Locker == nil {
		cfg.Locker = redisclient.LocalLocker{}
	}
	svc := cfg.Service

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/departments", func(r chi.Router) {
		r.Get("/", listDepartmentsHandler(svc))
		r.Post("/", createDepartmentHandler(svc))
		r.Get("/{name}", getDepartmentHandler(svc))
		r.Get("/{name}/patients", listPatientsHandler(svc))
		r.Post("/{name}/patients", admitPatientHandler(svc))
		r.Get("/{name}/staff", listStaffHandler(svc))
		r.Post("/{name}/staff", hireStaffHandler(svc))
	})

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", listAllPatientsHandler(svc))
		r.Post("/discharge", bulkDischargeHandler(svc))
		r.Get("/{id}", getPatientHandler(svc))
		r.Patch("/{id}", updatePatientHandler(svc))
		r.Get("/{id}/record", patientRecordHandler(svc))
		r.Post("/{id}/record", appendRecordHandler(svc))
		r.Post("/{id}/discharge", dischargePatientHandler(svc))
		r.Post("/{id}/move", movePatientHandler(svc))
	})

	r.Route("/staff", func(r chi.Router) {
		r.Get("/", listAllStaffHandler(svc))
		r.Get("/{id}/info", staffInfoHandler(svc))
		r.Post("/{id}/toggle", toggleStaffHandler(svc))
		r.Post("/{id}/transfer", transferStaffHandler(svc))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/conflicts", findConflictsHandler(svc))
		r.Post("/", bookAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Patch("/{id}/status", updateStatusHandler(svc))
		r.Post("/{id}/reschedule", rescheduleHandler(svc))
		r.Delete("/{id}", removeAppointmentHandler(svc))
	})

	r.Get("/summary", summaryHandler(svc))
	r.Get("/snapshot", exportSnapshotHandler(svc))
	r.Post("/snapshot", saveSnapshotHandler(svc, cfg.Locker))
	r.Post("/snapshot/restore", restoreSnapshotHandler(svc))

	return r
}

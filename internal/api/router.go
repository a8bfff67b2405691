package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Service AppointmentService
	Logger  *slog.Logger
	Checks  []ReadinessCheck
	Env     string
	Version string

	// RateLimitRPS <= 0 disables per-IP rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// CORS first so preflights skip everything else
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, msgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, msgNotAllowed)
	})

	// Health endpoints
	health := NewHealthHandler(cfg.Env, cfg.Version, cfg.Checks...)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/consulta/inserir", createAppointmentHandler(cfg.Service, cfg.Logger))
		r.Get("/consulta/listar", listAppointmentsHandler(cfg.Service))
		r.Post("/consulta/atualizar", updateAppointmentHandler(cfg.Service, cfg.Logger))
		r.Post("/consulta/excluir", deleteAppointmentHandler(cfg.Service, cfg.Logger))
		r.Delete("/database/reset", resetDatabaseHandler(cfg.Service))
	})

	return r
}

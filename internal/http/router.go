package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"eventhub/internal/auth"
	"eventhub/internal/config"
	"eventhub/internal/http/handler"
	mw "eventhub/internal/http/middleware"
	"eventhub/internal/jobs"
)

type Deps struct {
	DB     *gorm.DB
	JWT    *auth.JWT
	Events handler.EventService
	Jobs   jobs.Admin
	Log    zerolog.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)

	if origins := cfg.CORSAllowedOrigins(); len(origins) > 0 {
		r.Use(mw.CORS(origins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Separate budgets: sign-ups and logins do not eat into registrations.
	authLimited := mw.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)
	registerLimited := mw.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT}
	r.Group(func(r chi.Router) {
		r.Use(authLimited)
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)
	})

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(d.JWT)).Get("/me", me.Me)

	eh := &handler.EventHandler{Svc: d.Events}
	r.Route("/events", func(r chi.Router) {
		r.Get("/", eh.List)
		r.With(registerLimited, auth.OptionalAuth(d.JWT)).Post("/{id}/registrations", eh.Register)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.JWT))
			r.Use(auth.RequireAdmin)

			r.Post("/", eh.Create)
			r.Post("/external-alerts", eh.AlertExternal)
			r.Post("/{id}/attendance", eh.Attendance)
			r.Post("/{id}/certificates", eh.Certificates)
		})
	})

	jh := &handler.JobsHandler{Admin: d.Jobs}
	r.With(auth.RequireAuth(d.JWT), auth.RequireAdmin).Get("/admin/jobs/{family}", jh.List)

	return r
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carezw/appointment-bot/internal/http/handlers"
	httpmiddleware "github.com/carezw/appointment-bot/internal/http/middleware"
	"github.com/carezw/appointment-bot/internal/staff"
	"github.com/carezw/appointment-bot/internal/webhook"
	"github.com/carezw/appointment-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	WebhookHandler      *webhook.Handler
	StaffHandler        *staff.Handler
	AppointmentsHandler *handlers.AppointmentsHandler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string

	// Requests per second per client IP on the public webhook. Zero
	// disables rate limiting.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhook, health, signin)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.WebhookHandler != nil {
			public.Route("/webhook", func(wh chi.Router) {
				if cfg.WebhookRateLimit > 0 {
					wh.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
				}
				wh.Get("/", cfg.WebhookHandler.Verify)
				wh.Post("/", cfg.WebhookHandler.Receive)
			})
		}
		if cfg.StaffHandler != nil {
			public.Post("/staff/signin", cfg.StaffHandler.Signin)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Staff routes (protected by JWT)
	if cfg.JWTSecret != "" {
		r.Group(func(protected chi.Router) {
			protected.Use(httpmiddleware.StaffJWT(cfg.JWTSecret))

			if cfg.StaffHandler != nil {
				protected.Route("/staff", func(s chi.Router) {
					s.With(httpmiddleware.RequireAdmin).Post("/signup", cfg.StaffHandler.Signup)
					s.Get("/", cfg.StaffHandler.List)
					s.Get("/count", cfg.StaffHandler.Count)
					s.Get("/logins", cfg.StaffHandler.Logins)
					s.With(httpmiddleware.RequireAdmin).Patch("/{id}", cfg.StaffHandler.Update)
				})
			}

			if cfg.AppointmentsHandler != nil {
				protected.Route("/appointments", func(a chi.Router) {
					a.Get("/", cfg.AppointmentsHandler.ListAll)
					a.Get("/count", cfg.AppointmentsHandler.CountAll)
					a.Get("/count/pending", cfg.AppointmentsHandler.CountPending)
					a.Get("/count/today", cfg.AppointmentsHandler.CountToday)
					a.Get("/slots", cfg.AppointmentsHandler.BookedSlots)
					a.Get("/calendar/week", cfg.AppointmentsHandler.WeekCalendar)
					a.Get("/counts/weekly", cfg.AppointmentsHandler.WeeklyCounts)
					a.Get("/counts/services", cfg.AppointmentsHandler.CountsByService)
					a.Patch("/update/{id}", cfg.AppointmentsHandler.Update)
				})
			}
		})
	}

	return r
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meditrack-api/internal/application/access"
	"github.com/meditrack-api/internal/application/audit"
	"github.com/meditrack-api/internal/application/notify"
	"github.com/meditrack-api/internal/application/profile"
	"github.com/meditrack-api/internal/config"
	"github.com/meditrack-api/internal/domain"
	"github.com/meditrack-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/meditrack-api/internal/infrastructure/jwt"
	redisinfra "github.com/meditrack-api/internal/infrastructure/redis"
	"github.com/meditrack-api/internal/infrastructure/smtp"
	"github.com/meditrack-api/internal/infrastructure/sns"
	"github.com/meditrack-api/internal/transport/http/handler"
	appmiddleware "github.com/meditrack-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	ProfileRepo   *dynamo.ProfileRepo
	AccessLogRepo *dynamo.AccessLogRepo
	SessionStore  *redisinfra.SessionStore
	Mailer        smtp.Mailer
	SMSSender     sns.SMSSender
	JWTProvider   *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}
	sessionMw := appmiddleware.Session(cfg.SessionTTL)

	// 5 requests/second, burst of 10 — applied to the OTP endpoints and
	// profile registration.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	profileSvc := profile.NewService(deps.ProfileRepo, deps.AccessLogRepo)
	auditSvc := audit.NewService(deps.AccessLogRepo)
	gate := notify.NewGate(deps.AccessLogRepo, deps.Mailer, deps.SMSSender, cfg.NotifyCooldown)
	accessSvc := access.NewService(deps.SessionStore, deps.Mailer, access.Config{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	})

	healthH := handler.NewHealthHandler()
	profileH := handler.NewProfileHandler(profileSvc)
	accessH := handler.NewAccessHandler(profileSvc, accessSvc, auditSvc, gate, cfg.PublicBaseURL)
	logH := handler.NewLogHandler(profileSvc, auditSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Post("/profiles/{nid}/health-sync", profileH.HealthSync)

		// ── Session-scoped emergency and doctor surface ──────────────────────
		r.Group(func(r chi.Router) {
			r.Use(sessionMw)

			r.Get("/profiles/{nid}/public", accessH.PublicView)
			r.With(sensitiveRL.Limit).Post("/profiles/{nid}/access/send-otp", accessH.SendOTP)
			r.With(sensitiveRL.Limit).Post("/profiles/{nid}/access/verify-otp", accessH.VerifyOTP)
			r.Get("/profiles/{nid}/doctor", accessH.DoctorView)
			r.Get("/profiles/{nid}/doctor/health", accessH.DoctorHealthView)
			r.Get("/profiles/{nid}/doctor/export", accessH.Export)
		})

		// ── Registry management (Bearer JWT) ─────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(sensitiveRL.Limit).Post("/profiles", profileH.Create)
			r.Get("/profiles", profileH.List)
			r.Get("/profiles/{nid}", profileH.Get)
			r.Put("/profiles/{nid}", profileH.Update)
			r.Get("/profiles/{nid}/access-logs", logH.Timeline)
			r.Get("/stats", profileH.Stats)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Delete("/profiles/{nid}", profileH.Delete)
			})
		})
	})

	return r
}
